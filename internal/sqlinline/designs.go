package sqlinline

const QInsertDesign = `--sql 250b03be-9cff-4347-b653-264241cd9191
insert into designs(
  id,
  jewelry_type,
  model,
  prompt,
  images,
  properties,
  created_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::jsonb,
  coalesce($6::jsonb, '{}'::jsonb),
  now()
) returning id;
`

const QListDesigns = `--sql 42d6a911-9e1d-4aab-ad80-80bdc39969ca
select
  id,
  prompt,
  images
from designs
order by created_at desc
limit $1::int;
`

const QSelectDesignByID = `--sql ee115f36-9448-4124-9cbe-730ada8bbf18
select id, prompt, images
from designs
where id = $1::uuid
limit 1;
`
