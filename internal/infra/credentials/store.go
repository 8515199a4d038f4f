package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"jewelgen/internal/infra"
	"jewelgen/internal/sqlinline"
)

// Provider identifiers accepted by the token store.
const (
	ProviderLeonardo = "leonardo"
	ProviderTogether = "together"
	ProviderGemini   = "gemini"
)

// Known reports whether the provider name maps to a supported integration.
func Known(provider string) bool {
	switch provider {
	case ProviderLeonardo, ProviderTogether, ProviderGemini:
		return true
	}
	return false
}

// Store persists third-party API keys in the integration_tokens table so they
// can be rotated without redeploying the service.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored API key for the provider, or "" when none is set.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken upserts the API key for the provider.
func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	if !Known(provider) {
		return fmt.Errorf("credentials: unsupported provider %q", provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("credentials: %s api key is required", provider)
	}
	raw, err := json.Marshal(map[string]any{})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
