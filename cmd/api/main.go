package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"jewelgen/internal/design"
	"jewelgen/internal/http/handlers"
	"jewelgen/internal/http/httpapi"
	"jewelgen/internal/infra"
	"jewelgen/internal/infra/credentials"
	"jewelgen/internal/infra/geoip"
	"jewelgen/internal/providers/image"
	"jewelgen/internal/providers/prompt"
	"jewelgen/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	store, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	styles, err := design.LoadStyleTable(os.Getenv("STYLE_TABLE_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load style table")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, country logging disabled")
	}

	credStore := credentials.NewStore(runner)
	apiKey := func(envKey, provider string) string {
		key := strings.TrimSpace(envKey)
		if key != "" {
			return key
		}
		stored, err := credStore.Token(ctx, provider)
		if err != nil {
			logger.Warn().Err(err).Str("provider", provider).Msg("failed to load api key from store")
			return ""
		}
		return stored
	}

	leonardoKey := apiKey(cfg.LeonardoAPIKey, credentials.ProviderLeonardo)
	if leonardoKey == "" {
		logger.Warn().Msg("LEONARDO_API_KEY not set, Leonardo generation unavailable")
	}
	togetherKey := apiKey(cfg.TogetherAPIKey, credentials.ProviderTogether)
	if togetherKey == "" {
		logger.Warn().Msg("TOGETHER_API_KEY not set, Together generation unavailable")
	}
	geminiKey := apiKey(cfg.GeminiAPIKey, credentials.ProviderGemini)
	if geminiKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY not set, prompt enhancement disabled")
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	leonardo, err := image.NewLeonardo(image.LeonardoOptions{
		APIKey:       leonardoKey,
		BaseURL:      cfg.LeonardoBaseURL,
		DefaultModel: cfg.LeonardoModel,
		HTTPClient:   httpClient,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure leonardo client")
	}
	together, err := image.NewTogether(image.TogetherOptions{
		APIKey:     togetherKey,
		BaseURL:    cfg.TogetherBaseURL,
		Model:      cfg.TogetherModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure together client")
	}
	enhancer, err := prompt.NewGemini(prompt.GeminiOptions{
		APIKey:  geminiKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure gemini enhancer")
	}

	app := &handlers.App{
		Config: cfg,
		Logger: logger,
		SQL:    runner,
		Store:  store,
		Generators: map[string]image.Generator{
			handlers.ProviderLeonardo: leonardo,
			handlers.ProviderTogether: together,
		},
		Enhancer: enhancer,
		Styles:   styles,
		GeoIP:    resolver,
	}

	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if closer, ok := resolver.(interface{ Close() error }); ok && closer != nil {
		_ = closer.Close()
	}
	logger.Info().Msg("server stopped")
}
