package main

import (
	"fmt"
	"net/http"

	"github.com/hyperjump/kurabe/internal/ai"
	"github.com/hyperjump/kurabe/internal/ai/openai"
	"github.com/hyperjump/kurabe/internal/config"
	"github.com/hyperjump/kurabe/internal/credits"
	"github.com/hyperjump/kurabe/internal/extract"
	"github.com/hyperjump/kurabe/internal/ingest"
	"github.com/hyperjump/kurabe/internal/scan"
	"github.com/hyperjump/kurabe/internal/similarity"
	"github.com/hyperjump/kurabe/internal/storage"
	"go.uber.org/zap"
)

// Components holds initialized application components.
type Components struct {
	Storage *storage.SQLiteStorage
	Engine  *similarity.Engine
	Scanner *scan.Scanner
	Credits *credits.Resetter
}

// Close releases resources.
func (c *Components) Close() {
	if c.Scanner != nil {
		c.Scanner.Release()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// buildProviders returns the AI providers with credentials, primary first.
func buildProviders(cfg *config.Config, logger *zap.Logger) ([]ai.Provider, error) {
	httpClient := &http.Client{}
	var providers []ai.Provider
	for _, pc := range []config.ProviderConfig{cfg.Providers.Primary, cfg.Providers.Secondary} {
		if !pc.Enabled() {
			logger.Info("AI provider disabled: no API key", zap.String("provider", pc.Name))
			continue
		}
		p, err := openai.New(openai.Config{
			Name:              pc.Name,
			BaseURL:           pc.BaseURL,
			Model:             pc.Model,
			APIKey:            pc.ResolvedAPIKey(),
			Timeout:           pc.Timeout,
			RequestsPerSecond: pc.RequestsPerSecond,
			Burst:             pc.Burst,
			Headers:           pc.Headers,
			PromptChars:       cfg.Scan.PromptChars,
		}, httpClient, openai.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	providers, err := buildProviders(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	engine, err := similarity.NewEngine(providers,
		similarity.WithLogger(logger),
		similarity.WithMaxFeatures(cfg.Statistical.MaxFeatures))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize similarity engine: %w", err)
	}

	ingester := ingest.NewIngester(extract.NewExtractor(), ingest.WithLogger(logger))
	scanner, err := scan.NewScanner(store, engine,
		scan.WithLogger(logger),
		scan.WithThreshold(cfg.Scan.MatchThreshold),
		scan.WithTopK(cfg.Scan.TopK),
		scan.WithWorkers(cfg.Scan.Workers),
		scan.WithIngester(ingester))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize scanner: %w", err)
	}

	resetter, err := credits.NewResetter(store, cfg.Credits.DailyAllowance, cfg.Credits.ResetInterval,
		credits.WithLogger(logger))
	if err != nil {
		scanner.Release()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize credits: %w", err)
	}

	return &Components{
		Storage: store,
		Engine:  engine,
		Scanner: scanner,
		Credits: resetter,
	}, nil
}
