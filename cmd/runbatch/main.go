package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/contestra/ai-ranker-sub003/internal/connectors"
	"github.com/contestra/ai-ranker-sub003/internal/domain"
	"github.com/contestra/ai-ranker-sub003/internal/engine"
	"github.com/contestra/ai-ranker-sub003/internal/infra"
	"github.com/contestra/ai-ranker-sub003/internal/infra/auth"
)

// runbatch — одноразовый прогон батча из крона/CI: без консоли, без живого
// канала, только секвенсор поверх раннера. Код возврата 1, если хоть одна
// комбинация упала.
func main() {
	countriesFlag := flag.String("countries", "", "comma-separated country codes (default: all from config)")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Backend.BaseURL == "" {
		log.Fatal("backend.base_url is required (or BACKEND_BASE_URL)")
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	countries := cfg.Countries
	if *countriesFlag != "" {
		wanted := make(map[string]bool)
		for _, code := range strings.Split(*countriesFlag, ",") {
			wanted[strings.TrimSpace(code)] = true
		}
		filtered := countries[:0:0]
		for _, c := range countries {
			if wanted[c.Code] {
				filtered = append(filtered, c)
			}
		}
		countries = filtered
	}
	if len(countries) == 0 {
		log.Fatal("no countries to run")
	}

	token := auth.NewBackendToken(cfg.Backend.APIToken)
	adapter := connectors.NewHTTPAdapter(cfg.Backend.BaseURL, token, logger)

	registry := engine.NewRunRegistry(logger)
	// Без сводки и истории: одноразовому батчу нужен только вердикт на бэкенде
	runner := engine.NewRunner(registry, adapter, nil, nil, nil, nil, nil,
		cfg.Backend.TestTimeout, logger)
	sequencer := engine.NewSequencer(runner,
		cfg.Engine.ProviderOrder, cfg.Engine.Models,
		rate.NewLimiter(rate.Limit(cfg.Engine.BatchRate), cfg.Engine.BatchBurst),
		logger)

	report := sequencer.RunAll(context.Background(), countries)

	for _, item := range report.Items {
		key := domain.TestKey{Country: item.Country, Model: cfg.Engine.Models[item.Combination.Provider], Grounded: item.Combination.Grounded}
		if item.Error != "" {
			logger.Error("batch item failed",
				zap.Stringer("key", key),
				zap.String("provider", item.Combination.Provider),
				zap.String("error", item.Error))
		} else {
			logger.Info("batch item ok",
				zap.Stringer("key", key),
				zap.String("provider", item.Combination.Provider),
				zap.Duration("duration", item.Duration))
		}
	}

	logger.Info("batch report",
		zap.Int("items", len(report.Items)),
		zap.Int("failed", report.Failed()),
		zap.Time("started_at", report.StartedAt),
		zap.Time("finished_at", report.FinishedAt))

	if report.Failed() > 0 {
		os.Exit(1)
	}
}
