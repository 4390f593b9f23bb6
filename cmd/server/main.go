// Command server is Solvency's entry point: load configuration, open and
// migrate the single embedded store, wire every domain package's
// repositories/services/handlers, register background jobs, and serve HTTP
// until an interrupt signal arrives. Simplified from aristath-sentinel's
// cmd/server/main.go's 7-database DI-container wiring to spec.md §4.1's
// single embedded store and no DI container — every dependency is
// constructed directly in main and passed down explicitly.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adrianvollmer/solvency/internal/aicategorization"
	aicategorizationhandlers "github.com/adrianvollmer/solvency/internal/aicategorization/handlers"
	"github.com/adrianvollmer/solvency/internal/auth"
	"github.com/adrianvollmer/solvency/internal/cache"
	"github.com/adrianvollmer/solvency/internal/config"
	"github.com/adrianvollmer/solvency/internal/database"
	"github.com/adrianvollmer/solvency/internal/importing"
	importinghandlers "github.com/adrianvollmer/solvency/internal/importing/handlers"
	"github.com/adrianvollmer/solvency/internal/ledger"
	ledgerhandlers "github.com/adrianvollmer/solvency/internal/ledger/handlers"
	"github.com/adrianvollmer/solvency/internal/portfolio"
	portfoliohandlers "github.com/adrianvollmer/solvency/internal/portfolio/handlers"
	"github.com/adrianvollmer/solvency/internal/scheduler"
	"github.com/adrianvollmer/solvency/internal/server"
	"github.com/adrianvollmer/solvency/internal/settings"
	settingshandlers "github.com/adrianvollmer/solvency/internal/settings/handlers"
	"github.com/adrianvollmer/solvency/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Msg("starting solvency")

	db, err := database.New(database.Config{
		Path:    cfg.DatabaseURL,
		Profile: database.ProfileLedger,
		Name:    "solvency",
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	settingsRepo := settings.NewRepository(db.Conn(), log)
	if err := cfg.UpdateFromSettings(settingsRepo); err != nil {
		log.Warn().Err(err).Msg("failed to update config from settings, using environment values")
	}

	// Ledger repositories, shared by the ledger handlers, the importer,
	// and AI categorization.
	accounts := ledger.NewAccountRepository(db.Conn(), log)
	categories := ledger.NewCategoryRepository(db.Conn(), log)
	tags := ledger.NewTagRepository(db.Conn(), log)
	transactions := ledger.NewTransactionRepository(db.Conn(), log)
	rules := ledger.NewRuleRepository(db.Conn(), log)

	// Portfolio repositories.
	activities := portfolio.NewActivityRepository(db.Conn(), log)
	marketData := portfolio.NewMarketDataRepository(db.Conn(), log)

	// Importing.
	importRepo := importing.NewRepository(db.Conn(), log)
	importService := importing.NewService(importRepo, transactions, activities, log)

	// AI categorization.
	aiRepo := aicategorization.NewRepository(db.Conn(), log)
	aiAPILog := aicategorization.NewAPILogRepository(db.Conn(), log)
	categorizer := aicategorization.NewOpenAICompatClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
	aiService := aicategorization.NewService(aiRepo, aiAPILog, transactions, categories, categorizer,
		cfg.AIBatchSize, cfg.AIRateLimitMs, cfg.AIProvider, log)

	gatekeeper := auth.New(cfg.PasswordHash, !cfg.DevMode)
	appCache := cache.New(log)

	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	if err := sched.AddJob("@every 1h", importing.NewJanitorJob(importRepo)); err != nil {
		log.Error().Err(err).Msg("failed to register import janitor")
	}
	if err := sched.AddJob("@every 1h", aicategorization.NewJanitorJob(aiRepo)); err != nil {
		log.Error().Err(err).Msg("failed to register AI-categorization janitor")
	}
	refreshJob := portfolio.NewRefreshJob(activities, marketData, portfolio.NewYahooChartProvider(), 0, log)
	if err := sched.AddJob("@every 1h", refreshJob); err != nil {
		log.Error().Err(err).Msg("failed to register market-data refresh job")
	}

	srv := server.New(server.Config{
		Log:        log,
		DB:         db,
		Port:       cfg.Port,
		Gatekeeper: gatekeeper,
		Cache:      appCache,

		Ledger:           ledgerhandlers.NewHandler(accounts, categories, tags, transactions, rules, log),
		Portfolio:        portfoliohandlers.NewHandler(activities, marketData, accounts, transactions, log),
		Importing:        importinghandlers.NewHandler(importService, log),
		AICategorization: aicategorizationhandlers.NewHandler(aiService, log),
		Settings:         settingshandlers.NewHandler(settingsRepo, log),
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("solvency started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("solvency stopped")
}
