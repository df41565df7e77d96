package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StopSentinel/internal/atr"
	"StopSentinel/internal/broker"
	"StopSentinel/internal/config"
	"StopSentinel/internal/engine"
	"StopSentinel/internal/metrics"
	"StopSentinel/internal/notifier"
	"StopSentinel/internal/orders"
	"StopSentinel/internal/recorder"
	"StopSentinel/internal/scheduler"
	"StopSentinel/internal/state"
	"StopSentinel/internal/stops"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}

	log.Info().Msg("StopSentinel starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.State.File), 0o755); err != nil {
		log.Fatal().Err(err).Msg("create data directory")
	}

	// Init fetcher
	var fetcher broker.Fetcher
	if cfg.Gateway.BaseURL != "" {
		fetcher = broker.NewGatewayFetcher(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Proxy)
	} else {
		log.Warn().Msg("no gateway configured, using mock data")
		fetcher = &broker.MockFetcher{}
	}
	log.Info().Str("fetcher", fetcher.Name()).Msg("data source selected")

	// Load persisted state (must happen before the first cycle)
	store, err := state.Load(cfg.State.File)
	if err != nil {
		log.Fatal().Err(err).Msg("load state")
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Init submitter: gateway submission only when a gateway exists and at
	// least one symbol has submission enabled; otherwise dry-run.
	var submitter orders.Submitter
	reconcile := false
	if cfg.Gateway.BaseURL != "" && anySubmitEnabled(cfg) {
		submitter = orders.NewGatewaySubmitter(cfg.Gateway.BaseURL, cfg.Gateway.APIKey)
		reconcile = true
	} else {
		submitter = orders.NewLogSubmitter()
	}
	log.Info().Str("submitter", submitter.Name()).Bool("reconcile", reconcile).
		Msg("order submission mode")

	// Wire the engine
	atrEngine := atr.New(cfg.OverwriteLastBar())
	calc := stops.NewCalculator(store, cfg.Risk.HypotheticalAccountValue)
	proc := engine.NewProcessor(
		fetcher, atrEngine, calc, store, rec, submitter,
		func(symbol string) engine.SymbolSettings {
			ratio, tf, submit := cfg.ResolveSymbol(symbol)
			return engine.SymbolSettings{Ratio: ratio, Timeframe: tf, Submit: submit}
		},
		cfg.Retention(),
	)
	proc.ReconcileEnabled = reconcile

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telegram alerts (optional)
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

	// Metrics listener (optional)
	if cfg.Metrics.ListenAddr != "" {
		go metrics.Serve(cfg.Metrics.ListenAddr)
		log.Info().Str("addr", cfg.Metrics.ListenAddr).Msg("metrics listener started")
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, proc, tn)
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.DigestCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, executing refresh now")
		go sched.RunRefreshNow()
	}

	log.Info().Msg("StopSentinel is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping...")
	cancel()
	log.Info().Msg("StopSentinel stopped")
}

func anySubmitEnabled(cfg *config.Config) bool {
	for _, sc := range cfg.Symbols {
		if sc.Submit {
			return true
		}
	}
	return false
}
