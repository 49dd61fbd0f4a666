package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swooby/alfredd/internal/config"
	"github.com/swooby/alfredd/internal/core/ingest"
	"github.com/swooby/alfredd/internal/core/rules"
	"github.com/swooby/alfredd/internal/core/storage"
	"github.com/swooby/alfredd/internal/core/storage/memory"
	"github.com/swooby/alfredd/internal/core/storage/postgres"
	"github.com/swooby/alfredd/internal/core/summary"
	"github.com/swooby/alfredd/internal/ingestion"
	"github.com/swooby/alfredd/internal/migrations"
	"github.com/swooby/alfredd/internal/pipeline"
	"github.com/swooby/alfredd/internal/server"
	"github.com/swooby/alfredd/internal/settings"
	"github.com/swooby/alfredd/internal/speech"
)

func main() {
	configPath := flag.String("config", "alfredd.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	dedupeWindow, err := time.ParseDuration(cfg.Ingest.DedupeWindow)
	if err != nil {
		slog.Error("Invalid dedupe window", "value", cfg.Ingest.DedupeWindow, "error", err)
		os.Exit(1)
	}
	debounceTick, err := time.ParseDuration(cfg.Ingest.DebounceTick)
	if err != nil {
		slog.Error("Invalid debounce tick", "value", cfg.Ingest.DebounceTick, "error", err)
		os.Exit(1)
	}
	digestInterval, err := time.ParseDuration(cfg.Digest.Interval)
	if err != nil {
		slog.Error("Invalid digest interval", "value", cfg.Digest.Interval, "error", err)
		os.Exit(1)
	}

	// 2. Initialize Storage
	var eventStore storage.EventStore
	var dbAdapter *postgres.Adapter
	if cfg.Database.DSN != "" {
		dbAdapter, err = postgres.NewAdapter(
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
		)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer dbAdapter.Close()

		// 2.1. Run Database Migrations
		if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}
		eventStore = dbAdapter
	} else {
		slog.Warn("No database DSN configured, events are held in memory only")
		eventStore = memory.NewStore()
	}

	// 3. Initialize Coalesce History
	historyStore, err := buildHistoryStore(cfg, dbAdapter)
	if err != nil {
		slog.Error("Failed to initialize coalesce history store", "error", err)
		os.Exit(1)
	}

	// 4. Initialize Ingest Engine
	engine := ingest.New(ingest.Options{
		DedupeWindow: dedupeWindow,
		DebounceTick: debounceTick,
		History:      historyStore,
	})

	// 5. Initialize Rules Policy
	rulesSource := settings.NewSource(cfg.Rules.PolicyPath)
	if err := rulesSource.Load(); err != nil {
		slog.Error("Failed to load rules policy", "error", err)
		os.Exit(1)
	}
	if cfg.Rules.Watch {
		if err := rulesSource.Watch(); err != nil {
			slog.Error("Failed to watch rules policy", "error", err)
			os.Exit(1)
		}
		defer rulesSource.Unwatch()
	}

	// 6. Initialize Rules Engine, Summarizer, Speech Sink
	rulesEngine := rules.NewEngine()
	summarizer := summary.NewTemplatedGenerator()
	speaker := speech.LogSpeaker{}

	orchestrator := pipeline.NewOrchestrator(
		engine, rulesEngine, summarizer, eventStore, speaker, rulesSource, nil,
	)

	// 7. Initialize Server
	ingestionSvc := ingestion.NewService(engine, eventStore, summarizer, cfg.Server.MaxBodySizeMB)
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbSQL(dbAdapter), cfg.Server.Mode, engine.Stats)
	ingestionSvc.RegisterRoutes(srv.Engine)

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler → triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Start(gctx) })
	g.Go(func() error { return orchestrator.Run(gctx) })
	if cfg.Digest.Enabled {
		digestScheduler := pipeline.NewDigestScheduler(
			digestInterval,
			cfg.Digest.Title,
			cfg.Pipeline.UserID,
			eventStore,
			summarizer,
			speaker,
		)
		g.Go(func() error { return digestScheduler.Start(gctx) })
	} else {
		slog.Info("Digest scheduler disabled by config")
	}
	g.Go(func() error { return srv.Run(gctx) })

	if err := g.Wait(); err != nil {
		slog.Error("Pipeline stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// buildHistoryStore selects the coalesce-history backend. The postgres
// backend requires a database; degrade to the file store otherwise.
func buildHistoryStore(cfg *config.Config, dbAdapter *postgres.Adapter) (ingest.HistoryStore, error) {
	switch cfg.Ingest.HistoryBackend {
	case "postgres":
		if dbAdapter == nil {
			slog.Warn("Postgres history backend requires a database, falling back to file",
				"path", cfg.Ingest.HistoryPath)
			return ingest.NewFileHistoryStore(cfg.Ingest.HistoryPath), nil
		}
		return postgres.NewHistoryAdapter(dbAdapter.DB()), nil
	case "file":
		return ingest.NewFileHistoryStore(cfg.Ingest.HistoryPath), nil
	case "memory":
		return ingest.InMemoryHistoryStore{}, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Ingest.HistoryBackend)
	}
}

func dbSQL(adapter *postgres.Adapter) *sql.DB {
	if adapter == nil {
		return nil
	}
	return adapter.DB()
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
