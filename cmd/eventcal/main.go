package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/academy-lab/eventcal/internal/admin"
	"github.com/academy-lab/eventcal/internal/calendar"
	corecfg "github.com/academy-lab/eventcal/internal/core/config"
	"github.com/academy-lab/eventcal/internal/core/storage/memory"
	"github.com/academy-lab/eventcal/internal/core/storage/postgres"
	"github.com/academy-lab/eventcal/internal/migrations"
	"github.com/academy-lab/eventcal/internal/query"
	"github.com/academy-lab/eventcal/internal/server"
)

func main() {
	configPath := flag.String("config", "eventcal.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Local development convenience; a missing .env is fine.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"database_type", cfg.Database.Type,
		"orphan_policy", cfg.Calendar.OrphanedExceptions,
		"horizon_days", cfg.Calendar.UpcomingHorizonDays,
	)

	// 2. Initialize Storage
	var (
		seriesStore    calendar.SeriesStore
		exceptionStore calendar.ExceptionStore
		closeStore     func() error
		healthDB       = (*postgres.Adapter)(nil)
	)
	switch cfg.Database.Type {
	case "postgres":
		adapter, err := postgres.NewAdapter(
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
		)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		if err := migrations.Run(adapter.DB(), cfg.Database.AutoMigrate); err != nil {
			adapter.Close()
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}
		seriesStore, exceptionStore = adapter, adapter
		closeStore = adapter.Close
		healthDB = adapter
	case "memory":
		store := memory.NewStore()
		seriesStore, exceptionStore = store, store
		closeStore = func() error { return nil }
		slog.Warn("Using in-memory storage; data is lost on restart")
	}
	defer closeStore()

	// 3. Initialize Template Catalog
	catalog, err := calendar.NewCatalogWithDir(cfg.Calendar.TemplatesDir)
	if err != nil {
		slog.Error("Failed to load event templates", "dir", cfg.Calendar.TemplatesDir, "error", err)
		os.Exit(1)
	}

	// 4. Initialize Mutation Coordinator
	coordinator := calendar.NewCoordinator(seriesStore, exceptionStore, catalog, calendar.CoordinatorOptions{
		OrphanPolicy: cfg.Calendar.OrphanPolicy(),
	})

	// 5. Initialize Read Path
	querySvc := query.NewService(seriesStore, exceptionStore, query.Options{
		OrphanPolicy: cfg.Calendar.OrphanPolicy(),
		HorizonDays:  cfg.Calendar.UpcomingHorizonDays,
	})

	// 6. Initialize Admin (write API)
	adminSvc := admin.NewService(coordinator, querySvc)

	// 7. Initialize Server
	srv := newServer(cfg, healthDB)
	querySvc.RegisterRoutes(srv.Engine, cfg.Calendar.FeedEnabled)
	adminSvc.RegisterRoutes(srv.Engine)

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func newServer(cfg *corecfg.Config, adapter *postgres.Adapter) *server.Server {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if adapter == nil {
		return server.New(addr, nil, cfg.Server.Mode)
	}
	return server.New(addr, adapter.DB(), cfg.Server.Mode)
}
