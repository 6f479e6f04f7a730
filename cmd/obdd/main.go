package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/obddrive/obdd/internal/catalog"
	"github.com/obddrive/obdd/internal/config"
	"github.com/obddrive/obdd/internal/engine"
	"github.com/obddrive/obdd/internal/logging"
	"github.com/obddrive/obdd/internal/platform"
	"github.com/obddrive/obdd/internal/web"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "obdd",
		Short: "Telemetry normalization and session routing service",
		Long: "obdd ingests in-vehicle telemetry uploads, normalizes parameter\n" +
			"readings against a code catalog, and maintains per-vehicle state\n" +
			"for an entity platform.",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("obdd " + version)
		},
	}
}

func runServe() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"session_ttl", cfg.Session.TTL,
		"max_vehicles", cfg.Session.MaxVehicles,
		"merge_mode", cfg.Identity.MergeMode,
		"units", cfg.Locale.Units,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	cat, err := loadCatalog(cfg)
	if err != nil {
		slog.Error("failed to load code catalog", "error", err)
		return err
	}
	slog.Info("code catalog loaded",
		"codes", cat.Len(),
		"groups", len(cat.Groups()),
		"extensions", cfg.Catalog.ExtensionsPath != "",
	)

	eng := engine.New(engine.Config{
		Catalog: cat,
		Router: engine.RouterConfig{
			DefaultKey:      cfg.Session.DefaultVehicleKey,
			MergeMode:       cfg.Identity.MergeMode,
			NameMap:         cfg.Identity.NameMap,
			RejectPoorNames: cfg.Identity.RejectPoorNames,
		},
		Store: engine.StoreConfig{
			TTL:         cfg.Session.TTL,
			MaxVehicles: cfg.Session.MaxVehicles,
		},
		Language: cfg.Locale.Language,
		Units:    cfg.Locale.Units,
	})

	ctx := context.Background()

	// The log publisher is always on; Postgres joins it when configured.
	publishers := []platform.Publisher{platform.LogPublisher{}}

	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		pool, err = connectPostgres(ctx, cfg)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			return err
		}
		defer pool.Close()

		pg := platform.NewPostgresPublisher(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure snapshot schema", "error", err)
			return err
		}
		publishers = append(publishers, pg)
	}

	notifier := platform.NewNotifier(platform.DefaultBuffer, publishers...)

	server := web.NewServer(eng, notifier, cfg)

	// Cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	go notifier.Start(jobCtx)
	go eng.Store().StartEvictionScheduler(jobCtx, cfg.Session.EvictInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr(), "version", version)
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
	return nil
}

// loadCatalog builds the code catalog, merging the optional extension file.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.ExtensionsPath == "" {
		return catalog.New(), nil
	}
	return catalog.NewWithExtensions(cfg.Catalog.ExtensionsPath)
}

// connectPostgres builds and verifies the snapshot publisher's pool.
func connectPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
