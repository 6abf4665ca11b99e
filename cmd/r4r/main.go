package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/trust-ethos/ethos-r4r/internal/analysis"
	"github.com/trust-ethos/ethos-r4r/internal/config"
	"github.com/trust-ethos/ethos-r4r/internal/ethos"
	"github.com/trust-ethos/ethos-r4r/internal/search"
	"github.com/trust-ethos/ethos-r4r/internal/server"
	"github.com/trust-ethos/ethos-r4r/internal/service/analyzer"
	"github.com/trust-ethos/ethos-r4r/internal/storage"
	"github.com/trust-ethos/ethos-r4r/internal/telemetry"
	"github.com/trust-ethos/ethos-r4r/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("R4R_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("ethos-r4r starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	client := ethos.NewClient(cfg.EthosBaseURL, cfg.EthosTimeout)
	engine := analysis.NewEngine(analysis.CurrentFormula)
	analyzerSvc := analyzer.New(client, db, engine, logger)
	searchSvc := search.NewService(client, search.NewCache(cfg.SearchCacheTTL, cfg.SearchCacheEntries), logger)

	srv := server.New(server.ServerConfig{
		Analyzer:       analyzerSvc,
		Searcher:       searchSvc,
		Store:          db,
		Logger:         logger,
		Port:           cfg.Port,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		Version:        version,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("ethos-r4r shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("ethos-r4r stopped")
	return nil
}
