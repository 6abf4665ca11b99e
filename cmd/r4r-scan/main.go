package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/trust-ethos/ethos-r4r/internal/analysis"
	"github.com/trust-ethos/ethos-r4r/internal/ethos"
	"github.com/trust-ethos/ethos-r4r/internal/model"
	"github.com/trust-ethos/ethos-r4r/internal/scan"
	"github.com/trust-ethos/ethos-r4r/internal/service/analyzer"
	"github.com/trust-ethos/ethos-r4r/internal/storage"
	"github.com/trust-ethos/ethos-r4r/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	configPath := flag.String("config", "scan.yaml", "path to scan configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, *configPath); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger, configPath string) error {
	_ = godotenv.Load()

	cfg, err := scan.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	slog.Info("r4r-scan starting", "version", version, "config", configPath)

	// Results go to the database only when one is configured; a pure CSV run
	// needs no infrastructure.
	var store analyzer.Store = discardStore{}
	var db *storage.DB
	if cfg.Storage.DatabaseURL != "" {
		db, err = storage.New(ctx, cfg.Storage.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		defer db.Close()
		if err := db.RunMigrations(ctx, migrations.FS); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		store = db
	}

	subjects, err := cfg.SeedSubjects()
	if err != nil {
		return fmt.Errorf("resolve subjects: %w", err)
	}
	if cfg.Subjects.RescanLeaderboard {
		stored, err := db.ListSubjects(ctx, 10_000)
		if err != nil {
			return fmt.Errorf("list stored subjects: %w", err)
		}
		seen := make(map[string]struct{}, len(subjects))
		for _, s := range subjects {
			seen[s.Userkey] = struct{}{}
		}
		for _, userkey := range stored {
			if _, ok := seen[userkey]; ok {
				continue
			}
			subjects = append(subjects, scan.Subject{Userkey: userkey, DiscoveryMethod: scan.DiscoveryLeaderboard})
		}
	}
	if len(subjects) == 0 {
		return fmt.Errorf("no subjects to scan")
	}

	client := ethos.NewClient(cfg.Ethos.BaseURL, cfg.Ethos.Timeout)
	engine := analysis.NewEngine(analysis.CurrentFormula)
	analyzerSvc := analyzer.New(client, store, engine, logger)
	runner := scan.NewRunner(analyzerSvc, logger, cfg.Runner.Concurrency, cfg.Runner.Delay)

	out, err := os.Create(cfg.Output.Path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	slog.Info("scanning", "subjects", len(subjects), "concurrency", cfg.Runner.Concurrency, "output", cfg.Output.Path)

	summary, err := runner.Run(ctx, subjects, out)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	fmt.Fprintf(os.Stdout, "scanned %d subjects (%d failed, %d high risk) in %s; report: %s\n",
		summary.Total, summary.Failed, summary.HighRisk, summary.Elapsed.Round(time.Millisecond), cfg.Output.Path)
	return nil
}

// discardStore satisfies the analyzer's persistence dependency for runs that
// only produce a CSV report.
type discardStore struct{}

func (discardStore) SaveAnalysis(context.Context, model.StoredAnalysis) error {
	return nil
}

func (discardStore) ScoresByUserkeys(context.Context, []string) (map[string]int, error) {
	return map[string]int{}, nil
}
