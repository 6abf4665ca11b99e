package scan

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trust-ethos/ethos-r4r/internal/model"
)

// Discovery methods recorded per scanned subject.
const (
	DiscoverySeed        = "seed"
	DiscoverySeedFile    = "seed_file"
	DiscoveryLeaderboard = "leaderboard"
)

// Row statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Subject is one scan target and how it was discovered.
type Subject struct {
	Userkey         string
	DiscoveryMethod string
}

// Analyzer runs one analysis. Satisfied by the analyzer service.
type Analyzer interface {
	Analyze(ctx context.Context, userkey string) (model.AnalysisResult, model.Profile, error)
}

// Summary aggregates one scan run.
type Summary struct {
	Total    int
	Failed   int
	HighRisk int
	Elapsed  time.Duration
}

// Runner scans a batch of subjects with bounded concurrency and writes one
// CSV row per subject. Rate control lives here; the analyzer itself has no
// notion of batches or delays.
type Runner struct {
	analyzer    Analyzer
	logger      *slog.Logger
	concurrency int
	delay       time.Duration
	now         func() time.Time
}

// NewRunner creates a Runner. Concurrency below 1 is treated as 1.
func NewRunner(analyzer Analyzer, logger *slog.Logger, concurrency int, delay time.Duration) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		analyzer:    analyzer,
		logger:      logger,
		concurrency: concurrency,
		delay:       delay,
		now:         time.Now,
	}
}

var reportHeader = []string{
	"timestamp", "name", "userkey",
	"score", "ethos_score", "ethos_xp", "risk_level",
	"given", "received", "avg_reciprocal_days",
	"processing_ms", "status", "error", "discovery_method",
}

// Run scans all subjects and streams rows to out. A failed subject produces
// a row with status "failed"; it never aborts the batch. Returns the summary
// and the first context error, if the run was cancelled.
func (r *Runner) Run(ctx context.Context, subjects []Subject, out io.Writer) (Summary, error) {
	start := r.now()

	cw := csv.NewWriter(out)
	if err := cw.Write(reportHeader); err != nil {
		return Summary{}, fmt.Errorf("write header: %w", err)
	}

	var mu sync.Mutex
	summary := Summary{Total: len(subjects)}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			row, ok, high := r.scanOne(ctx, subject)
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				summary.Failed++
			}
			if high {
				summary.HighRisk++
			}
			return cw.Write(row)
		})
		if r.delay > 0 {
			select {
			case <-time.After(r.delay):
			case <-ctx.Done():
			}
		}
	}

	err := g.Wait()
	cw.Flush()
	if err == nil {
		err = cw.Error()
	}
	summary.Elapsed = r.now().Sub(start)

	r.logger.Info("scan complete",
		"total", summary.Total,
		"failed", summary.Failed,
		"high_risk", summary.HighRisk,
		"elapsed", summary.Elapsed,
	)
	return summary, err
}

func (r *Runner) scanOne(ctx context.Context, subject Subject) (row []string, ok, highRisk bool) {
	started := r.now()
	result, profile, err := r.analyzer.Analyze(ctx, subject.Userkey)
	elapsed := r.now().Sub(started)

	if err != nil {
		r.logger.Warn("scan subject failed", "subject", subject.Userkey, "error", err)
		return failedRow(started, subject, elapsed, err), false, false
	}

	name := profile.DisplayName
	if name == "" {
		name = profile.Username
	}
	row = []string{
		started.UTC().Format(time.RFC3339),
		name,
		subject.Userkey,
		strconv.Itoa(result.Breakdown.FinalScore),
		strconv.Itoa(profile.Score),
		strconv.FormatInt(profile.XP, 10),
		string(result.RiskLevel),
		strconv.Itoa(result.Given),
		strconv.Itoa(result.Received),
		strconv.FormatFloat(result.AvgReciprocalDays, 'f', 4, 64),
		strconv.FormatInt(elapsed.Milliseconds(), 10),
		StatusOK,
		"",
		subject.DiscoveryMethod,
	}
	return row, true, result.RiskLevel == model.RiskHigh
}

func failedRow(started time.Time, subject Subject, elapsed time.Duration, err error) []string {
	return []string{
		started.UTC().Format(time.RFC3339),
		"",
		subject.Userkey,
		"", "", "", "",
		"", "", "",
		strconv.FormatInt(elapsed.Milliseconds(), 10),
		StatusFailed,
		err.Error(),
		subject.DiscoveryMethod,
	}
}
