// Package analyzer orchestrates one full analysis: concurrent activity
// fetch, the pure scoring engine, counterpart annotation, and persistence.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/trust-ethos/ethos-r4r/internal/analysis"
	"github.com/trust-ethos/ethos-r4r/internal/model"
	"github.com/trust-ethos/ethos-r4r/internal/telemetry"
)

// Source is the upstream activity feed the service consumes.
type Source interface {
	Activities(ctx context.Context, userkey string, dir model.Direction) ([]analysis.RawActivity, error)
	User(ctx context.Context, userkey string) (model.Profile, error)
}

// Store persists results and answers counterpart score lookups.
type Store interface {
	SaveAnalysis(ctx context.Context, a model.StoredAnalysis) error
	ScoresByUserkeys(ctx context.Context, userkeys []string) (map[string]int, error)
}

// Service runs analyses. Safe for concurrent use; all state is read-only
// after construction.
type Service struct {
	source Source
	store  Store
	engine *analysis.Engine
	logger *slog.Logger
}

// New creates an analyzer service.
func New(source Source, store Store, engine *analysis.Engine, logger *slog.Logger) *Service {
	return &Service{source: source, store: store, engine: engine, logger: logger}
}

var meter = telemetry.Meter("r4r/analyzer")

// Analyze fetches both activity streams and the profile concurrently, runs
// the engine, annotates pairs with previously stored counterpart scores,
// and persists the result.
//
// The two stream fetches are independent reads but the analysis needs both:
// if either fails the whole run fails. A one-sided analysis would produce a
// misleading score, so it is never accepted as a result. The counterpart
// annotation is display-only and best-effort: a lookup failure logs a
// warning and leaves the scores untouched.
func (s *Service) Analyze(ctx context.Context, userkey string) (model.AnalysisResult, model.Profile, error) {
	start := time.Now()

	var rawGiven, rawReceived []analysis.RawActivity
	var profile model.Profile

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rawGiven, err = s.source.Activities(gctx, userkey, model.DirectionGiven)
		return err
	})
	g.Go(func() error {
		var err error
		rawReceived, err = s.source.Activities(gctx, userkey, model.DirectionReceived)
		return err
	})
	g.Go(func() error {
		var err error
		profile, err = s.source.User(gctx, userkey)
		return err
	})
	if err := g.Wait(); err != nil {
		recordOutcome(ctx, "fetch_failed", time.Since(start))
		return model.AnalysisResult{}, model.Profile{}, fmt.Errorf("analyzer: fetch activity for %s: %w", userkey, err)
	}

	given := analysis.Normalize(rawGiven, model.DirectionGiven)
	received := analysis.Normalize(rawReceived, model.DirectionReceived)
	result := s.engine.Analyze(userkey, given, received)

	s.annotatePairs(ctx, result.Pairs)

	stored := toStored(result, profile)
	if err := s.store.SaveAnalysis(ctx, stored); err != nil {
		recordOutcome(ctx, "save_failed", time.Since(start))
		return model.AnalysisResult{}, model.Profile{}, fmt.Errorf("analyzer: persist result for %s: %w", userkey, err)
	}

	s.logger.Info("analysis complete",
		"subject", userkey,
		"score", result.Breakdown.FinalScore,
		"risk_level", result.RiskLevel,
		"reciprocal", result.Reciprocal,
		"quick", result.QuickReciprocations,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	recordOutcome(ctx, string(result.RiskLevel), time.Since(start))
	return result, profile, nil
}

// annotatePairs fills CounterpartScore from the leaderboard store. Missing
// counterparts stay nil (unknown), and a failed lookup degrades to no
// annotations at all.
func (s *Service) annotatePairs(ctx context.Context, pairs []model.ReviewPair) {
	if len(pairs) == 0 {
		return
	}
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, p.CounterpartKey)
	}

	scores, err := s.store.ScoresByUserkeys(ctx, keys)
	if err != nil {
		s.logger.Warn("counterpart score lookup failed", "error", err)
		return
	}
	for i := range pairs {
		if score, ok := scores[pairs[i].CounterpartKey]; ok {
			v := score
			pairs[i].CounterpartScore = &v
		}
	}
}

func toStored(r model.AnalysisResult, p model.Profile) model.StoredAnalysis {
	return model.StoredAnalysis{
		Subject:             r.Subject,
		DisplayName:         p.DisplayName,
		Username:            p.Username,
		Avatar:              p.Avatar,
		Score:               r.Breakdown.FinalScore,
		RiskLevel:           r.RiskLevel,
		Given:               r.Given,
		Received:            r.Received,
		Reciprocal:          r.Reciprocal,
		QuickReciprocations: r.QuickReciprocations,
		AvgReciprocalDays:   r.AvgReciprocalDays,
		EthosScore:          p.Score,
		EthosXP:             p.XP,
		Breakdown:           r.Breakdown,
		Pairs:               r.Pairs,
		FormulaVersion:      r.FormulaVersion,
		AnalyzedAt:          r.AnalyzedAt,
	}
}

func recordOutcome(ctx context.Context, outcome string, d time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if counter, err := meter.Int64Counter("r4r.analyses"); err == nil {
		counter.Add(ctx, 1, attrs)
	}
	if hist, err := meter.Float64Histogram("r4r.analysis.duration", otelmetric.WithUnit("ms")); err == nil {
		hist.Record(ctx, float64(d.Milliseconds()), attrs)
	}
}
