package analysis

import (
	"time"

	"github.com/trust-ethos/ethos-r4r/internal/model"
)

// Engine runs the full analysis pipeline for one subject: filter, pair,
// timing, score, assemble. It holds only the formula and a clock, so a
// single Engine is safe to share across concurrent analyses.
type Engine struct {
	formula Formula
	now     func() time.Time
}

// NewEngine creates an engine with the given formula.
func NewEngine(formula Formula) *Engine {
	return &Engine{formula: formula, now: time.Now}
}

// NewEngineAt creates an engine with a fixed clock. Analysis output is fully
// determined by its inputs and the clock, so tests pin the clock to assert
// byte-identical results.
func NewEngineAt(formula Formula, now func() time.Time) *Engine {
	return &Engine{formula: formula, now: now}
}

// Analyze computes one subject's complete analysis from its two normalized
// activity streams. Archived records are dropped before anything else;
// everything downstream sees only active records.
func (e *Engine) Analyze(subject string, given, received []model.ActivityRecord) model.AnalysisResult {
	given = FilterActive(given)
	received = FilterActive(received)

	pairs := Pair(given, received)
	timing := AnalyzeTiming(pairs)

	reciprocal := 0
	for _, p := range pairs {
		if p.Reciprocal {
			reciprocal++
		}
	}

	ageDays, ageKnown := accountAge(e.now(), given, received)
	in := ScoreInput{
		Given:               len(given),
		Received:            len(received),
		Reciprocal:          reciprocal,
		QuickReciprocations: timing.QuickReciprocations,
		AccountAgeDays:      ageDays,
		AccountAgeKnown:     ageKnown,
	}
	breakdown := e.formula.Score(in)

	result := model.AnalysisResult{
		Subject:             subject,
		Given:               len(given),
		Received:            len(received),
		Reciprocal:          reciprocal,
		QuickReciprocations: timing.QuickReciprocations,
		AvgReciprocalDays:   timing.AvgReciprocalDays,
		AccountAgeDays:      ageDays,
		Breakdown:           breakdown,
		RiskLevel:           model.RiskLevelForScore(breakdown.FinalScore),
		FormulaVersion:      e.formula.Version,
		Pairs:               pairs,
		AnalyzedAt:          e.now().UTC(),
	}
	if ageKnown {
		result.ReviewsPerDay = reviewsPerDay(in)
	}
	return result
}

// accountAge estimates account age from the earliest valid timestamp across
// both streams. Records with unparseable timestamps are skipped; when none
// is parseable the age is unknown and the scorer applies no age multiplier.
func accountAge(now time.Time, streams ...[]model.ActivityRecord) (float64, bool) {
	var earliest time.Time
	found := false
	for _, records := range streams {
		for _, r := range records {
			if !r.TimestampValid {
				continue
			}
			if !found || r.Timestamp.Before(earliest) {
				earliest = r.Timestamp
				found = true
			}
		}
	}
	if !found {
		return 0, false
	}
	days := now.Sub(earliest).Seconds() / secondsPerDay
	if days < 0 {
		days = 0
	}
	return days, true
}
