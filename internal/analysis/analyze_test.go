package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-ethos/ethos-r4r/internal/model"
)

func fixedNow() time.Time {
	return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
}

// streamsFor builds symmetric given/received streams: `received` counterparts
// review the subject, the first `reciprocal` of them get a review back, and
// the first `quick` of those reciprocate within a minute. Timestamps sit far
// enough in the past that the account looks old and slow.
func streamsFor(received, reciprocal, quick int) (g, r []model.ActivityRecord) {
	start := fixedNow().Add(-200 * 24 * time.Hour)
	for i := 0; i < received; i++ {
		key := fmt.Sprintf("u%d", i)
		ts := start.Add(time.Duration(i) * 24 * time.Hour)
		r = append(r, record(key, key, model.DirectionReceived, model.RatingPositive, ts))
		if i < reciprocal {
			gap := 12 * time.Hour
			if i < quick {
				gap = time.Minute
			}
			g = append(g, record(key, key, model.DirectionGiven, model.RatingPositive, ts.Add(gap)))
		}
	}
	return g, r
}

func TestEngineAnalyze_HighRiskScenario(t *testing.T) {
	engine := NewEngineAt(CurrentFormula, fixedNow)
	given, received := streamsFor(10, 8, 8)

	res := engine.Analyze("subject-1", given, received)

	assert.Equal(t, 10, res.Received)
	assert.Equal(t, 8, res.Given)
	assert.Equal(t, 8, res.Reciprocal)
	assert.Equal(t, 8, res.QuickReciprocations)
	assert.Equal(t, 80, res.Breakdown.FinalScore)
	assert.Equal(t, model.RiskHigh, res.RiskLevel)
	assert.Equal(t, "v3", res.FormulaVersion)
}

func TestEngineAnalyze_EmptyInputs(t *testing.T) {
	engine := NewEngineAt(CurrentFormula, fixedNow)
	res := engine.Analyze("subject-1", nil, nil)

	assert.Zero(t, res.Given)
	assert.Zero(t, res.Received)
	assert.Zero(t, res.Breakdown.FinalScore)
	assert.Equal(t, model.RiskLow, res.RiskLevel)
	assert.Empty(t, res.Pairs)
}

func TestEngineAnalyze_ArchivedExcludedEverywhere(t *testing.T) {
	engine := NewEngineAt(CurrentFormula, fixedNow)
	given, received := streamsFor(4, 4, 0)
	received[0].Archived = true

	res := engine.Analyze("subject-1", given, received)

	assert.Equal(t, 3, res.Received, "archived records never count toward totals")
	assert.Equal(t, 3, res.Reciprocal)
	for _, p := range res.Pairs {
		if p.Received != nil {
			assert.False(t, p.Received.Archived)
		}
	}
}

func TestEngineAnalyze_InvalidTimestampsStillCount(t *testing.T) {
	engine := NewEngineAt(CurrentFormula, fixedNow)
	given, received := streamsFor(5, 5, 5)
	for i := range received {
		received[i].Timestamp = time.Time{}
		received[i].TimestampValid = false
	}

	res := engine.Analyze("subject-1", given, received)

	assert.Equal(t, 5, res.Received, "records with bad timestamps count toward totals")
	assert.Equal(t, 5, res.Reciprocal)
	assert.Zero(t, res.QuickReciprocations, "bad timestamps drop out of timing")
}

func TestEngineAnalyze_NoValidTimestampsDisablesAgeMultiplier(t *testing.T) {
	engine := NewEngineAt(CurrentFormula, fixedNow)
	given, received := streamsFor(40, 40, 0)
	for i := range given {
		given[i].TimestampValid = false
	}
	for i := range received {
		received[i].TimestampValid = false
	}

	res := engine.Analyze("subject-1", given, received)

	assert.Zero(t, res.AccountAgeDays)
	assert.Zero(t, res.ReviewsPerDay)
	assert.Equal(t, 1.00, res.Breakdown.AccountAgeMultiplier)
}

func TestEngineAnalyze_Deterministic(t *testing.T) {
	engine := NewEngineAt(CurrentFormula, fixedNow)
	given, received := streamsFor(20, 15, 6)

	first := engine.Analyze("subject-1", given, received)
	second := engine.Analyze("subject-1", given, received)

	require.Equal(t, first, second, "identical inputs must produce identical results")
}

func TestEngineAnalyze_AccountAge(t *testing.T) {
	engine := NewEngineAt(CurrentFormula, fixedNow)
	ts := fixedNow().Add(-90 * 24 * time.Hour)
	given := []model.ActivityRecord{record("u1", "Alice", model.DirectionGiven, model.RatingPositive, ts)}
	received := []model.ActivityRecord{record("u2", "Bob", model.DirectionReceived, model.RatingPositive, ts.Add(40*24*time.Hour))}

	res := engine.Analyze("subject-1", given, received)
	assert.InDelta(t, 90, res.AccountAgeDays, 1e-9, "age derives from the earliest timestamp across both streams")
}
