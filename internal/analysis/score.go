package analysis

import (
	"math"

	"github.com/trust-ethos/ethos-r4r/internal/model"
)

// VolumeTier maps a minimum reciprocal count to a score multiplier.
type VolumeTier struct {
	MinReciprocal int
	Multiplier    float64
}

// AgeTier maps a review-velocity/account-age combination to a multiplier.
// A tier matches when ReviewsPerDay is strictly above MinReviewsPerDay and
// the account is strictly younger than MaxAgeDays.
type AgeTier struct {
	MinReviewsPerDay float64
	MaxAgeDays       float64
	Multiplier       float64
}

// PenaltyTier maps a quick-reciprocation ratio band to an additive penalty
// of the form Flat + ratio*Scale. MinQuick gates each band on an absolute
// quick count so a single fast exchange cannot trigger the top band.
type PenaltyTier struct {
	MinRatio float64
	MinQuick int
	Flat     float64
	Scale    float64
}

// Formula is the complete constants table for one version of the scoring
// formula. Several near-identical copies of these constants drifted apart
// historically; they are collapsed here and every result is stamped with the
// version so stored scores stay interpretable across formula changes.
type Formula struct {
	Version string

	// BaseCap limits the pre-multiplier base score so multipliers and the
	// time penalty can still move the final value toward 100.
	BaseCap float64

	// Tiers are evaluated in order; first match wins.
	VolumeTiers  []VolumeTier
	AgeTiers     []AgeTier
	PenaltyTiers []PenaltyTier

	// MinReciprocalForPenalty gates the time penalty entirely.
	MinReciprocalForPenalty int
}

// CurrentFormula is the live constants table.
var CurrentFormula = Formula{
	Version: "v3",
	BaseCap: 65,
	VolumeTiers: []VolumeTier{
		{MinReciprocal: 50, Multiplier: 1.20},
		{MinReciprocal: 20, Multiplier: 1.15},
		{MinReciprocal: 10, Multiplier: 1.05},
	},
	AgeTiers: []AgeTier{
		{MinReviewsPerDay: 10, MaxAgeDays: 30, Multiplier: 1.40},
		{MinReviewsPerDay: 5, MaxAgeDays: 60, Multiplier: 1.25},
		{MinReviewsPerDay: 2, MaxAgeDays: 90, Multiplier: 1.10},
	},
	PenaltyTiers: []PenaltyTier{
		{MinRatio: 0.8, MinQuick: 3, Flat: 10, Scale: 5},
		{MinRatio: 0.6, MinQuick: 3, Flat: 8, Scale: 4},
		{MinRatio: 0.4, MinQuick: 2, Flat: 5, Scale: 3},
		{MinRatio: 0.2, MinQuick: 2, Flat: 2, Scale: 2},
	},
	MinReciprocalForPenalty: 2,
}

// ScoreInput is everything the formula consumes. Counts are post-filter
// (archived records excluded).
type ScoreInput struct {
	Given               int
	Received            int
	Reciprocal          int
	QuickReciprocations int

	// AccountAgeDays estimates account age from the earliest valid
	// timestamp. AccountAgeKnown is false when no record in either stream
	// carries a parseable timestamp; an unknown age never inflates the
	// score.
	AccountAgeDays  float64
	AccountAgeKnown bool
}

// Score runs the four-stage pipeline: base rate, volume multiplier,
// account-age multiplier, time penalty. Every division is guarded; a zero
// denominator short-circuits to zero rather than failing. The final score
// is always an integer in [0, 100].
func (f Formula) Score(in ScoreInput) model.ScoreBreakdown {
	b := model.ScoreBreakdown{
		VolumeMultiplier:     1.0,
		AccountAgeMultiplier: 1.0,
	}

	if in.Received > 0 {
		b.BaseScore = math.Min(float64(in.Reciprocal)/float64(in.Received)*100, f.BaseCap)
	}

	for _, t := range f.VolumeTiers {
		if in.Reciprocal >= t.MinReciprocal {
			b.VolumeMultiplier = t.Multiplier
			break
		}
	}

	if in.AccountAgeKnown {
		reviewsPerDay := reviewsPerDay(in)
		for _, t := range f.AgeTiers {
			if reviewsPerDay > t.MinReviewsPerDay && in.AccountAgeDays < t.MaxAgeDays {
				b.AccountAgeMultiplier = t.Multiplier
				break
			}
		}
	}

	b.ScoreAfterMultipliers = b.BaseScore * b.VolumeMultiplier * b.AccountAgeMultiplier
	b.TimePenalty = f.timePenalty(in)

	final := math.Min(b.ScoreAfterMultipliers+b.TimePenalty, 100)
	if final < 0 {
		final = 0
	}
	b.FinalScore = int(math.Round(final))
	return b
}

func (f Formula) timePenalty(in ScoreInput) float64 {
	if in.Reciprocal < f.MinReciprocalForPenalty {
		return 0
	}
	ratio := float64(in.QuickReciprocations) / float64(in.Reciprocal)
	for _, t := range f.PenaltyTiers {
		if ratio >= t.MinRatio && in.QuickReciprocations >= t.MinQuick {
			return t.Flat + ratio*t.Scale
		}
	}
	return 0
}

// reviewsPerDay computes total review velocity with the age clamped to at
// least one day.
func reviewsPerDay(in ScoreInput) float64 {
	return float64(in.Given+in.Received) / math.Max(in.AccountAgeDays, 1)
}
