package analysis

import (
	"github.com/trust-ethos/ethos-r4r/internal/model"
)

// QuickReciprocationDays is the "quick" classification threshold: 30 minutes
// expressed in days. Every component that reports quick reciprocations —
// scorer, result assembler, display — must reference this constant rather
// than carry its own copy.
const QuickReciprocationDays = 1.0 / 48

const secondsPerDay = 86400.0

// TimingSummary aggregates the timing signals the scorer consumes.
type TimingSummary struct {
	// QuickReciprocations counts reciprocal pairs with a gap strictly under
	// QuickReciprocationDays. One-way exchanges never count, no matter how
	// fast.
	QuickReciprocations int

	// AvgReciprocalDays is the mean gap across reciprocal pairs with valid
	// timestamps on both sides. Zero when no such pair exists.
	AvgReciprocalDays float64
}

// AnalyzeTiming fills TimeDifferenceDays and QuickReciprocation on each pair
// in place and returns the aggregate summary. Pairs missing a side, or with
// an unparseable timestamp on either side, carry no time difference and are
// excluded from every timing-dependent number.
func AnalyzeTiming(pairs []model.ReviewPair) TimingSummary {
	var sum TimingSummary
	var total float64
	var timed int

	for i := range pairs {
		p := &pairs[i]
		if p.Given == nil || p.Received == nil {
			continue
		}
		if !p.Given.TimestampValid || !p.Received.TimestampValid {
			continue
		}

		diff := p.Given.Timestamp.Sub(p.Received.Timestamp).Seconds() / secondsPerDay
		if diff < 0 {
			diff = -diff
		}
		d := diff
		p.TimeDifferenceDays = &d

		if !p.Reciprocal {
			continue
		}
		total += diff
		timed++
		if diff < QuickReciprocationDays { // strict: exactly 30 minutes is not quick
			p.QuickReciprocation = true
			sum.QuickReciprocations++
		}
	}

	if timed > 0 {
		sum.AvgReciprocalDays = total / float64(timed)
	}
	return sum
}
