// Package model defines the domain types shared across the R4R analysis
// pipeline: normalized activity records, counterpart review pairs, and the
// scored analysis result.
package model

import "time"

// Direction indicates which side of a review the analyzed subject is on.
type Direction string

const (
	// DirectionGiven marks reviews the subject authored.
	DirectionGiven Direction = "given"
	// DirectionReceived marks reviews written about the subject.
	DirectionReceived Direction = "received"
)

// Rating is the canonical review sentiment after normalization.
// Upstream payloads encode this in two historical shapes; the normalizer
// resolves both into this enum and never lets payload shape leak downstream.
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
	RatingNeutral  Rating = "neutral"
	RatingUnknown  Rating = "unknown"
)

// ActivityRecord is one review event, normalized from an upstream activity
// payload. Records are immutable once created and discarded after one
// analysis run.
type ActivityRecord struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	TimestampValid bool      `json:"timestamp_valid"`
	Archived       bool      `json:"archived"`

	// CounterpartKey is the stable userkey of the other party, never the
	// subject under analysis. It is the join key for pairing and is matched
	// exactly (no case normalization).
	CounterpartKey    string `json:"counterpart_key"`
	CounterpartName   string `json:"counterpart_name,omitempty"`
	CounterpartAvatar string `json:"counterpart_avatar,omitempty"`

	Direction Direction `json:"direction"`
	Rating    Rating    `json:"rating"`
}

// ReviewPair is one counterpart relationship: the subject's given review
// and/or the counterpart's received review, joined by counterpart key.
// At most one pair exists per counterpart within a single analysis.
type ReviewPair struct {
	CounterpartKey    string `json:"counterpart_key"`
	CounterpartName   string `json:"counterpart_name,omitempty"`
	CounterpartAvatar string `json:"counterpart_avatar,omitempty"`

	Given    *ActivityRecord `json:"given,omitempty"`
	Received *ActivityRecord `json:"received,omitempty"`

	// Reciprocal is true only when both sides exist and both ratings are
	// positive.
	Reciprocal bool `json:"reciprocal"`

	// TimeDifferenceDays is the absolute gap between the two reviews in
	// days. Nil when either side is missing or has an unparseable timestamp.
	TimeDifferenceDays *float64 `json:"time_difference_days,omitempty"`

	// QuickReciprocation is true for reciprocal pairs whose reviews are
	// less than 30 minutes apart.
	QuickReciprocation bool `json:"quick_reciprocation"`

	// CounterpartScore is the counterpart's previously computed farming
	// score from the leaderboard store. Display-only annotation; nil means
	// unknown, never zero. It does not feed the subject's own score.
	CounterpartScore *int `json:"counterpart_score,omitempty"`
}
