package model

import "time"

// RiskLevel is the three-tier bucket derived from the final score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Risk tier boundaries. HIGH at 70+, MODERATE at 40+.
const (
	HighRiskThreshold     = 70
	ModerateRiskThreshold = 40
)

// RiskLevelForScore buckets a final score into a risk level.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= HighRiskThreshold:
		return RiskHigh
	case score >= ModerateRiskThreshold:
		return RiskModerate
	default:
		return RiskLow
	}
}

// ScoreBreakdown retains every stage of the scoring formula so a result can
// be audited without re-running the analysis.
type ScoreBreakdown struct {
	BaseScore             float64 `json:"base_score"`
	VolumeMultiplier      float64 `json:"volume_multiplier"`
	AccountAgeMultiplier  float64 `json:"account_age_multiplier"`
	ScoreAfterMultipliers float64 `json:"score_after_multipliers"`
	TimePenalty           float64 `json:"time_penalty"`
	FinalScore            int     `json:"final_score"`
}

// AnalysisResult is the complete outcome of one R4R analysis run for one
// subject. Computed fresh on every request and never mutated afterwards.
type AnalysisResult struct {
	Subject string `json:"subject"`

	Given               int `json:"given"`
	Received            int `json:"received"`
	Reciprocal          int `json:"reciprocal"`
	QuickReciprocations int `json:"quick_reciprocations"`

	// AvgReciprocalDays is the mean absolute gap across reciprocal pairs
	// with valid timestamps on both sides. Zero when no such pair exists.
	AvgReciprocalDays float64 `json:"avg_reciprocal_days"`

	// AccountAgeDays is estimated from the earliest parseable timestamp
	// across both streams. Zero when no record carries a valid timestamp.
	AccountAgeDays float64 `json:"account_age_days"`
	ReviewsPerDay  float64 `json:"reviews_per_day"`

	Breakdown ScoreBreakdown `json:"breakdown"`
	RiskLevel RiskLevel      `json:"risk_level"`

	// FormulaVersion identifies the constants table the score was computed
	// with, so historical results stay interpretable after formula changes.
	FormulaVersion string `json:"formula_version"`

	Pairs []ReviewPair `json:"pairs"`

	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Profile is the upstream identity card for a user: reputation score and XP
// come from the network itself, not from this service.
type Profile struct {
	Userkey     string `json:"userkey"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar,omitempty"`
	Score       int    `json:"score"`
	XP          int64  `json:"xp"`
}

// StoredAnalysis is the persisted form of an analysis: the result plus a
// snapshot of the subject's upstream profile at analysis time. One row per
// subject; re-analysis replaces the previous row.
type StoredAnalysis struct {
	Subject     string `json:"subject"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar,omitempty"`

	Score     int       `json:"score"`
	RiskLevel RiskLevel `json:"risk_level"`

	Given               int     `json:"given"`
	Received            int     `json:"received"`
	Reciprocal          int     `json:"reciprocal"`
	QuickReciprocations int     `json:"quick_reciprocations"`
	AvgReciprocalDays   float64 `json:"avg_reciprocal_days"`

	EthosScore int   `json:"ethos_score"`
	EthosXP    int64 `json:"ethos_xp"`

	Breakdown      ScoreBreakdown `json:"breakdown"`
	Pairs          []ReviewPair   `json:"pairs,omitempty"`
	FormulaVersion string         `json:"formula_version"`

	AnalyzedAt time.Time `json:"analyzed_at"`
}
