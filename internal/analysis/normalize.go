// Package analysis implements the reciprocal-review (R4R) detection engine:
// payload normalization, counterpart pairing, timing analysis, and the
// versioned risk-scoring formula. Every function in this package is pure —
// no I/O, no shared state — so the engine is safe to run concurrently for
// different subjects.
package analysis

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/trust-ethos/ethos-r4r/internal/model"
)

// RawActor is the identity block attached to each side of an upstream
// activity.
type RawActor struct {
	Userkey   string `json:"userkey"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar,omitempty"`
}

// RawActivity mirrors one activity object from the upstream API. Two rating
// encodings have shipped historically — a flat "score" field and a nested
// "data.score" (briefly "content.rating") — so all three locations are
// modeled and resolved in Normalize.
type RawActivity struct {
	ID        json.RawMessage `json:"id"`
	Timestamp json.RawMessage `json:"timestamp"`
	Archived  bool            `json:"archived"`

	Score   string `json:"score,omitempty"`
	Data    *RawActivityData    `json:"data,omitempty"`
	Content *RawActivityContent `json:"content,omitempty"`

	Author  RawActor `json:"author"`
	Subject RawActor `json:"subject"`
}

// RawActivityData is the current nested payload shape.
type RawActivityData struct {
	Score string `json:"score"`
}

// RawActivityContent is the legacy nested payload shape.
type RawActivityContent struct {
	Rating string `json:"rating"`
}

// Normalize converts raw upstream activities into canonical records for the
// requested direction. It never fails: unrecognized ratings resolve to
// RatingUnknown and unparseable timestamps are retained with
// TimestampValid=false so the record still counts toward totals while being
// excluded from timing-dependent calculations.
func Normalize(raw []RawActivity, dir model.Direction) []model.ActivityRecord {
	records := make([]model.ActivityRecord, 0, len(raw))
	for _, a := range raw {
		counterpart := a.Subject
		if dir == model.DirectionReceived {
			counterpart = a.Author
		}

		ts, ok := parseTimestamp(a.Timestamp)
		records = append(records, model.ActivityRecord{
			ID:                parseID(a.ID),
			Timestamp:         ts,
			TimestampValid:    ok,
			Archived:          a.Archived,
			CounterpartKey:    counterpart.Userkey,
			CounterpartName:   counterpart.Name,
			CounterpartAvatar: counterpart.AvatarURL,
			Direction:         dir,
			Rating:            resolveRating(a),
		})
	}
	return records
}

// FilterActive drops archived records before pairing.
func FilterActive(records []model.ActivityRecord) []model.ActivityRecord {
	active := make([]model.ActivityRecord, 0, len(records))
	for _, r := range records {
		if !r.Archived {
			active = append(active, r)
		}
	}
	return active
}

// resolveRating picks the first populated rating location: flat score field,
// then data.score, then the legacy content.rating.
func resolveRating(a RawActivity) model.Rating {
	if a.Score != "" {
		return parseRating(a.Score)
	}
	if a.Data != nil && a.Data.Score != "" {
		return parseRating(a.Data.Score)
	}
	if a.Content != nil && a.Content.Rating != "" {
		return parseRating(a.Content.Rating)
	}
	return model.RatingUnknown
}

func parseRating(s string) model.Rating {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return model.RatingPositive
	case "negative":
		return model.RatingNegative
	case "neutral":
		return model.RatingNeutral
	default:
		return model.RatingUnknown
	}
}

// parseTimestamp accepts the three upstream timestamp encodings: ISO-8601
// strings, 10-digit Unix seconds, and 13-digit Unix milliseconds. Numeric
// strings are treated the same as bare numbers. Anything else reports
// ok=false rather than producing a silently wrong instant.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false
		}
	} else {
		s = string(raw)
	}
	s = strings.TrimSpace(s)

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromUnix(n)
	}
	// Fractional Unix timestamps occasionally appear in older exports.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromUnix(int64(f))
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// fromUnix distinguishes seconds from milliseconds by digit count: 13+ digit
// values are milliseconds, everything else seconds. Non-positive values are
// rejected — the upstream network did not exist before 1970.
func fromUnix(n int64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n >= 1_000_000_000_000 { // 13 digits
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}

// parseID normalizes the opaque activity ID, which upstream emits as either
// a JSON string or a number.
func parseID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
