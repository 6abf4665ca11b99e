package analysis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-ethos/ethos-r4r/internal/model"
)

func rawActivity(t *testing.T, body string) RawActivity {
	t.Helper()
	var a RawActivity
	require.NoError(t, json.Unmarshal([]byte(body), &a))
	return a
}

func TestNormalize_FlatScoreEncoding(t *testing.T) {
	a := rawActivity(t, `{
		"id": "rev-1",
		"timestamp": "2026-03-01T12:00:00Z",
		"score": "positive",
		"author": {"userkey": "profileId:1", "name": "Alice"},
		"subject": {"userkey": "profileId:2", "name": "Bob"}
	}`)

	records := Normalize([]RawActivity{a}, model.DirectionGiven)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "rev-1", r.ID)
	assert.Equal(t, model.RatingPositive, r.Rating)
	assert.Equal(t, model.DirectionGiven, r.Direction)
	assert.Equal(t, "profileId:2", r.CounterpartKey, "given records point at the subject")
	assert.Equal(t, "Bob", r.CounterpartName)
	assert.True(t, r.TimestampValid)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), r.Timestamp)
}

func TestNormalize_NestedDataScoreEncoding(t *testing.T) {
	a := rawActivity(t, `{
		"id": 42,
		"timestamp": 1740830400,
		"data": {"score": "negative"},
		"author": {"userkey": "profileId:1", "name": "Alice"},
		"subject": {"userkey": "profileId:2", "name": "Bob"}
	}`)

	records := Normalize([]RawActivity{a}, model.DirectionReceived)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "42", r.ID, "numeric IDs normalize to strings")
	assert.Equal(t, model.RatingNegative, r.Rating)
	assert.Equal(t, "profileId:1", r.CounterpartKey, "received records point at the author")
}

func TestNormalize_LegacyContentRatingEncoding(t *testing.T) {
	a := rawActivity(t, `{
		"id": "rev-3",
		"timestamp": "2026-01-01T00:00:00Z",
		"content": {"rating": "NEUTRAL"},
		"author": {"userkey": "profileId:1"},
		"subject": {"userkey": "profileId:2"}
	}`)

	records := Normalize([]RawActivity{a}, model.DirectionGiven)
	require.Len(t, records, 1)
	assert.Equal(t, model.RatingNeutral, records[0].Rating)
}

func TestNormalize_UnknownRatingNeverFails(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing everywhere", `{"id":"a","timestamp":"2026-01-01T00:00:00Z","author":{"userkey":"u1"},"subject":{"userkey":"u2"}}`},
		{"unrecognized value", `{"id":"b","timestamp":"2026-01-01T00:00:00Z","score":"amazing","author":{"userkey":"u1"},"subject":{"userkey":"u2"}}`},
		{"empty nested", `{"id":"c","timestamp":"2026-01-01T00:00:00Z","data":{"score":""},"author":{"userkey":"u1"},"subject":{"userkey":"u2"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := Normalize([]RawActivity{rawActivity(t, tt.body)}, model.DirectionGiven)
			require.Len(t, records, 1)
			assert.Equal(t, model.RatingUnknown, records[0].Rating)
		})
	}
}

func TestNormalize_FlatEncodingWinsOverNested(t *testing.T) {
	a := rawActivity(t, `{
		"id": "rev-4",
		"timestamp": "2026-01-01T00:00:00Z",
		"score": "positive",
		"data": {"score": "negative"},
		"author": {"userkey": "u1"},
		"subject": {"userkey": "u2"}
	}`)
	records := Normalize([]RawActivity{a}, model.DirectionGiven)
	require.Len(t, records, 1)
	assert.Equal(t, model.RatingPositive, records[0].Rating)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		raw   string
		want  time.Time
		valid bool
	}{
		{"iso8601", `"2026-03-01T12:00:00Z"`, want, true},
		{"iso8601 offset", `"2026-03-01T14:00:00+02:00"`, want, true},
		{"unix seconds", `1772366400`, want, true},
		{"unix millis", `1772366400000`, want, true},
		{"unix seconds as string", `"1772366400"`, want, true},
		{"garbage string", `"not a date"`, time.Time{}, false},
		{"null", `null`, time.Time{}, false},
		{"empty string", `""`, time.Time{}, false},
		{"negative", `-5`, time.Time{}, false},
		{"zero", `0`, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTimestamp(json.RawMessage(tt.raw))
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize_InvalidTimestampRetainsRecord(t *testing.T) {
	a := rawActivity(t, `{
		"id": "rev-5",
		"timestamp": "unparseable",
		"score": "positive",
		"author": {"userkey": "u1"},
		"subject": {"userkey": "u2"}
	}`)
	records := Normalize([]RawActivity{a}, model.DirectionGiven)
	require.Len(t, records, 1)
	assert.False(t, records[0].TimestampValid, "invalid timestamp marks the record instead of dropping it")
	assert.Equal(t, model.RatingPositive, records[0].Rating)
}

func TestFilterActive(t *testing.T) {
	records := []model.ActivityRecord{
		{ID: "1", Archived: false},
		{ID: "2", Archived: true},
		{ID: "3", Archived: false},
	}
	active := FilterActive(records)
	require.Len(t, active, 2)
	assert.Equal(t, "1", active[0].ID)
	assert.Equal(t, "3", active[1].ID)
}
