package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-ethos/ethos-r4r/internal/model"
	"github.com/trust-ethos/ethos-r4r/internal/testutil"
)

type fakeUpstream struct {
	calls    int
	profiles []model.Profile
	err      error
}

func (f *fakeUpstream) SearchUsers(ctx context.Context, query string, limit int) ([]model.Profile, error) {
	f.calls++
	return f.profiles, f.err
}

func TestSearch_CachesResults(t *testing.T) {
	up := &fakeUpstream{profiles: []model.Profile{{Userkey: "u1", Username: "alice"}}}
	svc := NewService(up, NewCache(time.Minute, 10), testutil.TestLogger())

	for i := 0; i < 3; i++ {
		got, err := svc.Search(context.Background(), "ali", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
	}
	assert.Equal(t, 1, up.calls, "repeated queries must hit the cache")
}

func TestSearch_CacheKeyFoldsCase(t *testing.T) {
	up := &fakeUpstream{profiles: []model.Profile{{Userkey: "u1"}}}
	svc := NewService(up, NewCache(time.Minute, 10), testutil.TestLogger())

	_, err := svc.Search(context.Background(), "Alice", 10)
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), "alice ", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, up.calls)
}

func TestSearch_UpstreamErrorPropagates(t *testing.T) {
	up := &fakeUpstream{err: errors.New("boom")}
	svc := NewService(up, NewCache(time.Minute, 10), testutil.TestLogger())

	_, err := svc.Search(context.Background(), "ali", 10)
	assert.Error(t, err)
}

func TestSearch_EmptyQuery(t *testing.T) {
	up := &fakeUpstream{}
	svc := NewService(up, NewCache(time.Minute, 10), testutil.TestLogger())

	got, err := svc.Search(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, up.calls)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache(time.Minute, 10)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("ali", []model.Profile{{Userkey: "u1"}})
	_, ok := c.Get("ali")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("ali")
	assert.False(t, ok, "expired entries must miss")
}

func TestCache_EvictsWhenFull(t *testing.T) {
	c := NewCache(time.Minute, 2)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("a", nil)
	now = now.Add(time.Second)
	c.Put("b", nil)
	now = now.Add(time.Second)
	c.Put("c", nil)

	assert.LessOrEqual(t, c.Len(), 2)
	_, ok := c.Get("a")
	assert.False(t, ok, "the oldest entry is evicted first")
}
