package ethos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-ethos/ethos-r4r/internal/model"
)

func TestActivities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/activities/author", r.URL.Path)
		assert.Equal(t, "profileId:7", r.URL.Query().Get("userkey"))
		assert.Equal(t, "review", r.URL.Query().Get("activityType"))
		assert.Equal(t, "500", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"values": [
				{"id": "r1", "timestamp": "2026-03-01T12:00:00Z", "data": {"score": "positive"},
				 "author": {"userkey": "profileId:7"}, "subject": {"userkey": "profileId:9", "name": "Bob"}}
			],
			"total": 1, "limit": 500, "offset": 0
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	values, err := c.Activities(context.Background(), "profileId:7", model.DirectionGiven)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "profileId:9", values[0].Subject.Userkey)
}

func TestActivities_ReceivedUsesSubjectRole(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"values": [], "total": 0, "limit": 500, "offset": 0}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Activities(context.Background(), "profileId:7", model.DirectionReceived)
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/activities/subject", path)
}

func TestActivities_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Activities(context.Background(), "profileId:7", model.DirectionGiven)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestActivities_MalformedBodyIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"values": [`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Activities(context.Background(), "profileId:7", model.DirectionGiven)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/users/profileId:7", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"userkey": "profileId:7", "displayName": "Alice", "username": "alice",
			"avatarUrl": "https://cdn.example/a.png", "score": 1450, "xpTotal": 98765
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	p, err := c.User(context.Background(), "profileId:7")
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.DisplayName)
	assert.Equal(t, 1450, p.Score)
	assert.Equal(t, int64(98765), p.XP)
}

func TestUser_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.User(context.Background(), "profileId:404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/users/search", r.URL.Path)
		assert.Equal(t, "ali", r.URL.Query().Get("query"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"values": [
			{"userkey": "profileId:7", "displayName": "Alice", "username": "alice", "score": 1450},
			{"userkey": "profileId:8", "displayName": "Alina", "username": "alina", "score": 1200}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	got, err := c.SearchUsers(context.Background(), "ali", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Username)
}
