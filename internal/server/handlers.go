package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/trust-ethos/ethos-r4r/internal/ethos"
	"github.com/trust-ethos/ethos-r4r/internal/model"
	"github.com/trust-ethos/ethos-r4r/internal/storage"
)

// Analyzer runs a fresh analysis for one subject.
type Analyzer interface {
	Analyze(ctx context.Context, userkey string) (model.AnalysisResult, model.Profile, error)
}

// Searcher answers typeahead profile queries.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.Profile, error)
}

// Store reads previously persisted analyses.
type Store interface {
	GetAnalysis(ctx context.Context, subject string) (model.StoredAnalysis, error)
	Leaderboard(ctx context.Context, limit int, cursor *storage.LeaderboardCursor) ([]model.StoredAnalysis, *storage.LeaderboardCursor, error)
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	analyzer  Analyzer
	searcher  Searcher
	store     Store
	logger    *slog.Logger
	startedAt time.Time
	version   string
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Analyzer Analyzer
	Searcher Searcher
	Store    Store
	Logger   *slog.Logger
	Version  string
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		analyzer:  d.Analyzer,
		searcher:  d.Searcher,
		store:     d.Store,
		logger:    d.Logger,
		startedAt: time.Now(),
		version:   d.Version,
	}
}

// HandleAnalyze handles POST /v1/analyze/{userkey}: runs a fresh analysis,
// persists it, and returns the full result including pairs.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	userkey := r.PathValue("userkey")
	if userkey == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "userkey is required")
		return
	}

	result, profile, err := h.analyzer.Analyze(r.Context(), userkey)
	if err != nil {
		h.writeAnalyzeError(w, r, userkey, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"result":  result,
		"profile": profile,
	})
}

// writeAnalyzeError distinguishes "could not load data" from real internal
// failures. A fetch failure must never be presented as a zero score.
func (h *Handlers) writeAnalyzeError(w http.ResponseWriter, r *http.Request, userkey string, err error) {
	switch {
	case errors.Is(err, ethos.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "user not found on the network")
	case errors.Is(err, ethos.ErrUnavailable):
		h.logger.Warn("upstream fetch failed", "subject", userkey, "error", err)
		writeError(w, r, http.StatusBadGateway, model.ErrCodeUpstreamUnavailable, "could not load activity data")
	default:
		h.logger.Error("analysis failed", "subject", userkey, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "analysis failed")
	}
}

// HandleGetAnalysis handles GET /v1/users/{userkey}/analysis: the last
// stored result, without re-fetching upstream data.
func (h *Handlers) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	userkey := r.PathValue("userkey")
	a, err := h.store.GetAnalysis(r.Context(), userkey)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "no analysis stored for this user")
		return
	}
	if err != nil {
		h.logger.Error("get analysis failed", "subject", userkey, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "lookup failed")
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

// HandleLeaderboard handles GET /v1/leaderboard with keyset pagination.
// The cursor query parameter is "score:subject" from a previous page.
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	cursor, err := parseCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "malformed cursor")
		return
	}

	page, next, err := h.store.Leaderboard(r.Context(), limit, cursor)
	if err != nil {
		h.logger.Error("leaderboard query failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "leaderboard unavailable")
		return
	}

	resp := map[string]any{"entries": page}
	if next != nil {
		resp["next_cursor"] = formatCursor(next)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func parseCursor(raw string) (*storage.LeaderboardCursor, error) {
	if raw == "" {
		return nil, nil
	}
	score, subject, ok := strings.Cut(raw, ":")
	if !ok {
		return nil, errors.New("missing separator")
	}
	n, err := strconv.Atoi(score)
	if err != nil {
		return nil, err
	}
	return &storage.LeaderboardCursor{Score: n, Subject: subject}, nil
}

func formatCursor(c *storage.LeaderboardCursor) string {
	return strconv.Itoa(c.Score) + ":" + c.Subject
}

// HandleSearch handles GET /v1/search?q=.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "q is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	profiles, err := h.searcher.Search(r.Context(), query, limit)
	if err != nil {
		if errors.Is(err, ethos.ErrUnavailable) {
			writeError(w, r, http.StatusBadGateway, model.ErrCodeUpstreamUnavailable, "search unavailable")
			return
		}
		h.logger.Error("search failed", "query", query, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "search failed")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"values": profiles})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, map[string]any{
		"status":         status,
		"version":        h.version,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}
