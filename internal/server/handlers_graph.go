package server

import (
	"errors"
	"net/http"

	"github.com/trust-ethos/ethos-r4r/internal/model"
	"github.com/trust-ethos/ethos-r4r/internal/storage"
)

// HandleGraph handles GET /v1/users/{userkey}/graph: the stored analysis
// reshaped into nodes and edges for the relationship graph view.
func (h *Handlers) HandleGraph(w http.ResponseWriter, r *http.Request) {
	userkey := r.PathValue("userkey")
	a, err := h.store.GetAnalysis(r.Context(), userkey)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "no analysis stored for this user")
		return
	}
	if err != nil {
		h.logger.Error("graph lookup failed", "subject", userkey, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "lookup failed")
		return
	}
	writeJSON(w, r, http.StatusOK, buildGraph(a))
}

// buildGraph converts one stored analysis into the graph payload. The
// subject is always the first node; one node and one edge per counterpart.
func buildGraph(a model.StoredAnalysis) model.RelationshipGraph {
	score := a.Score
	g := model.RelationshipGraph{
		Nodes: []model.GraphNode{{
			Userkey:     a.Subject,
			DisplayName: a.DisplayName,
			Avatar:      a.Avatar,
			Score:       &score,
			Subject:     true,
		}},
	}

	for _, p := range a.Pairs {
		g.Nodes = append(g.Nodes, model.GraphNode{
			Userkey:     p.CounterpartKey,
			DisplayName: p.CounterpartName,
			Avatar:      p.CounterpartAvatar,
			Score:       p.CounterpartScore,
		})
		g.Edges = append(g.Edges, model.GraphEdge{
			Counterpart:        p.CounterpartKey,
			Given:              p.Given != nil,
			Received:           p.Received != nil,
			Reciprocal:         p.Reciprocal,
			QuickReciprocation: p.QuickReciprocation,
			TimeDifferenceDays: p.TimeDifferenceDays,
		})
	}
	return g
}
