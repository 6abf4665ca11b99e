package server

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/trust-ethos/ethos-r4r/internal/model"
	"github.com/trust-ethos/ethos-r4r/internal/storage"
)

var exportHeader = []string{
	"subject", "display_name", "username",
	"score", "risk_level",
	"given", "received", "reciprocal", "quick_reciprocations",
	"avg_reciprocal_days", "ethos_score", "ethos_xp",
	"formula_version", "analyzed_at",
}

// HandleExportLeaderboard handles GET /v1/leaderboard/export. Streams the
// whole leaderboard as CSV using cursor pages so memory stays flat
// regardless of table size.
func (h *Handlers) HandleExportLeaderboard(w http.ResponseWriter, r *http.Request) {
	filename := fmt.Sprintf("r4r-leaderboard-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Cache-Control", "no-cache")

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return
	}
	flusher, _ := w.(http.Flusher)

	const pageSize = 100
	var cursor *storage.LeaderboardCursor
	for {
		page, next, err := h.store.Leaderboard(r.Context(), pageSize, cursor)
		if err != nil {
			h.logger.Error("leaderboard export failed", "error", err)
			if cursor == nil {
				w.Header().Del("Content-Disposition")
				writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "export failed")
			}
			return
		}

		for _, a := range page {
			if err := cw.Write(exportRow(a)); err != nil {
				return // client disconnected
			}
		}
		cw.Flush()
		if flusher != nil {
			flusher.Flush()
		}

		if next == nil {
			return
		}
		cursor = next
	}
}

func exportRow(a model.StoredAnalysis) []string {
	return []string{
		a.Subject, a.DisplayName, a.Username,
		strconv.Itoa(a.Score), string(a.RiskLevel),
		strconv.Itoa(a.Given), strconv.Itoa(a.Received),
		strconv.Itoa(a.Reciprocal), strconv.Itoa(a.QuickReciprocations),
		strconv.FormatFloat(a.AvgReciprocalDays, 'f', 4, 64),
		strconv.Itoa(a.EthosScore), strconv.FormatInt(a.EthosXP, 10),
		a.FormulaVersion, a.AnalyzedAt.UTC().Format(time.RFC3339),
	}
}
