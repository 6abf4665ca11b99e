package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/trust-ethos/ethos-r4r/internal/model"
)

// SaveAnalysis upserts one subject's analysis. The table keeps exactly one
// row per subject; re-analysis replaces the previous result and refreshes
// the profile snapshot. Concurrent bulk scans can deadlock on the upsert,
// so the write retries transient conflicts.
func (db *DB) SaveAnalysis(ctx context.Context, a model.StoredAnalysis) error {
	err := WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		return db.saveAnalysis(ctx, a)
	})
	if err != nil {
		return fmt.Errorf("storage: save analysis for %s: %w", a.Subject, err)
	}
	return nil
}

func (db *DB) saveAnalysis(ctx context.Context, a model.StoredAnalysis) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO analyses (
			subject, display_name, username, avatar,
			score, risk_level,
			given_count, received_count, reciprocal_count, quick_reciprocations,
			avg_reciprocal_days, ethos_score, ethos_xp,
			breakdown, pairs, formula_version, analyzed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (subject) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			username = EXCLUDED.username,
			avatar = EXCLUDED.avatar,
			score = EXCLUDED.score,
			risk_level = EXCLUDED.risk_level,
			given_count = EXCLUDED.given_count,
			received_count = EXCLUDED.received_count,
			reciprocal_count = EXCLUDED.reciprocal_count,
			quick_reciprocations = EXCLUDED.quick_reciprocations,
			avg_reciprocal_days = EXCLUDED.avg_reciprocal_days,
			ethos_score = EXCLUDED.ethos_score,
			ethos_xp = EXCLUDED.ethos_xp,
			breakdown = EXCLUDED.breakdown,
			pairs = EXCLUDED.pairs,
			formula_version = EXCLUDED.formula_version,
			analyzed_at = EXCLUDED.analyzed_at,
			updated_at = now()
	`,
		a.Subject, a.DisplayName, a.Username, a.Avatar,
		a.Score, a.RiskLevel,
		a.Given, a.Received, a.Reciprocal, a.QuickReciprocations,
		a.AvgReciprocalDays, a.EthosScore, a.EthosXP,
		a.Breakdown, a.Pairs, a.FormulaVersion, a.AnalyzedAt,
	)
	return err
}

// GetAnalysis returns the stored analysis for one subject, pairs included.
func (db *DB) GetAnalysis(ctx context.Context, subject string) (model.StoredAnalysis, error) {
	var a model.StoredAnalysis
	err := db.pool.QueryRow(ctx, `
		SELECT subject, display_name, username, avatar,
		       score, risk_level,
		       given_count, received_count, reciprocal_count, quick_reciprocations,
		       avg_reciprocal_days, ethos_score, ethos_xp,
		       breakdown, pairs, formula_version, analyzed_at
		FROM analyses
		WHERE subject = $1
	`, subject).Scan(
		&a.Subject, &a.DisplayName, &a.Username, &a.Avatar,
		&a.Score, &a.RiskLevel,
		&a.Given, &a.Received, &a.Reciprocal, &a.QuickReciprocations,
		&a.AvgReciprocalDays, &a.EthosScore, &a.EthosXP,
		&a.Breakdown, &a.Pairs, &a.FormulaVersion, &a.AnalyzedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.StoredAnalysis{}, ErrNotFound
	}
	if err != nil {
		return model.StoredAnalysis{}, fmt.Errorf("storage: get analysis for %s: %w", subject, err)
	}
	return a, nil
}

// LeaderboardCursor marks a position in the leaderboard ordering
// (score DESC, subject ASC).
type LeaderboardCursor struct {
	Score   int
	Subject string
}

// Leaderboard returns one page of stored analyses ordered by farming score.
// Pairs are omitted from list rows. The returned cursor is nil on the last
// page. Keyset pagination keeps every page O(page size) regardless of depth.
func (db *DB) Leaderboard(ctx context.Context, limit int, cursor *LeaderboardCursor) ([]model.StoredAnalysis, *LeaderboardCursor, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT subject, display_name, username, avatar,
		       score, risk_level,
		       given_count, received_count, reciprocal_count, quick_reciprocations,
		       avg_reciprocal_days, ethos_score, ethos_xp,
		       breakdown, formula_version, analyzed_at
		FROM analyses`
	args := []any{}
	if cursor != nil {
		// Strictly lower score, or same score with a lexically later subject.
		query += ` WHERE score < $1 OR (score = $1 AND subject > $2)`
		args = append(args, cursor.Score, cursor.Subject)
	}
	query += fmt.Sprintf(` ORDER BY score DESC, subject ASC LIMIT %d`, limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: leaderboard query: %w", err)
	}
	defer rows.Close()

	var page []model.StoredAnalysis
	for rows.Next() {
		var a model.StoredAnalysis
		if err := rows.Scan(
			&a.Subject, &a.DisplayName, &a.Username, &a.Avatar,
			&a.Score, &a.RiskLevel,
			&a.Given, &a.Received, &a.Reciprocal, &a.QuickReciprocations,
			&a.AvgReciprocalDays, &a.EthosScore, &a.EthosXP,
			&a.Breakdown, &a.FormulaVersion, &a.AnalyzedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("storage: scan leaderboard row: %w", err)
		}
		page = append(page, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("storage: leaderboard rows: %w", err)
	}

	var next *LeaderboardCursor
	if len(page) == limit {
		last := page[len(page)-1]
		next = &LeaderboardCursor{Score: last.Score, Subject: last.Subject}
	}
	return page, next, nil
}

// ScoresByUserkeys returns previously computed final scores for the given
// userkeys. Keys with no stored analysis are simply absent from the map —
// an unknown counterpart is never reported as zero.
func (db *DB) ScoresByUserkeys(ctx context.Context, userkeys []string) (map[string]int, error) {
	if len(userkeys) == 0 {
		return map[string]int{}, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT subject, score FROM analyses WHERE subject = ANY($1)`, userkeys)
	if err != nil {
		return nil, fmt.Errorf("storage: scores by userkeys: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]int, len(userkeys))
	for rows.Next() {
		var subject string
		var score int
		if err := rows.Scan(&subject, &score); err != nil {
			return nil, fmt.Errorf("storage: scan score row: %w", err)
		}
		scores[subject] = score
	}
	return scores, rows.Err()
}

// ListSubjects returns all analyzed subjects, most recently analyzed first.
// Used by the bulk scanner for leaderboard re-scans.
func (db *DB) ListSubjects(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.pool.Query(ctx,
		`SELECT subject FROM analyses ORDER BY analyzed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("storage: scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}
