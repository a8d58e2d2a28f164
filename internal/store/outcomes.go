package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/field"
)

const outcomeColumns = `id, user_id, resonance_index, belief_coherence, emotion_stability, value_alignment,
	belief_profile_id, emotion_label, intervention_id, created_at`

// #region append-outcome
// AppendOutcome inserts one history row and returns it with its id set.
func (s *Store) AppendOutcome(ctx context.Context, rec field.OutcomeRecord) (field.OutcomeRecord, error) {
	if rec.UserID == "" {
		return field.OutcomeRecord{}, fmt.Errorf("append outcome: empty user id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO outcome_history
		 (user_id, resonance_index, belief_coherence, emotion_stability, value_alignment,
		  belief_profile_id, emotion_label, intervention_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.ResonanceIndex, rec.BeliefCoherence, rec.EmotionStability, rec.ValueAlignment,
		nullIfEmpty(rec.BeliefProfileID), nullIfEmpty(rec.EmotionLabel), nullIfEmpty(rec.InterventionID),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return field.OutcomeRecord{}, fmt.Errorf("insert outcome: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return field.OutcomeRecord{}, fmt.Errorf("outcome id: %w", err)
	}
	rec.ID = id
	return rec, nil
}

// #endregion append-outcome

// #region recent-outcomes
// RecentOutcomes returns up to limit history rows for a user, newest first.
func (s *Store) RecentOutcomes(ctx context.Context, userID string, limit int) ([]field.OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+outcomeColumns+` FROM outcome_history
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent outcomes: %w", err)
	}
	return collectOutcomes(rows)
}

// OutcomesSince returns a user's history rows at or after since, oldest first.
func (s *Store) OutcomesSince(ctx context.Context, userID string, since time.Time) ([]field.OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+outcomeColumns+` FROM outcome_history
		 WHERE user_id = ? AND created_at >= ? ORDER BY created_at ASC, id ASC`,
		userID, formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("outcomes since: %w", err)
	}
	return collectOutcomes(rows)
}

// #endregion recent-outcomes

// #region cohort-queries
// OutcomesInBand returns other users' rows with resonance index in [lo, hi]
// recorded at or after since, newest first.
func (s *Store) OutcomesInBand(ctx context.Context, lo, hi float64, since time.Time, excludeUser string) ([]field.OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+outcomeColumns+` FROM outcome_history
		 WHERE resonance_index BETWEEN ? AND ? AND created_at >= ? AND user_id != ?
		 ORDER BY created_at DESC, id DESC`,
		lo, hi, formatTime(since), excludeUser,
	)
	if err != nil {
		return nil, fmt.Errorf("outcomes in band: %w", err)
	}
	return collectOutcomes(rows)
}

// ActiveOutcomesSince returns every other user's rows recorded at or after since, newest first.
func (s *Store) ActiveOutcomesSince(ctx context.Context, since time.Time, excludeUser string) ([]field.OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+outcomeColumns+` FROM outcome_history
		 WHERE created_at >= ? AND user_id != ?
		 ORDER BY created_at DESC, id DESC`,
		formatTime(since), excludeUser,
	)
	if err != nil {
		return nil, fmt.Errorf("active outcomes: %w", err)
	}
	return collectOutcomes(rows)
}

// #endregion cohort-queries

// #region scan
func collectOutcomes(rows *sql.Rows) ([]field.OutcomeRecord, error) {
	defer rows.Close()
	var out []field.OutcomeRecord
	for rows.Next() {
		var rec field.OutcomeRecord
		var profile, emotion, intervention sql.NullString
		var createdStr string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ResonanceIndex, &rec.BeliefCoherence,
			&rec.EmotionStability, &rec.ValueAlignment, &profile, &emotion, &intervention, &createdStr); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		rec.BeliefProfileID = profile.String
		rec.EmotionLabel = emotion.String
		rec.InterventionID = intervention.String
		rec.CreatedAt = parseTime(createdStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion scan
