package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/field"
)

// #region append-feedback
// AppendFeedback inserts one feedback row. Rows are never updated or deleted.
func (s *Store) AppendFeedback(ctx context.Context, rec field.FeedbackRecord) (field.FeedbackRecord, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (user_id, intervention_id, fulfillment_score, created_at)
		 VALUES (?, ?, ?, ?)`,
		rec.UserID, rec.InterventionID, rec.FulfillmentScore, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return field.FeedbackRecord{}, fmt.Errorf("insert feedback: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return field.FeedbackRecord{}, fmt.Errorf("feedback id: %w", err)
	}
	rec.ID = id
	return rec, nil
}

// #endregion append-feedback

// #region feedback-queries
// FeedbackSince returns an intervention's feedback at or after since, oldest first.
func (s *Store) FeedbackSince(ctx context.Context, interventionID string, since time.Time) ([]field.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, intervention_id, fulfillment_score, created_at FROM feedback
		 WHERE intervention_id = ? AND created_at >= ? ORDER BY created_at ASC, id ASC`,
		interventionID, formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("feedback since: %w", err)
	}
	return collectFeedback(rows)
}

// UserFeedbackSince returns one user's feedback at or after since, oldest first.
func (s *Store) UserFeedbackSince(ctx context.Context, userID string, since time.Time) ([]field.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, intervention_id, fulfillment_score, created_at FROM feedback
		 WHERE user_id = ? AND created_at >= ? ORDER BY created_at ASC, id ASC`,
		userID, formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("user feedback since: %w", err)
	}
	return collectFeedback(rows)
}

// FeedbackByUsersSince returns feedback left by any of the given users at or after since.
func (s *Store) FeedbackByUsersSince(ctx context.Context, userIDs []string, since time.Time) ([]field.FeedbackRecord, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(userIDs)+1)
	for _, id := range userIDs {
		args = append(args, id)
	}
	args = append(args, formatTime(since))

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, intervention_id, fulfillment_score, created_at FROM feedback
		 WHERE user_id IN (`+placeholders(len(userIDs))+`) AND created_at >= ?
		 ORDER BY created_at ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("cohort feedback: %w", err)
	}
	return collectFeedback(rows)
}

// InterventionIDsWithFeedbackSince lists interventions that received feedback at or after since.
func (s *Store) InterventionIDsWithFeedbackSince(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT intervention_id FROM feedback WHERE created_at >= ? ORDER BY intervention_id`,
		formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("interventions with feedback: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// #endregion feedback-queries

// #region scan
func collectFeedback(rows *sql.Rows) ([]field.FeedbackRecord, error) {
	defer rows.Close()
	var out []field.FeedbackRecord
	for rows.Next() {
		var rec field.FeedbackRecord
		var createdStr string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.InterventionID, &rec.FulfillmentScore, &createdStr); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		rec.CreatedAt = parseTime(createdStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion scan
