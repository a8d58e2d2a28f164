package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region log-event
// LogEvent writes an audit entry to the event_log table.
func LogEvent(ctx context.Context, db *sql.DB, entry EventEntry) error {
	if entry.EventType == "" {
		return fmt.Errorf("log event: empty event type")
	}
	if entry.EventID == "" {
		entry.EventID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO event_log (event_id, event_type, user_id, subject_id, payload_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.EventID,
		entry.EventType,
		nullIfEmpty(entry.UserID),
		nullIfEmpty(entry.SubjectID),
		nullIfEmpty(entry.PayloadJSON),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// Payload marshals v for EventEntry.PayloadJSON, returning "" when it cannot.
func Payload(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// #endregion log-event

// #region list-events
// ListEvents returns the most recent entries of one type, newest first.
// An empty eventType lists every type.
func ListEvents(ctx context.Context, db *sql.DB, eventType string, limit int) ([]EventEntry, error) {
	query := `SELECT event_id, event_type, user_id, subject_id, payload_json, created_at FROM event_log`
	args := []interface{}{}
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []EventEntry
	for rows.Next() {
		var e EventEntry
		var userID, subjectID, payload sql.NullString
		var createdStr string
		if err := rows.Scan(&e.EventID, &e.EventType, &userID, &subjectID, &payload, &createdStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.UserID = userID.String
		e.SubjectID = subjectID.String
		e.PayloadJSON = payload.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-events

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
