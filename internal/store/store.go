// Package store persists outcome history, interventions, feedback and the
// audit log in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed-width so TEXT timestamps compare in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS interventions (
	id              TEXT PRIMARY KEY,
	pattern_vector  BLOB,
	learning_weight REAL NOT NULL DEFAULT 0.5,
	fatigue_score   REAL NOT NULL DEFAULT 0 CHECK (fatigue_score >= 0),
	metadata_json   TEXT,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS outcome_history (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id           TEXT NOT NULL,
	resonance_index   REAL NOT NULL,
	belief_coherence  REAL NOT NULL DEFAULT 0,
	emotion_stability REAL NOT NULL DEFAULT 0,
	value_alignment   REAL NOT NULL DEFAULT 0,
	belief_profile_id TEXT,
	emotion_label     TEXT,
	intervention_id   TEXT,
	created_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcome_user_time ON outcome_history(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_outcome_time ON outcome_history(created_at);

CREATE TABLE IF NOT EXISTS feedback (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id           TEXT NOT NULL,
	intervention_id   TEXT NOT NULL,
	fulfillment_score REAL NOT NULL CHECK (fulfillment_score BETWEEN -1 AND 1),
	created_at        TEXT NOT NULL,
	FOREIGN KEY (intervention_id) REFERENCES interventions(id)
);
CREATE INDEX IF NOT EXISTS idx_feedback_intervention_time ON feedback(intervention_id, created_at);
CREATE INDEX IF NOT EXISTS idx_feedback_user_time ON feedback(user_id, created_at);

CREATE TABLE IF NOT EXISTS event_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id     TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	user_id      TEXT,
	subject_id   TEXT,
	payload_json TEXT,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_type_time ON event_log(event_type, created_at);
`

// #endregion schema

// #region store-struct
// Store manages the decision-core tables in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and it makes every
	// UpdateIntervention transaction an exclusive read-modify-write.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// #endregion close

// #region helpers
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// #endregion helpers

// #region vector-encoding
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if b == nil {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// #endregion vector-encoding
