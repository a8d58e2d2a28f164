package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/field"
)

// DefaultLearningWeight is the prior import paths give interventions that do
// not carry one.
const DefaultLearningWeight = 0.5

// #region upsert-intervention
// UpsertIntervention inserts an intervention or refreshes its pattern vector and
// metadata. An existing row keeps its learning weight and fatigue score: those
// only move through UpdateIntervention. A new row takes iv.LearningWeight as
// given, zero included.
func (s *Store) UpsertIntervention(ctx context.Context, iv field.Intervention) error {
	if iv.ID == "" {
		return fmt.Errorf("upsert intervention: empty id")
	}
	metaJSON, err := json.Marshal(iv.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if iv.UpdatedAt.IsZero() {
		iv.UpdatedAt = time.Now().UTC()
	}
	weight := iv.LearningWeight
	if math.IsNaN(weight) || weight < 0 || weight > 1 {
		return fmt.Errorf("upsert intervention %s: learning weight %v outside [0, 1]", iv.ID, weight)
	}
	fatigue := iv.FatigueScore
	if fatigue < 0 {
		fatigue = 0
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO interventions (id, pattern_vector, learning_weight, fatigue_score, metadata_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			pattern_vector = excluded.pattern_vector,
			metadata_json  = excluded.metadata_json,
			updated_at     = excluded.updated_at`,
		iv.ID, encodeVector(iv.PatternVector), weight, fatigue, string(metaJSON), formatTime(iv.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert intervention %s: %w", iv.ID, err)
	}
	return nil
}

// #endregion upsert-intervention

// #region get-intervention
// GetIntervention reads one intervention by id.
func (s *Store) GetIntervention(ctx context.Context, id string) (field.Intervention, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, pattern_vector, learning_weight, fatigue_score, metadata_json, updated_at
		 FROM interventions WHERE id = ?`, id,
	)
	iv, err := scanIntervention(row)
	if errors.Is(err, sql.ErrNoRows) {
		return field.Intervention{}, fmt.Errorf("intervention %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return field.Intervention{}, fmt.Errorf("get intervention %s: %w", id, err)
	}
	return iv, nil
}

// #endregion get-intervention

// #region list-interventions
// ListInterventions returns every intervention ordered by id.
func (s *Store) ListInterventions(ctx context.Context) ([]field.Intervention, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pattern_vector, learning_weight, fatigue_score, metadata_json, updated_at
		 FROM interventions ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	defer rows.Close()

	var out []field.Intervention
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// #endregion list-interventions

// #region update-intervention
// UpdateIntervention applies mutate to the current row inside one transaction
// and writes back its learning weight and fatigue score. mutate must not touch
// the store. Negative fatigue is stored as 0.
func (s *Store) UpdateIntervention(ctx context.Context, id string, mutate func(field.Intervention) field.Intervention) (field.Intervention, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return field.Intervention{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, pattern_vector, learning_weight, fatigue_score, metadata_json, updated_at
		 FROM interventions WHERE id = ?`, id,
	)
	current, err := scanIntervention(row)
	if errors.Is(err, sql.ErrNoRows) {
		return field.Intervention{}, fmt.Errorf("intervention %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return field.Intervention{}, fmt.Errorf("read intervention %s: %w", id, err)
	}

	next := mutate(current)
	if next.FatigueScore < 0 {
		next.FatigueScore = 0
	}
	next.ID = current.ID
	next.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE interventions SET learning_weight = ?, fatigue_score = ?, updated_at = ? WHERE id = ?`,
		next.LearningWeight, next.FatigueScore, formatTime(next.UpdatedAt), id,
	)
	if err != nil {
		return field.Intervention{}, fmt.Errorf("write intervention %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return field.Intervention{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// #endregion update-intervention

// #region scan
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntervention(r rowScanner) (field.Intervention, error) {
	var iv field.Intervention
	var vecBlob []byte
	var metaJSON sql.NullString
	var updatedStr string

	if err := r.Scan(&iv.ID, &vecBlob, &iv.LearningWeight, &iv.FatigueScore, &metaJSON, &updatedStr); err != nil {
		return field.Intervention{}, err
	}
	iv.PatternVector = decodeVector(vecBlob)
	if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
		if err := json.Unmarshal([]byte(metaJSON.String), &iv.Metadata); err != nil {
			return field.Intervention{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	iv.UpdatedAt = parseTime(updatedStr)
	return iv, nil
}

// #endregion scan
