package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kalambet/folio/internal/persona"
)

// SaveBehavior upserts the aggregated behavior of a session. A previously
// stored vector is kept until the next classification replaces it.
func (s *Store) SaveBehavior(sessionID string, b persona.Behavior) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding behavior: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO aggregated_behavior (session_id, behavior_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET behavior_json = excluded.behavior_json, updated_at = excluded.updated_at`,
		sessionID, string(data), formatTime(time.Now()),
	)
	return err
}

func (s *Store) GetBehavior(sessionID string) (BehaviorRecord, error) {
	var behaviorJSON, updatedAt string
	var vectorJSON sql.NullString
	err := s.db.QueryRow(`
		SELECT behavior_json, vector_json, updated_at FROM aggregated_behavior WHERE session_id = ?`, sessionID,
	).Scan(&behaviorJSON, &vectorJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return BehaviorRecord{}, ErrNotFound
	}
	if err != nil {
		return BehaviorRecord{}, err
	}

	rec := BehaviorRecord{SessionID: sessionID}
	if err := json.Unmarshal([]byte(behaviorJSON), &rec.Behavior); err != nil {
		return BehaviorRecord{}, fmt.Errorf("decoding behavior: %w", err)
	}
	if vectorJSON.Valid {
		var v persona.Vector
		if err := json.Unmarshal([]byte(vectorJSON.String), &v); err != nil {
			return BehaviorRecord{}, fmt.Errorf("decoding vector: %w", err)
		}
		rec.Vector = &v
	}
	if rec.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return BehaviorRecord{}, err
	}
	return rec, nil
}

// SaveBehaviorVector stores the vector computed from the session's
// aggregated behavior.
func (s *Store) SaveBehaviorVector(sessionID string, v persona.Vector) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding vector: %w", err)
	}
	res, err := s.db.Exec(`UPDATE aggregated_behavior SET vector_json = ? WHERE session_id = ?`, string(data), sessionID)
	if err != nil {
		return err
	}
	return requireRow(res)
}
