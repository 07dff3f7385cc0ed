package storage

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// SaveEvents stores a batch of raw events in one transaction. Events
// without an ID get a ULID; a zero OccurredAt is set to now.
func (s *Store) SaveEvents(events []Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning events transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO behavior_events (id, session_id, kind, path, target, value, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing event insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range events {
		if e.ID == "" {
			e.ID = ulid.Make().String()
		}
		if e.OccurredAt.IsZero() {
			e.OccurredAt = now
		}
		if _, err := stmt.Exec(e.ID, e.SessionID, e.Kind, e.Path, e.Target, e.Value, e.OccurredAt.UnixMilli()); err != nil {
			return fmt.Errorf("inserting event %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// ListEvents returns every event of a session in the order it happened.
func (s *Store) ListEvents(sessionID string) ([]Event, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, kind, path, target, value, occurred_at
		FROM behavior_events WHERE session_id = ?
		ORDER BY occurred_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var occurredAt int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Path, &e.Target, &e.Value, &occurredAt); err != nil {
			return nil, err
		}
		e.OccurredAt = time.UnixMilli(occurredAt).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) CountEvents(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM behavior_events WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
