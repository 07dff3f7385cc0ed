package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kalambet/folio/internal/persona"
)

const sessionColumns = `id, created_at, updated_at, user_agent, referrer, persona, confidence, mood, classified_at`

// CreateSession inserts a new unclassified session. Zero timestamps are
// set to now.
func (s *Store) CreateSession(sess Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = sess.CreatedAt
	}
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, created_at, updated_at, user_agent, referrer)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ID, formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt), sess.UserAgent, sess.Referrer,
	)
	return err
}

// EnsureSession creates the session if it does not exist yet and reports
// whether it did.
func (s *Store) EnsureSession(id string) (bool, error) {
	now := formatTime(time.Now())
	res, err := s.db.Exec(`
		INSERT INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING`, id, now, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) GetSession(id string) (Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// ListSessions returns the most recently created sessions first.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sess)
	}
	return results, rows.Err()
}

// UpdateSessionPersona writes a classification back onto the session.
func (s *Store) UpdateSessionPersona(id string, c persona.Classification) error {
	now := formatTime(time.Now())
	res, err := s.db.Exec(`
		UPDATE sessions SET persona = ?, confidence = ?, mood = ?, classified_at = ?, updated_at = ?
		WHERE id = ?`,
		string(c.Persona), c.Confidence, string(c.Mood), now, now, id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ClearSessionPersona drops the cached classification so the next request
// recomputes it.
func (s *Store) ClearSessionPersona(id string) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET persona = '', confidence = 0, mood = '', classified_at = NULL, updated_at = ?
		WHERE id = ?`, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteSession removes the session with its events, aggregated behavior
// and pending aggregation jobs.
func (s *Store) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM behavior_events WHERE session_id = ?`,
		`DELETE FROM aggregated_behavior WHERE session_id = ?`,
		`DELETE FROM jobs WHERE type = '` + JobAggregateSession + `' AND status = 'pending' AND json_extract(payload_json, '$.session_id') = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("deleting session data: %w", err)
		}
	}

	res, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// PersonaCounts returns the number of classified sessions per persona.
func (s *Store) PersonaCounts() (map[persona.Type]int, error) {
	rows, err := s.db.Query(`SELECT persona, COUNT(*) FROM sessions WHERE persona != '' GROUP BY persona`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[persona.Type]int)
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, err
		}
		counts[persona.Type(p)] = n
	}
	return counts, rows.Err()
}

// CountSessions returns the total number of sessions.
func (s *Store) CountSessions() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var sess Session
	var createdAt, updatedAt, p, mood string
	var classifiedAt sql.NullString
	if err := row.Scan(&sess.ID, &createdAt, &updatedAt, &sess.UserAgent, &sess.Referrer,
		&p, &sess.Confidence, &mood, &classifiedAt); err != nil {
		return Session{}, err
	}
	sess.Persona = persona.Type(p)
	sess.Mood = persona.Mood(mood)

	var err error
	if sess.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Session{}, err
	}
	if sess.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Session{}, err
	}
	if classifiedAt.Valid {
		if sess.ClassifiedAt, err = parseTime("classified_at", classifiedAt.String); err != nil {
			return Session{}, err
		}
	}
	return sess, nil
}
