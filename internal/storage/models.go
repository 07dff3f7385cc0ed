package storage

import (
	"errors"
	"time"

	"github.com/kalambet/folio/internal/persona"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Session is a visitor session and its cached classification.
// Persona is empty until the session has been classified.
type Session struct {
	ID           string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UserAgent    string
	Referrer     string
	Persona      persona.Type
	Confidence   float64
	Mood         persona.Mood
	ClassifiedAt time.Time
}

// Classified reports whether a classification has been written back.
func (s Session) Classified() bool {
	return s.Persona != ""
}

// Classification returns the stored classification.
func (s Session) Classification() persona.Classification {
	return persona.Classification{Persona: s.Persona, Confidence: s.Confidence, Mood: s.Mood}
}

// Event is one raw behavior event as captured by the browser.
type Event struct {
	ID         string // ULID
	SessionID  string
	Kind       string
	Path       string
	Target     string
	Value      float64
	OccurredAt time.Time
}

// BehaviorRecord is the aggregated behavior of a session. Vector is nil
// until a classification stored the vector it computed.
type BehaviorRecord struct {
	SessionID string
	Behavior  persona.Behavior
	Vector    *persona.Vector
	UpdatedAt time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
