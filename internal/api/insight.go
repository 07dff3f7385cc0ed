package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/folio/internal/persona"
	"github.com/kalambet/folio/internal/storage"
)

// sessionView is the admin JSON form of a stored session.
type sessionView struct {
	ID           string       `json:"id"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	UserAgent    string       `json:"userAgent,omitempty"`
	Referrer     string       `json:"referrer,omitempty"`
	Persona      persona.Type `json:"persona,omitempty"`
	Confidence   float64      `json:"confidence,omitempty"`
	Mood         persona.Mood `json:"mood,omitempty"`
	ClassifiedAt *time.Time   `json:"classifiedAt,omitempty"`
}

func newSessionView(s storage.Session) sessionView {
	v := sessionView{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
		UserAgent:  s.UserAgent,
		Referrer:   s.Referrer,
		Persona:    s.Persona,
		Confidence: s.Confidence,
		Mood:       s.Mood,
	}
	if !s.ClassifiedAt.IsZero() {
		t := s.ClassifiedAt
		v.ClassifiedAt = &t
	}
	return v
}

// stats summarises the store for the admin API and the MCP resource.
type stats struct {
	Sessions     int                  `json:"sessions"`
	Unclassified int                  `json:"unclassified"`
	Personas     map[persona.Type]int `json:"personas"`
	Jobs         map[string]int       `json:"jobs"`
}

func collectStats(store *storage.Store) (stats, error) {
	total, err := store.CountSessions()
	if err != nil {
		return stats{}, fmt.Errorf("counting sessions: %w", err)
	}
	personas, err := store.PersonaCounts()
	if err != nil {
		return stats{}, fmt.Errorf("counting personas: %w", err)
	}
	jobs, err := store.JobCounts()
	if err != nil {
		return stats{}, fmt.Errorf("counting jobs: %w", err)
	}
	unclassified := total
	for _, n := range personas {
		unclassified -= n
	}
	return stats{
		Sessions:     total,
		Unclassified: max(unclassified, 0),
		Personas:     personas,
		Jobs:         jobs,
	}, nil
}

type centroidsView struct {
	Dimensions [persona.Dims]string            `json:"dimensions"`
	Centroids  map[persona.Type]persona.Vector `json:"centroids"`
}

func centroids() centroidsView {
	return centroidsView{
		Dimensions: persona.DimensionNames,
		Centroids:  persona.Centroids(),
	}
}

// explanation shows how the heuristic sees a session right now, next to
// the classification stored for it. Nothing is written back.
type explanation struct {
	Session    sessionView       `json:"session"`
	Behavior   *persona.Behavior `json:"behavior,omitempty"`
	Vector     *persona.Vector   `json:"vector,omitempty"`
	Heuristic  *persona.Result   `json:"heuristic,omitempty"`
	TopMatches []persona.Match   `json:"topMatches,omitempty"`
	Mood       persona.Mood      `json:"mood,omitempty"`
}

func explainSession(store *storage.Store, id string) (explanation, error) {
	sess, err := store.GetSession(id)
	if err != nil {
		return explanation{}, err
	}
	out := explanation{Session: newSessionView(sess)}

	rec, err := store.GetBehavior(id)
	if errors.Is(err, storage.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return explanation{}, fmt.Errorf("loading behavior: %w", err)
	}

	v := persona.Vectorize(rec.Behavior)
	res := persona.Classify(v)
	out.Behavior = &rec.Behavior
	out.Vector = &v
	out.Heuristic = &res
	out.TopMatches = res.Top(3)
	out.Mood = persona.DetectMood(rec.Behavior, v)
	return out, nil
}
