// Package classify decides per request how a session's persona is
// obtained: from the session cache, from the centroid classifier alone,
// or from the classifier blended with an LLM answer.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalambet/folio/internal/persona"
	"github.com/kalambet/folio/internal/storage"
)

const (
	// CacheThreshold is the stored confidence above which a session's
	// classification is reused as is.
	CacheThreshold = 0.7
	// DisambiguateBelow is the heuristic confidence under which the LLM is
	// consulted.
	DisambiguateBelow = 0.6

	newVisitorConfidence       = 0.3
	insufficientDataConfidence = 0.4
	fallbackConfidence         = 0.3

	topMatches = 3
)

// Store is the session state the orchestrator reads and writes back to.
type Store interface {
	GetSession(id string) (storage.Session, error)
	GetBehavior(sessionID string) (storage.BehaviorRecord, error)
	UpdateSessionPersona(id string, c persona.Classification) error
	SaveBehaviorVector(sessionID string, v persona.Vector) error
}

// Disambiguator classifies behavior by other means than the centroids.
// Implemented by intent.Classifier.
type Disambiguator interface {
	Classify(ctx context.Context, b persona.Behavior) (persona.Classification, error)
}

// Orchestrator runs the classification state machine for one session per
// call. It holds no per-session state and is safe for concurrent use.
type Orchestrator struct {
	store     Store
	llm       Disambiguator
	heuristic func(persona.Vector) persona.Result
	logger    *slog.Logger
}

// New creates an Orchestrator. A nil llm disables disambiguation.
func New(store Store, llm Disambiguator) *Orchestrator {
	return &Orchestrator{
		store:     store,
		llm:       llm,
		heuristic: persona.Classify,
		logger:    slog.Default().With("component", "classify"),
	}
}

// Classify returns the session's classification, reusing a confident
// cached one. It never fails: missing data yields the default persona and
// internal errors yield a fallback result.
func (o *Orchestrator) Classify(ctx context.Context, sessionID string) Result {
	return o.run(ctx, sessionID, true)
}

// Reclassify is Classify without the cache short-circuit.
func (o *Orchestrator) Reclassify(ctx context.Context, sessionID string) Result {
	return o.run(ctx, sessionID, false)
}

func (o *Orchestrator) run(ctx context.Context, sessionID string, useCache bool) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("classification panicked", "session_id", sessionID, "panic", r)
			res = defaultResult(SourceFallback, fallbackConfidence)
		}
	}()

	res, err := o.classify(ctx, sessionID, useCache)
	if err != nil {
		o.logger.Warn("classification failed, using default", "session_id", sessionID, "error", err)
		return defaultResult(SourceFallback, fallbackConfidence)
	}
	return res
}

func (o *Orchestrator) classify(ctx context.Context, sessionID string, useCache bool) (Result, error) {
	if sessionID == "" {
		return defaultResult(SourceNewVisitor, newVisitorConfidence), nil
	}

	sess, err := o.store.GetSession(sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return defaultResult(SourceNewVisitor, newVisitorConfidence), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("loading session: %w", err)
	}

	if useCache && sess.Classified() && sess.Confidence > CacheThreshold {
		c := sess.Classification()
		if !c.Mood.Valid() {
			c.Mood = persona.Exploratory
		}
		return Result{Classification: c, Source: SourceCached}, nil
	}

	rec, err := o.store.GetBehavior(sessionID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && rec.Behavior.EventCount == 0) {
		return defaultResult(SourceInsufficientData, insufficientDataConfidence), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("loading behavior: %w", err)
	}

	res := o.evaluate(ctx, sessionID, rec.Behavior)
	o.writeBack(sessionID, res)
	return res, nil
}

// evaluate runs the vector path and, when it is unsure, the LLM.
func (o *Orchestrator) evaluate(ctx context.Context, sessionID string, b persona.Behavior) Result {
	v := persona.Vectorize(b)
	h := o.heuristic(v)

	res := Result{
		Classification: persona.Classification{
			Persona:    h.Persona,
			Confidence: h.Confidence,
			Mood:       persona.DetectMood(b, v),
		},
		Source:  SourceVector,
		Vector:  &v,
		Matches: h.Top(topMatches),
	}

	switch {
	case h.Confidence >= DisambiguateBelow:
		res.Disambiguation = heuristicOnly()
	case o.llm == nil:
		res.Disambiguation = failed("disambiguation disabled")
	default:
		c, err := o.llm.Classify(ctx, b)
		if err != nil {
			o.logger.Warn("llm disambiguation failed, keeping heuristic result",
				"session_id", sessionID, "heuristic_confidence", h.Confidence, "error", err)
			res.Disambiguation = failed(err.Error())
			return res
		}
		res.Persona = c.Persona
		res.Confidence = (h.Confidence + c.Confidence) / 2
		if c.Mood.Valid() {
			res.Mood = c.Mood
		}
		res.Source = SourceHybrid
		res.Disambiguation = hybrid(c.Confidence)
	}
	return res
}

// writeBack persists the result. Failures are logged and never change
// the response.
func (o *Orchestrator) writeBack(sessionID string, res Result) {
	if err := o.store.UpdateSessionPersona(sessionID, res.Classification); err != nil {
		o.logger.Warn("saving session persona", "session_id", sessionID, "error", err)
	}
	if res.Vector != nil {
		if err := o.store.SaveBehaviorVector(sessionID, *res.Vector); err != nil {
			o.logger.Warn("saving behavior vector", "session_id", sessionID, "error", err)
		}
	}
	o.logger.Debug("classified session", "session_id", sessionID,
		"persona", res.Persona, "confidence", res.Confidence, "source", res.Source)
}
