// Package aggregate turns raw browser events into the per-session
// behavior summary the persona classifier consumes.
package aggregate

import (
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/folio/internal/storage"
)

// Kind is the type of a captured browser event.
type Kind string

const (
	PageView   Kind = "page_view"  // Path visited
	Dwell      Kind = "dwell"      // Value seconds spent on Path
	Scroll     Kind = "scroll"     // Value is scroll depth in [0,1]
	Click      Kind = "click"      // Target clicked
	Idle       Kind = "idle"       // Value seconds without input
	Hover      Kind = "hover"      // Target is the hovered keyword
	Visibility Kind = "visibility" // Value seconds with the tab hidden
)

// Click targets the aggregator counts.
const (
	TargetCodeSample     = "code_sample"
	TargetProject        = "project"
	TargetDemo           = "demo"
	TargetResume         = "resume"
	TargetDesignShowcase = "design_showcase"
	TargetIntakeForm     = "intake_form"
	TargetAnimation      = "animation"
)

const maxFieldLen = 512

// Event is one captured browser event. TS is the client timestamp in
// milliseconds since the Unix epoch; zero means "when received".
type Event struct {
	Type   Kind    `json:"type"`
	Path   string  `json:"path,omitempty"`
	Target string  `json:"target,omitempty"`
	Value  float64 `json:"value,omitempty"`
	TS     int64   `json:"ts,omitempty"`
}

var errMissingField = errors.New("missing field")

// Validate checks that the event carries the fields its kind needs.
func (e Event) Validate() error {
	if len(e.Path) > maxFieldLen || len(e.Target) > maxFieldLen {
		return fmt.Errorf("%s event: field longer than %d bytes", e.Type, maxFieldLen)
	}
	switch e.Type {
	case PageView, Dwell:
		if e.Path == "" {
			return fmt.Errorf("%s event: %w path", e.Type, errMissingField)
		}
	case Click, Hover:
		if e.Target == "" {
			return fmt.Errorf("%s event: %w target", e.Type, errMissingField)
		}
		return nil
	case Scroll, Idle, Visibility:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Value < 0 || e.Value != e.Value {
		return fmt.Errorf("%s event: invalid value %v", e.Type, e.Value)
	}
	return nil
}

// Record converts the event to its stored form.
func (e Event) Record(sessionID string) storage.Event {
	rec := storage.Event{
		SessionID: sessionID,
		Kind:      string(e.Type),
		Path:      e.Path,
		Target:    e.Target,
		Value:     e.Value,
	}
	if e.TS > 0 {
		rec.OccurredAt = time.UnixMilli(e.TS)
	}
	return rec
}

// FromRecord converts a stored event back.
func FromRecord(r storage.Event) Event {
	e := Event{
		Type:   Kind(r.Kind),
		Path:   r.Path,
		Target: r.Target,
		Value:  r.Value,
	}
	if !r.OccurredAt.IsZero() {
		e.TS = r.OccurredAt.UnixMilli()
	}
	return e
}
