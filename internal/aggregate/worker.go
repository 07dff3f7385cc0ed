package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/folio/internal/persona"
	"github.com/kalambet/folio/internal/storage"
)

// JobStore abstracts the job queue and the session data the worker reads
// and writes.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	ListEvents(sessionID string) ([]storage.Event, error)
	SaveBehavior(sessionID string, b persona.Behavior) error
}

// Worker processes aggregate_session jobs from the SQLite job queue.
type Worker struct {
	store  JobStore
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		poll:   pollInterval,
		logger: slog.Default().With("component", "aggregate"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single aggregation job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{storage.JobAggregateSession})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "attempt", job.Attempts+1, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload storage.AggregatePayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if payload.SessionID == "" {
		return fmt.Errorf("payload has no session_id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := w.store.ListEvents(payload.SessionID)
	if err != nil {
		return fmt.Errorf("loading events for %s: %w", payload.SessionID, err)
	}
	if len(records) == 0 {
		// Session deleted after the job was queued.
		w.logger.Debug("no events to aggregate", "session_id", payload.SessionID)
		return nil
	}

	events := make([]Event, len(records))
	for i, r := range records {
		events[i] = FromRecord(r)
	}
	b := Fold(events)

	if err := w.store.SaveBehavior(payload.SessionID, b); err != nil {
		return fmt.Errorf("saving behavior for %s: %w", payload.SessionID, err)
	}
	w.logger.Debug("aggregated session", "session_id", payload.SessionID, "events", b.EventCount)
	return nil
}
