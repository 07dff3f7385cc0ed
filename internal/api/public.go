package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/folio/internal/aggregate"
	"github.com/kalambet/folio/internal/classify"
	"github.com/kalambet/folio/internal/composer"
	"github.com/kalambet/folio/internal/storage"
)

const (
	maxBeaconBodySize = 256 << 10 // 256KB
	maxBatchEvents    = 200
	maxIDLen          = 128
	maxHeaderLen      = 512
)

// Classifier resolves a session's persona. Implemented by
// classify.Orchestrator; neither method returns an error.
type Classifier interface {
	Classify(ctx context.Context, sessionID string) classify.Result
	Reclassify(ctx context.Context, sessionID string) classify.Result
}

// Deps holds the dependencies shared by the HTTP and MCP surfaces.
type Deps struct {
	Store         *storage.Store
	Classifier    Classifier
	Composer      *composer.Composer
	Chat          Chatter // nil disables /v1/chat/completions
	AdminToken    string
	AllowedOrigin string
}

// NewHandler returns the full HTTP surface: public site endpoints at the
// root and the bearer-protected admin API under /admin.
func NewHandler(deps Deps) http.Handler {
	if deps.Composer == nil {
		deps.Composer = composer.New(0)
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(CORS(deps.AllowedOrigin))
		r.Get("/health", handleHealth)
		r.Options("/*", func(http.ResponseWriter, *http.Request) {})
		r.Post("/sessions", handleCreateSession(deps))
		r.Post("/events", handleEvents(deps))
		r.Get("/sessions/{id}/persona", handleGetPersona(deps))
		r.Post("/v1/chat/completions", handleChatCompletions(deps))
	})
	r.Mount("/admin", newAdminRouter(deps))
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	Referrer string `json:"referrer"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
}

func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Referrer == "" {
			req.Referrer = r.Referer()
		}

		sess := storage.Session{
			ID:        uuid.New().String(),
			UserAgent: truncate(r.UserAgent(), maxHeaderLen),
			Referrer:  truncate(req.Referrer, maxHeaderLen),
		}
		if err := deps.Store.CreateSession(sess); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "creating session: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sess.ID})
	}
}

type eventsRequest struct {
	SessionID string            `json:"sessionId"`
	Events    []aggregate.Event `json:"events"`
}

type eventsResponse struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// handleEvents accepts a beacon batch. navigator.sendBeacon posts strings
// as text/plain, so the content type is not checked. Invalid events are
// dropped and counted; the rest are stored and an aggregation job queued.
func handleEvents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBeaconBodySize)
		defer r.Body.Close()

		var req eventsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.SessionID == "" || len(req.SessionID) > maxIDLen {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "sessionId is required and must be at most %d bytes", maxIDLen)
			return
		}
		if len(req.Events) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "events must not be empty")
			return
		}
		if len(req.Events) > maxBatchEvents {
			httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "at most %d events per batch", maxBatchEvents)
			return
		}

		now := time.Now().UTC()
		records := make([]storage.Event, 0, len(req.Events))
		dropped := 0
		for _, e := range req.Events {
			if err := e.Validate(); err != nil {
				slog.Debug("dropping invalid event", "session_id", req.SessionID, "error", err)
				dropped++
				continue
			}
			rec := e.Record(req.SessionID)
			if rec.OccurredAt.IsZero() {
				rec.OccurredAt = now
			}
			records = append(records, rec)
		}

		if len(records) > 0 {
			if _, err := deps.Store.EnsureSession(req.SessionID); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "registering session: %v", err)
				return
			}
			if err := deps.Store.SaveEvents(records); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "saving events: %v", err)
				return
			}
			if _, err := deps.Store.EnqueueAggregation(req.SessionID); err != nil {
				slog.Warn("failed to enqueue aggregation", "session_id", req.SessionID, "error", err)
			}
		}

		writeJSON(w, http.StatusAccepted, eventsResponse{Accepted: len(records), Dropped: dropped})
	}
}

type personaResponse struct {
	SessionID  string             `json:"sessionId"`
	Persona    string             `json:"persona"`
	Confidence float64            `json:"confidence"`
	Mood       string             `json:"mood"`
	Source     classify.Source    `json:"source"`
	Sections   []composer.Section `json:"sections"`
}

// handleGetPersona always answers 200: an unknown or unclassifiable
// session gets the default classification.
func handleGetPersona(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if len(id) > maxIDLen {
			id = ""
		}
		res := deps.Classifier.Classify(r.Context(), id)
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, personaResponse{
			SessionID:  id,
			Persona:    string(res.Persona),
			Confidence: res.Confidence,
			Mood:       string(res.Mood),
			Source:     res.Source,
			Sections:   composer.SectionOrder(res.Persona),
		})
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
