package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/folio/internal/persona"
	"github.com/kalambet/folio/internal/storage"
)

func newAdminRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.AdminToken))
	r.Get("/sessions", handleListSessions(deps))
	r.Get("/sessions/{id}", handleSessionDetail(deps))
	r.Delete("/sessions/{id}", handleDeleteSession(deps))
	r.Delete("/sessions/{id}/persona", handleInvalidatePersona(deps))
	r.Post("/sessions/{id}/classify", handleReclassify(deps))
	r.Get("/centroids", handleCentroids)
	r.Get("/stats", handleStats(deps))
	return r
}

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 500)
		sessions, err := deps.Store.ListSessions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing sessions: %v", err)
			return
		}
		out := make([]sessionView, len(sessions))
		for i, s := range sessions {
			out[i] = newSessionView(s)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type sessionDetail struct {
	Session    sessionView       `json:"session"`
	Behavior   *persona.Behavior `json:"behavior,omitempty"`
	Vector     *persona.Vector   `json:"vector,omitempty"`
	EventCount int               `json:"eventCount"`
}

// handleSessionDetail loads the session, its aggregated behavior and its
// event count concurrently.
func handleSessionDetail(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var (
			sess  storage.Session
			rec   storage.BehaviorRecord
			found bool
			count int
		)
		g, _ := errgroup.WithContext(r.Context())
		g.Go(func() error {
			var err error
			sess, err = deps.Store.GetSession(id)
			return err
		})
		g.Go(func() error {
			var err error
			rec, err = deps.Store.GetBehavior(id)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			found = err == nil
			return err
		})
		g.Go(func() error {
			var err error
			count, err = deps.Store.CountEvents(id)
			return err
		})
		if err := g.Wait(); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "session %s not found", id)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "loading session: %v", err)
			return
		}

		out := sessionDetail{Session: newSessionView(sess), EventCount: count}
		if found {
			out.Behavior = &rec.Behavior
			out.Vector = rec.Vector
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleDeleteSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Store.DeleteSession(id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "session %s not found", id)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "deleting session: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleInvalidatePersona clears the cached classification so the next
// request recomputes it.
func handleInvalidatePersona(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Store.ClearSessionPersona(id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "session %s not found", id)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "clearing persona: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleReclassify runs the full pipeline, bypassing the cache, and
// returns the detailed result.
func handleReclassify(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Store.GetSession(id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "session %s not found", id)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "loading session: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, deps.Classifier.Reclassify(r.Context(), id))
	}
}

func handleCentroids(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, centroids())
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := collectStats(deps.Store)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
