package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kalambet/folio/internal/llm"
)

const maxRequestBodySize = 1 << 20 // 1MB

// SessionHeader carries the visitor session on chat requests.
const SessionHeader = "X-Session-ID"

// Chatter forwards chat completion requests upstream. Implemented by
// llm.Client.
type Chatter interface {
	Forward(ctx context.Context, req llm.ChatRequest) (io.ReadCloser, error)
}

// handleChatCompletions is the persona-aware chat pass-through: the
// session's persona picks the system prompt, the conversation is trimmed
// and the request is forwarded as is.
func handleChatCompletions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Chat == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "chat is not configured")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req llm.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if !hasMessages(req.Messages) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "messages is required and must not be empty")
			return
		}

		res := deps.Classifier.Classify(r.Context(), r.Header.Get(SessionHeader))
		composed, err := deps.Composer.Compose(req, res.Classification)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid messages: %v", err)
			return
		}
		slog.Debug("chat request composed", "persona", res.Persona, "mood", res.Mood, "source", res.Source)

		rc, err := deps.Chat.Forward(r.Context(), composed)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "upstream error: %v", err)
			return
		}
		defer rc.Close()

		if composed.Stream {
			streamResponse(w, rc)
			return
		}
		body, err := io.ReadAll(rc)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "reading upstream response: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

func streamResponse(w http.ResponseWriter, rc io.Reader) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	reader := bufio.NewReader(rc)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			w.Write(line)
			flusher.Flush()
		}
		if err == nil {
			continue
		}
		if err != io.EOF {
			slog.Warn("upstream stream read error", "error", err)
			errPayload, _ := json.Marshal(errorBody("upstream read error", "server_error"))
			fmt.Fprintf(w, "data: %s\n\n", errPayload)
			flusher.Flush()
		}
		return
	}
}

func hasMessages(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return false
	}
	return len(arr) > 0
}

func errorBody(msg, errType string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorBody(fmt.Sprintf(format, args...), errType))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
