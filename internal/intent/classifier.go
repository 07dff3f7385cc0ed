// Package intent asks a hosted LLM to classify a visitor when the
// heuristic classifier is unsure.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/folio/internal/llm"
	"github.com/kalambet/folio/internal/persona"
)

const (
	DefaultTimeout = 5 * time.Second

	temperature = 0.3
	maxTokens   = 256
)

// ErrNoJSON is returned when the model response contains no JSON object.
var ErrNoJSON = errors.New("no JSON object in response")

// Completer is the chat completion call the classifier needs.
// Implemented by llm.Client.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error)
}

// Classifier classifies behavior with a single LLM call.
type Classifier struct {
	client  Completer
	model   string
	timeout time.Duration
}

// NewClassifier creates a Classifier. A zero timeout selects DefaultTimeout.
func NewClassifier(client Completer, model string, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Classifier{client: client, model: model, timeout: timeout}
}

// Classify sends the behavior to the model once and parses its answer.
// There are no retries: any transport, timeout or parse failure is
// returned so the caller can fall back to the heuristic result.
func (c *Classifier) Classify(ctx context.Context, b persona.Behavior) (persona.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Complete(ctx, BuildPrompt(b), llm.Options{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return persona.Classification{}, fmt.Errorf("llm completion: %w", err)
	}
	return ParseResponse(raw)
}

type response struct {
	Persona    string   `json:"persona"`
	Confidence *float64 `json:"confidence"`
	Mood       string   `json:"mood"`
}

// ParseResponse extracts the first JSON object from raw and validates it.
// The persona and confidence are required. An unknown or missing mood is
// left empty for the caller to fill in.
func ParseResponse(raw string) (persona.Classification, error) {
	r, err := firstObject(raw)
	if err != nil {
		return persona.Classification{}, err
	}

	p, err := persona.Parse(r.Persona)
	if err != nil {
		return persona.Classification{}, err
	}
	if r.Confidence == nil {
		return persona.Classification{}, errors.New("classification has no confidence")
	}

	out := persona.Classification{
		Persona:    p,
		Confidence: min(max(*r.Confidence, 0), 1),
	}
	if m, err := persona.ParseMood(r.Mood); err == nil {
		out.Mood = m
	}
	return out, nil
}

// firstObject decodes the first JSON object in free text. Each '{' is
// tried in turn so braces in surrounding prose are skipped.
func firstObject(raw string) (response, error) {
	var lastErr error
	for i := 0; i < len(raw); i++ {
		j := strings.IndexByte(raw[i:], '{')
		if j < 0 {
			break
		}
		i += j

		var r response
		err := json.NewDecoder(strings.NewReader(raw[i:])).Decode(&r)
		if err == nil {
			return r, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		return response{}, ErrNoJSON
	}
	return response{}, fmt.Errorf("decoding classification: %w", lastErr)
}
