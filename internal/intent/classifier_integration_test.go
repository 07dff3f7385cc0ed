//go:build integration

package intent

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kalambet/folio/internal/llm"
	"github.com/kalambet/folio/internal/persona"
)

func TestClassify_RealLLM(t *testing.T) {
	apiKey := os.Getenv("FOLIO_LLM_API_KEY")
	if apiKey == "" {
		t.Skip("FOLIO_LLM_API_KEY not set, skipping integration test")
	}
	baseURL := os.Getenv("FOLIO_LLM_BASE_URL")
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	model := os.Getenv("FOLIO_LLM_MODEL")
	if model == "" {
		model = "anthropic/claude-3.5-haiku"
	}

	c := NewClassifier(llm.NewClient(apiKey, baseURL, model), model, 10*time.Second)

	start := time.Now()
	got, err := c.Classify(context.Background(), persona.Behavior{
		TimeOnHomepage:  40,
		ScrollDepth:     0.6,
		ProjectViews:    2,
		ClickedResume:   true,
		SessionDuration: 120,
		NavigationPath:  []string{"/", "/about", "/resume", "/projects"},
		HoveredKeywords: []string{"experience", "team"},
		EventCount:      12,
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if _, err := persona.Parse(string(got.Persona)); err != nil {
		t.Errorf("persona %q is not a known persona", got.Persona)
	}

	t.Logf("classification: %+v (took %v)", got, elapsed)
}
