package composer

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/kalambet/folio/internal/llm"
	"github.com/kalambet/folio/internal/persona"
)

func makeRequest(t *testing.T, msgs ...map[string]string) llm.ChatRequest {
	t.Helper()
	b, err := json.Marshal(msgs)
	if err != nil {
		t.Fatalf("marshal messages: %v", err)
	}
	return llm.ChatRequest{
		Model:    "test-model",
		Messages: b,
	}
}

func decodeMessages(t *testing.T, req llm.ChatRequest) []rawMsg {
	t.Helper()
	msgs, err := parseMessages(req.Messages)
	if err != nil {
		t.Fatalf("parsing result messages: %v", err)
	}
	return msgs
}

var engineerFocused = persona.Classification{Persona: persona.Engineer, Confidence: 0.8, Mood: persona.Focused}

func TestSystemPrompt_PerPersona(t *testing.T) {
	seen := make(map[string]persona.Type)
	for _, p := range persona.All() {
		prompt := SystemPrompt(persona.Classification{Persona: p, Mood: persona.Exploratory})
		if !strings.HasPrefix(prompt, basePrompt) {
			t.Errorf("%s prompt does not start with the base prompt", p)
		}
		tone := personaTone(p)
		if other, dup := seen[tone]; dup {
			t.Errorf("%s and %s share a tone", p, other)
		}
		seen[tone] = p
	}
}

func TestSystemPrompt_MoodHint(t *testing.T) {
	prompt := SystemPrompt(engineerFocused)
	if !strings.Contains(prompt, "[Style]") || !strings.Contains(prompt, "in depth") {
		t.Errorf("focused prompt missing style hint:\n%s", prompt)
	}
	if strings.Contains(SystemPrompt(persona.DefaultClassification(0.3)), "[Style]") {
		t.Error("exploratory mood should not add a style hint")
	}
}

func TestCompose_PrependsSystemPrompt(t *testing.T) {
	c := New(20)
	req := makeRequest(t, map[string]string{"role": "user", "content": "what do you work on?"})

	out, err := c.Compose(req, engineerFocused)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	msgs := decodeMessages(t, out)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if getRole(msgs[0]) != "system" {
		t.Errorf("expected system message first, got %q", getRole(msgs[0]))
	}
	if getContent(msgs[0]) != SystemPrompt(engineerFocused) {
		t.Errorf("system content = %q", getContent(msgs[0]))
	}
	if getContent(msgs[1]) != "what do you work on?" {
		t.Errorf("user message changed: %q", getContent(msgs[1]))
	}
	if out.Model != "test-model" {
		t.Errorf("model = %q, want test-model", out.Model)
	}
}

func TestCompose_MergesClientSystemMessage(t *testing.T) {
	c := New(20)
	req := makeRequest(t,
		map[string]string{"role": "system", "content": "Answer in French."},
		map[string]string{"role": "user", "content": "salut"},
	)

	out, err := c.Compose(req, engineerFocused)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	msgs := decodeMessages(t, out)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	sys := getContent(msgs[0])
	if !strings.HasPrefix(sys, basePrompt) || !strings.HasSuffix(sys, "---\n\nAnswer in French.") {
		t.Errorf("merged system message = %q", sys)
	}
}

func TestCompose_TrimsToMaxMessages(t *testing.T) {
	c := New(3)
	var msgs []map[string]string
	for i := 0; i < 8; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs = append(msgs, map[string]string{"role": role, "content": fmt.Sprintf("m%d", i)})
	}

	out, err := c.Compose(makeRequest(t, msgs...), engineerFocused)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	got := decodeMessages(t, out)
	if len(got) != 4 {
		t.Fatalf("expected system + 3 messages, got %d", len(got))
	}
	for i, want := range []string{"m5", "m6", "m7"} {
		if c := getContent(got[i+1]); c != want {
			t.Errorf("message %d = %q, want %q", i+1, c, want)
		}
	}
}

func TestCompose_TrimsToTokenBudget(t *testing.T) {
	c := New(20)
	c.MaxContextTokens = EstimateTokens(SystemPrompt(engineerFocused)) + 30

	long := strings.Repeat("x", 100) // 25 tokens
	req := makeRequest(t,
		map[string]string{"role": "user", "content": long},
		map[string]string{"role": "assistant", "content": long},
		map[string]string{"role": "user", "content": "short"},
	)

	out, err := c.Compose(req, engineerFocused)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	got := decodeMessages(t, out)
	if len(got) != 3 {
		t.Fatalf("expected system + 2 messages, got %d", len(got))
	}
	if getContent(got[2]) != "short" {
		t.Errorf("latest message = %q, want short", getContent(got[2]))
	}
}

func TestCompose_KeepsLatestMessageOverBudget(t *testing.T) {
	c := New(20)
	c.MaxContextTokens = 1

	out, err := c.Compose(makeRequest(t, map[string]string{"role": "user", "content": strings.Repeat("y", 400)}), engineerFocused)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := decodeMessages(t, out); len(got) != 2 {
		t.Errorf("expected system + latest message, got %d messages", len(got))
	}
}

func TestCompose_PreservesExtraMessageFields(t *testing.T) {
	c := New(20)
	req := llm.ChatRequest{Messages: json.RawMessage(`[{"role":"user","content":"hi","name":"alice"}]`)}

	out, err := c.Compose(req, engineerFocused)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	msgs := decodeMessages(t, out)
	if string(msgs[1]["name"]) != `"alice"` {
		t.Errorf("name field lost: %s", msgs[1]["name"])
	}
}

func TestCompose_InvalidMessages(t *testing.T) {
	c := New(20)
	req := llm.ChatRequest{Messages: json.RawMessage(`{"not":"an array"}`)}
	if _, err := c.Compose(req, engineerFocused); err == nil {
		t.Error("expected error for non-array messages")
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
