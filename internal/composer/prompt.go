package composer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/folio/internal/llm"
	"github.com/kalambet/folio/internal/persona"
)

const (
	defaultMaxMessages      = 20
	defaultMaxContextTokens = 6000
)

const basePrompt = `You are the assistant on a software engineer's portfolio website. Answer questions about their work, projects, skills and availability. Be accurate and say so when you do not know something.`

// SystemPrompt returns the chat system prompt for a classification: the
// base prompt, a persona tone and a mood hint.
func SystemPrompt(c persona.Classification) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n\n[Audience]\n")
	sb.WriteString(personaTone(c.Persona))
	if hint := moodHint(c.Mood); hint != "" {
		sb.WriteString("\n\n[Style]\n")
		sb.WriteString(hint)
	}
	return sb.String()
}

func personaTone(p persona.Type) string {
	switch p {
	case persona.Recruiter:
		return "The visitor is likely a recruiter. Lead with experience, roles, impact and availability. Keep answers short and point to the resume and contact details."
	case persona.Engineer:
		return "The visitor is likely an engineer. Be technically precise, discuss implementation trade-offs and link to code samples and repositories."
	case persona.Designer:
		return "The visitor is likely a designer. Talk about craft, interaction details, visual decisions and the design showcase."
	case persona.CTO:
		return "The visitor is likely a technical leader. Focus on architecture, scale, team practices and outcomes. Mention the intake form for engagements."
	case persona.Gamer:
		return "The visitor is here for the games. Be playful and point to the interactive demos and how they were built."
	case persona.Curious:
		return curiousTone
	}
	return curiousTone
}

const curiousTone = "The visitor is exploring. Give a friendly overview and suggest a few places on the site worth a look."

func moodHint(m persona.Mood) string {
	switch m {
	case persona.Professional:
		return "They are scanning quickly. Use short answers and bullet points."
	case persona.Casual:
		return "They are browsing at a relaxed pace. A conversational tone is fine."
	case persona.Focused:
		return "They are reading in depth. Longer, detailed answers are welcome."
	case persona.Playful:
		return "They are in a playful mood. Light humour is welcome."
	case persona.Exploratory:
		return ""
	}
	return ""
}

// Composer prepares chat requests for the upstream model.
type Composer struct {
	MaxMessages      int
	MaxContextTokens int
}

// New creates a Composer keeping at most maxMessages conversation messages.
// If maxMessages <= 0, the default (20) is used.
func New(maxMessages int) *Composer {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	return &Composer{MaxMessages: maxMessages, MaxContextTokens: defaultMaxContextTokens}
}

// Compose puts the persona system prompt in front of the conversation and
// trims it to fit the context window. A system message sent by the client
// is kept after the persona prompt. The latest message is always kept.
func (c *Composer) Compose(req llm.ChatRequest, cl persona.Classification) (llm.ChatRequest, error) {
	msgs, err := parseMessages(req.Messages)
	if err != nil {
		return req, fmt.Errorf("parsing messages: %w", err)
	}

	system := SystemPrompt(cl)
	var conversation []rawMsg
	for _, m := range msgs {
		if getRole(m) == "system" {
			if existing := getContent(m); existing != "" {
				system += "\n\n---\n\n" + existing
			}
			continue
		}
		conversation = append(conversation, m)
	}

	conversation = c.trim(conversation, EstimateTokens(system))
	out := append([]rawMsg{makeSystemMessage(system)}, conversation...)

	marshalled, err := json.Marshal(out)
	if err != nil {
		return req, fmt.Errorf("marshalling messages: %w", err)
	}

	composed := req
	composed.Messages = marshalled
	return composed, nil
}

// trim keeps the newest messages that fit both the message and the token
// budget.
func (c *Composer) trim(msgs []rawMsg, systemTokens int) []rawMsg {
	if len(msgs) > c.MaxMessages {
		msgs = msgs[len(msgs)-c.MaxMessages:]
	}
	if c.MaxContextTokens <= 0 {
		return msgs
	}

	remaining := c.MaxContextTokens - systemTokens
	start := len(msgs)
	for start > 0 {
		tokens := EstimateTokens(getContent(msgs[start-1]))
		if tokens > remaining && start < len(msgs) {
			break
		}
		remaining -= tokens
		start--
	}
	return msgs[start:]
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// rawMsg preserves all JSON fields on a message while allowing role/content access.
type rawMsg map[string]json.RawMessage

func parseMessages(data json.RawMessage) ([]rawMsg, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var msgs []rawMsg
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func getRole(m rawMsg) string {
	var role string
	json.Unmarshal(m["role"], &role)
	return role
}

// getContent returns string content. Structured content (parts arrays)
// yields its raw JSON so it still counts towards the token estimate.
func getContent(m rawMsg) string {
	v, ok := m["content"]
	if !ok {
		return ""
	}
	var content string
	if err := json.Unmarshal(v, &content); err != nil {
		return string(v)
	}
	return content
}

func makeSystemMessage(content string) rawMsg {
	m := make(rawMsg)
	m["role"], _ = json.Marshal("system")
	m["content"], _ = json.Marshal(content)
	return m
}
