package intent

import (
	"fmt"
	"strings"

	"github.com/kalambet/folio/internal/llm"
	"github.com/kalambet/folio/internal/persona"
)

const systemPrompt = `You classify visitors of a software engineer's portfolio website. Your output must be ONLY a single valid JSON object of the form {"persona": string, "confidence": number, "mood": string}. Do not include any other text, prose, or markdown.

Personas:
- "recruiter": screening a candidate; goes for the resume, experience and contact details, skims quickly
- "engineer": evaluates technical depth; reads code samples, repositories and implementation write-ups
- "designer": cares about craft; opens the design showcase, animations, UI and UX case studies
- "cto": assesses leadership and architecture; reads about systems, scale, teams and methodology, may open the intake form
- "gamer": here for the games; plays demos and interactive pieces
- "curious": no clear intent; wanders around without a dominant focus

Moods: "professional" (quick scanning), "casual" (relaxed, long pauses), "focused" (deep reading), "playful" (plays with demos), "exploratory" (everything else).

Rules:
- confidence is a number between 0 and 1.
- Pick "curious" when the signals do not support any other persona.`

// BuildPrompt builds the chat messages asking the model to classify the
// given behavior.
func BuildPrompt(b persona.Behavior) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: describeBehavior(b)},
	}
}

func describeBehavior(b persona.Behavior) string {
	var sb strings.Builder
	sb.WriteString("[Navigation]\n")
	if len(b.NavigationPath) == 0 {
		sb.WriteString("(no pages recorded)\n")
	} else {
		sb.WriteString(strings.Join(b.NavigationPath, " -> "))
		sb.WriteString("\n")
	}

	sb.WriteString("\n[Time and scroll]\n")
	fmt.Fprintf(&sb, "time on homepage: %.0fs\n", b.TimeOnHomepage)
	fmt.Fprintf(&sb, "session duration: %.0fs\n", b.SessionDuration)
	fmt.Fprintf(&sb, "idle time: %.0fs\n", b.IdleTime)
	fmt.Fprintf(&sb, "max scroll depth: %.0f%%\n", b.ScrollDepth*100)

	sb.WriteString("\n[Clicks]\n")
	fmt.Fprintf(&sb, "code samples viewed: %d\n", b.CodeSampleViews)
	fmt.Fprintf(&sb, "projects viewed: %d\n", b.ProjectViews)
	fmt.Fprintf(&sb, "demos played: %d\n", b.DemoPlays)
	fmt.Fprintf(&sb, "opened resume: %s\n", yesNo(b.ClickedResume))
	fmt.Fprintf(&sb, "opened design showcase: %s\n", yesNo(b.OpenedDesignShowcase))
	fmt.Fprintf(&sb, "opened intake form: %s\n", yesNo(b.OpenedIntakeForm))
	fmt.Fprintf(&sb, "interacted with animations: %s\n", yesNo(b.InteractedWithAnimations))

	if len(b.HoveredKeywords) > 0 {
		sb.WriteString("\n[Hovered keywords]\n")
		sb.WriteString(strings.Join(b.HoveredKeywords, ", "))
		sb.WriteString("\n")
	}
	return sb.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
