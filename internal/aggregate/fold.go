package aggregate

import (
	"strings"

	"github.com/kalambet/folio/internal/persona"
)

const homepage = "/"

// Fold summarises a session's events, which must be in occurrence order.
// Unknown kinds and click targets still count towards EventCount but do
// not change any other field.
func Fold(events []Event) persona.Behavior {
	var b persona.Behavior
	b.EventCount = len(events)

	seenKeywords := make(map[string]bool)
	var first, last int64
	for _, e := range events {
		if e.TS > 0 {
			if first == 0 || e.TS < first {
				first = e.TS
			}
			if e.TS > last {
				last = e.TS
			}
		}

		switch e.Type {
		case PageView:
			b.NavigationPath = append(b.NavigationPath, e.Path)
		case Dwell:
			if e.Path == homepage {
				b.TimeOnHomepage += e.Value
			}
		case Scroll:
			b.ScrollDepth = max(b.ScrollDepth, min(e.Value, 1))
		case Click:
			applyClick(&b, e.Target)
		case Idle, Visibility:
			b.IdleTime += e.Value
		case Hover:
			kw := strings.TrimSpace(e.Target)
			key := strings.ToLower(kw)
			if kw != "" && !seenKeywords[key] {
				seenKeywords[key] = true
				b.HoveredKeywords = append(b.HoveredKeywords, kw)
			}
		}
	}

	if last > first {
		b.SessionDuration = float64(last-first) / 1000
	}
	return b
}

func applyClick(b *persona.Behavior, target string) {
	switch target {
	case TargetCodeSample:
		b.CodeSampleViews++
	case TargetProject:
		b.ProjectViews++
	case TargetDemo:
		b.DemoPlays++
	case TargetResume:
		b.ClickedResume = true
	case TargetDesignShowcase:
		b.OpenedDesignShowcase = true
	case TargetIntakeForm:
		b.OpenedIntakeForm = true
	case TargetAnimation:
		b.InteractedWithAnimations = true
	}
}
