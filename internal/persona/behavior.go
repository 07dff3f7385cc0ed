package persona

// Behavior is the per-session aggregate of raw visitor events. Durations
// are in seconds. Zero values mean "no signal".
type Behavior struct {
	TimeOnHomepage           float64  `json:"timeOnHomepage"`
	ScrollDepth              float64  `json:"scrollDepth"`
	CodeSampleViews          int      `json:"codeSampleViews"`
	ProjectViews             int      `json:"projectViews"`
	DemoPlays                int      `json:"demoPlays"`
	ClickedResume            bool     `json:"clickedResume"`
	OpenedDesignShowcase     bool     `json:"openedDesignShowcase"`
	OpenedIntakeForm         bool     `json:"openedIntakeForm"`
	InteractedWithAnimations bool     `json:"interactedWithAnimations"`
	IdleTime                 float64  `json:"idleTime"`
	SessionDuration          float64  `json:"sessionDuration"`
	NavigationPath           []string `json:"navigationPath"`
	HoveredKeywords          []string `json:"hoveredKeywords"`
	EventCount               int      `json:"eventCount"`
}

// interactions counts discrete interaction events.
func (b Behavior) interactions() int {
	n := nonNegative(b.CodeSampleViews) + nonNegative(b.ProjectViews) + nonNegative(b.DemoPlays)
	for _, flag := range []bool{b.ClickedResume, b.OpenedDesignShowcase, b.OpenedIntakeForm} {
		if flag {
			n++
		}
	}
	return n
}

// elapsedSeconds prefers the measured session duration and falls back to
// time on the homepage.
func (b Behavior) elapsedSeconds() float64 {
	if b.SessionDuration > 0 {
		return b.SessionDuration
	}
	return nonNegativeFloat(b.TimeOnHomepage)
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func nonNegativeFloat(f float64) float64 {
	if f < 0 || f != f {
		return 0
	}
	return f
}
