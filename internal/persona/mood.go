package persona

const (
	highSpeed    = 0.7
	lowSpeed     = 0.3
	highScroll   = 0.7
	lowScroll    = 0.3
	casualIdleAt = 60.0 // seconds
)

// DetectMood derives the browsing mood from raw behavior and its vector.
// The checks are ordered and the first match wins.
func DetectMood(b Behavior, v Vector) Mood {
	scroll := clamp(b.ScrollDepth, 0, 1)
	switch {
	case v.NavigationSpeed > highSpeed && scroll < lowScroll:
		return Professional
	case b.IdleTime > casualIdleAt:
		return Casual
	case scroll > highScroll && v.NavigationSpeed < lowSpeed:
		return Focused
	case b.DemoPlays > 0:
		return Playful
	default:
		return Exploratory
	}
}
