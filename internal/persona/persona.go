// Package persona defines the visitor persona model and the heuristic
// behavior classifier: a fixed 12-dimension behavior vector, one static
// centroid per persona, and nearest-centroid classification by cosine
// similarity.
package persona

import "fmt"

// Type is a visitor persona. The set is closed; see All.
type Type string

const (
	Recruiter Type = "recruiter"
	Engineer  Type = "engineer"
	Designer  Type = "designer"
	CTO       Type = "cto"
	Gamer     Type = "gamer"
	Curious   Type = "curious"
)

// Default is the persona used when there is no usable signal.
const Default = Curious

var all = [...]Type{Recruiter, Engineer, Designer, CTO, Gamer, Curious}

// All returns every persona in enumeration order. Classification ties
// resolve to the earlier entry.
func All() []Type {
	out := make([]Type, len(all))
	copy(out, all[:])
	return out
}

// Valid reports whether t is one of the known personas.
func (t Type) Valid() bool {
	for _, p := range all {
		if p == t {
			return true
		}
	}
	return false
}

// Parse converts s into a Type, rejecting unknown values.
func Parse(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown persona %q", s)
	}
	return t, nil
}

// Mood describes browsing style independently of persona.
type Mood string

const (
	Professional Mood = "professional"
	Casual       Mood = "casual"
	Exploratory  Mood = "exploratory"
	Focused      Mood = "focused"
	Playful      Mood = "playful"
)

// Valid reports whether m is one of the known moods.
func (m Mood) Valid() bool {
	switch m {
	case Professional, Casual, Exploratory, Focused, Playful:
		return true
	}
	return false
}

// ParseMood converts s into a Mood, rejecting unknown values.
func ParseMood(s string) (Mood, error) {
	m := Mood(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mood %q", s)
	}
	return m, nil
}

// Classification is the persona assigned to a session.
type Classification struct {
	Persona    Type    `json:"persona"`
	Confidence float64 `json:"confidence"`
	Mood       Mood    `json:"mood"`
}

// DefaultClassification returns the curious/exploratory classification
// with the given confidence.
func DefaultClassification(confidence float64) Classification {
	return Classification{
		Persona:    Default,
		Confidence: clamp(confidence, 0, 1),
		Mood:       Exploratory,
	}
}
