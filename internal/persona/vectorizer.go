package persona

import (
	"strings"
	"unicode"
)

const (
	directActionBase = 0.5
	pathMatchWeight  = 0.15
	hoverMatchWeight = 0.10
	countBonusWeight = 0.5

	codeViewsCap = 10
	demoPlaysCap = 5

	maxUniquePaths       = 10
	homepageTimeCap      = 300.0 // seconds
	animationEngagement  = 0.3
	maxInteractionsPerMn = 5.0
	fastPageSeconds      = 5.0
	slowPageSeconds      = 60.0

	noSignalClarity = 0.3

	shortKeywordLen = 4
)

// Keyword sets matched against lower-cased navigation paths and hovered
// keywords. Keywords longer than shortKeywordLen match as substrings;
// shorter ones must start a word, so "ui" does not fire on "/guide".
var (
	resumeKeywords     = []string{"resume", "cv", "experience", "career", "hire", "hiring", "work-history"}
	codeKeywords       = []string{"code", "github", "repo", "source", "api", "engineering", "algorithm"}
	designKeywords     = []string{"design", "ui", "ux", "figma", "visual", "animation", "brand"}
	leadershipKeywords = []string{"architecture", "system", "team", "lead", "manager", "scale", "methodology"}
	gameKeywords       = []string{"game", "play", "demo", "unity", "interactive", "3d"}
)

// Vectorize maps an aggregated behavior record to its behavior vector.
// It is a pure function: equal inputs give equal outputs.
func Vectorize(b Behavior) Vector {
	path := b.NavigationPath
	hovered := b.HoveredKeywords

	resume := focusScore(b.ClickedResume, path, hovered, resumeKeywords, 0)
	code := focusScore(false, path, hovered, codeKeywords,
		normalize(float64(nonNegative(b.CodeSampleViews)), 0, codeViewsCap)*countBonusWeight)
	design := focusScore(b.OpenedDesignShowcase, path, hovered, designKeywords, 0)
	leadership := focusScore(b.OpenedIntakeForm, path, hovered, leadershipKeywords, 0)
	game := focusScore(false, path, hovered, gameKeywords,
		normalize(float64(nonNegative(b.DemoPlays)), 0, demoPlaysCap)*countBonusWeight)

	v := Vector{
		ResumeFocus:        resume,
		CodeFocus:          code,
		DesignFocus:        design,
		LeadershipFocus:    leadership,
		GameFocus:          game,
		ExplorationBreadth: normalize(float64(uniqueCount(path)), 0, maxUniquePaths),
		EngagementDepth:    engagementDepth(b),
		InteractionRate:    interactionRate(b),
		TechnicalInterest:  (code + leadership) / 2,
		VisualInterest:     (design + game) / 2,
		NavigationSpeed:    navigationSpeed(b),
	}
	v.IntentClarity = intentClarity(v.focusScores())

	return clampVector(v)
}

func focusScore(direct bool, path, hovered, keywords []string, bonus float64) float64 {
	score := 0.0
	if direct {
		score = directActionBase
	}
	score += float64(countMatches(path, keywords)) * pathMatchWeight
	score += float64(countMatches(hovered, keywords)) * hoverMatchWeight
	score += bonus
	return clamp(score, 0, 1)
}

// countMatches counts entries that contain at least one keyword. An entry
// matching several keywords of the same set counts once.
func countMatches(entries, keywords []string) int {
	n := 0
	for _, e := range entries {
		lower := strings.ToLower(e)
		words := strings.FieldsFunc(lower, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, kw := range keywords {
			if matchKeyword(lower, words, kw) {
				n++
				break
			}
		}
	}
	return n
}

func matchKeyword(entry string, words []string, kw string) bool {
	if len(kw) > shortKeywordLen {
		return strings.Contains(entry, kw)
	}
	for _, w := range words {
		if strings.HasPrefix(w, kw) {
			return true
		}
	}
	return false
}

func engagementDepth(b Behavior) float64 {
	animation := 0.0
	if b.InteractedWithAnimations {
		animation = animationEngagement
	}
	return 0.4*normalize(b.TimeOnHomepage, 0, homepageTimeCap) +
		0.4*clamp(b.ScrollDepth, 0, 1) +
		0.2*animation
}

func interactionRate(b Behavior) float64 {
	minutes := b.elapsedSeconds() / 60
	if minutes < 1 {
		minutes = 1
	}
	return normalize(float64(b.interactions())/minutes, 0, maxInteractionsPerMn)
}

func navigationSpeed(b Behavior) float64 {
	pages := len(b.NavigationPath)
	if pages < 1 {
		pages = 1
	}
	avg := nonNegativeFloat(b.TimeOnHomepage) / float64(pages)
	return 1 - normalize(avg, fastPageSeconds, slowPageSeconds)
}

// intentClarity is the share of the strongest focus area in the total
// focus. With no focus signal at all it is a moderate-low constant rather
// than zero.
func intentClarity(focus [5]float64) float64 {
	sum, best := 0.0, 0.0
	for _, f := range focus {
		sum += f
		if f > best {
			best = f
		}
	}
	if sum == 0 {
		return noSignalClarity
	}
	return best / sum
}

func uniqueCount(paths []string) int {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		seen[p] = struct{}{}
	}
	return len(seen)
}

func clampVector(v Vector) Vector {
	a := v.Array()
	for i := range a {
		a[i] = clamp(a[i], 0, 1)
	}
	return VectorFromArray(a)
}

// normalize maps x from [lo,hi] onto [0,1], clamping outside values.
func normalize(x, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return clamp((x-lo)/(hi-lo), 0, 1)
}

func clamp(x, lo, hi float64) float64 {
	if x != x {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
