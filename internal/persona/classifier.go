package persona

import (
	"math"
	"sort"
)

// Match is one persona's similarity to a vector.
type Match struct {
	Persona    Type    `json:"persona"`
	Similarity float64 `json:"similarity"`
}

// Result is the output of Classify.
type Result struct {
	Persona      Type             `json:"persona"`
	Confidence   float64          `json:"confidence"`
	Similarity   float64          `json:"similarity"`
	Similarities map[Type]float64 `json:"similarities"`
}

// Classify returns the persona whose centroid is closest to v by cosine
// similarity. Ties go to the persona listed first in All; a vector with
// no similarity to anything resolves to Curious with zero confidence.
func Classify(v Vector) Result {
	a := v.Array()

	res := Result{
		Persona:      Default,
		Similarities: make(map[Type]float64, len(centroids)),
	}
	best := 0.0
	for _, c := range centroids {
		sim := Cosine(a, c.vector)
		res.Similarities[c.persona] = sim
		if sim > best {
			best = sim
			res.Persona = c.persona
		}
	}
	res.Similarity = best
	res.Confidence = ConfidenceFromSimilarity(best)
	return res
}

// Top returns the n closest personas, most similar first.
func (r Result) Top(n int) []Match {
	matches := make([]Match, 0, len(r.Similarities))
	for _, p := range all {
		if sim, ok := r.Similarities[p]; ok {
			matches = append(matches, Match{Persona: p, Similarity: sim})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if n >= 0 && n < len(matches) {
		matches = matches[:n]
	}
	return matches
}

// ConfidenceFromSimilarity rescales a cosine similarity into a confidence:
// 0.5 or below maps to 0, 1 maps to 1, linear in between.
func ConfidenceFromSimilarity(sim float64) float64 {
	return clamp((sim-0.5)*2, 0, 1)
}

// Cosine returns the cosine similarity of a and b, or 0 if either has
// zero norm.
func Cosine(a, b [Dims]float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
