package classify

import "github.com/kalambet/folio/internal/persona"

// Source tells where a classification came from.
type Source string

const (
	SourceNewVisitor       Source = "new_visitor"
	SourceInsufficientData Source = "insufficient_data"
	SourceCached           Source = "cached"
	SourceVector           Source = "vector"
	SourceHybrid           Source = "hybrid"
	SourceFallback         Source = "fallback"
)

// DisambiguationKind names the outcome of the low-confidence check.
type DisambiguationKind string

const (
	// KindHeuristic: the heuristic was confident enough on its own.
	KindHeuristic DisambiguationKind = "heuristic"
	// KindHybrid: the LLM answered and its result was blended in.
	KindHybrid DisambiguationKind = "hybrid"
	// KindFailed: the LLM was needed but unavailable or unusable.
	KindFailed DisambiguationKind = "failed"
)

// Disambiguation records whether and how the LLM was consulted. Only the
// field matching Kind is set.
type Disambiguation struct {
	Kind          DisambiguationKind `json:"kind"`
	LLMConfidence float64            `json:"llmConfidence,omitempty"`
	Reason        string             `json:"reason,omitempty"`
}

func heuristicOnly() *Disambiguation {
	return &Disambiguation{Kind: KindHeuristic}
}

func hybrid(llmConfidence float64) *Disambiguation {
	return &Disambiguation{Kind: KindHybrid, LLMConfidence: llmConfidence}
}

func failed(reason string) *Disambiguation {
	return &Disambiguation{Kind: KindFailed, Reason: reason}
}

// Result is a classification together with how it was reached. Vector,
// Matches and Disambiguation are only set when the vector path ran.
type Result struct {
	persona.Classification
	Source         Source          `json:"source"`
	Disambiguation *Disambiguation `json:"disambiguation,omitempty"`
	Vector         *persona.Vector `json:"vector,omitempty"`
	Matches        []persona.Match `json:"matches,omitempty"`
}

func defaultResult(source Source, confidence float64) Result {
	return Result{
		Classification: persona.DefaultClassification(confidence),
		Source:         source,
	}
}
