package persona

// Dims is the number of dimensions in a behavior vector.
const Dims = 12

// DimensionNames lists the vector dimensions in positional order.
var DimensionNames = [Dims]string{
	"resumeFocus",
	"codeFocus",
	"designFocus",
	"leadershipFocus",
	"gameFocus",
	"explorationBreadth",
	"engagementDepth",
	"interactionRate",
	"technicalInterest",
	"visualInterest",
	"navigationSpeed",
	"intentClarity",
}

// Vector is a session's behavior encoded as 12 scores in [0,1].
// Array and VectorFromArray are the only places that know the positional
// layout; centroids and classification work on the array form.
type Vector struct {
	ResumeFocus        float64 `json:"resumeFocus"`
	CodeFocus          float64 `json:"codeFocus"`
	DesignFocus        float64 `json:"designFocus"`
	LeadershipFocus    float64 `json:"leadershipFocus"`
	GameFocus          float64 `json:"gameFocus"`
	ExplorationBreadth float64 `json:"explorationBreadth"`
	EngagementDepth    float64 `json:"engagementDepth"`
	InteractionRate    float64 `json:"interactionRate"`
	TechnicalInterest  float64 `json:"technicalInterest"`
	VisualInterest     float64 `json:"visualInterest"`
	NavigationSpeed    float64 `json:"navigationSpeed"`
	IntentClarity      float64 `json:"intentClarity"`
}

// Array returns the vector in dimension order.
func (v Vector) Array() [Dims]float64 {
	return [Dims]float64{
		v.ResumeFocus,
		v.CodeFocus,
		v.DesignFocus,
		v.LeadershipFocus,
		v.GameFocus,
		v.ExplorationBreadth,
		v.EngagementDepth,
		v.InteractionRate,
		v.TechnicalInterest,
		v.VisualInterest,
		v.NavigationSpeed,
		v.IntentClarity,
	}
}

// VectorFromArray is the inverse of Vector.Array.
func VectorFromArray(a [Dims]float64) Vector {
	return Vector{
		ResumeFocus:        a[0],
		CodeFocus:          a[1],
		DesignFocus:        a[2],
		LeadershipFocus:    a[3],
		GameFocus:          a[4],
		ExplorationBreadth: a[5],
		EngagementDepth:    a[6],
		InteractionRate:    a[7],
		TechnicalInterest:  a[8],
		VisualInterest:     a[9],
		NavigationSpeed:    a[10],
		IntentClarity:      a[11],
	}
}

// focusScores returns the five focus dimensions.
func (v Vector) focusScores() [5]float64 {
	return [5]float64{v.ResumeFocus, v.CodeFocus, v.DesignFocus, v.LeadershipFocus, v.GameFocus}
}
