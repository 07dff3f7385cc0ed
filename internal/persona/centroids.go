package persona

// centroids holds the hand-tuned reference vector of every persona, in
// Vector dimension order:
//
//	resume code design leadership game | breadth depth interaction | technical visual speed clarity
var centroids = [len(all)]struct {
	persona Type
	vector  [Dims]float64
}{
	{Recruiter, [Dims]float64{0.9, 0.3, 0.2, 0.3, 0.1, 0.4, 0.4, 0.5, 0.3, 0.2, 0.8, 0.7}},
	{Engineer, [Dims]float64{0.3, 0.9, 0.3, 0.5, 0.2, 0.5, 0.8, 0.6, 0.9, 0.3, 0.3, 0.7}},
	{Designer, [Dims]float64{0.2, 0.2, 0.9, 0.2, 0.4, 0.6, 0.7, 0.6, 0.2, 0.9, 0.4, 0.6}},
	{CTO, [Dims]float64{0.4, 0.6, 0.2, 0.9, 0.1, 0.6, 0.7, 0.4, 0.8, 0.2, 0.5, 0.6}},
	{Gamer, [Dims]float64{0.1, 0.3, 0.5, 0.1, 0.9, 0.5, 0.6, 0.8, 0.3, 0.8, 0.4, 0.6}},
	{Curious, [Dims]float64{0.3, 0.3, 0.3, 0.3, 0.3, 0.7, 0.4, 0.4, 0.3, 0.3, 0.5, 0.3}},
}

// Centroid returns the reference vector for p.
func Centroid(p Type) (Vector, bool) {
	for _, c := range centroids {
		if c.persona == p {
			return VectorFromArray(c.vector), true
		}
	}
	return Vector{}, false
}

// Centroids returns a copy of the full centroid table.
func Centroids() map[Type]Vector {
	out := make(map[Type]Vector, len(centroids))
	for _, c := range centroids {
		out[c.persona] = VectorFromArray(c.vector)
	}
	return out
}
