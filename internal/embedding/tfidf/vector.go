package tfidf

import "math"

// Vector is a sparse row with strictly increasing column indices.
type Vector struct {
	Indices []int
	Values  []float64
}

// IsZero reports whether v has no non-zero entries.
func (v Vector) IsZero() bool { return len(v.Indices) == 0 }

// Dot returns the inner product of two sparse vectors. Entries are summed in
// column order, so the result does not depend on map iteration.
func (v Vector) Dot(o Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(o.Indices) {
		switch {
		case v.Indices[i] == o.Indices[j]:
			sum += v.Values[i] * o.Values[j]
			i++
			j++
		case v.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of v and o, 0 when either is zero.
func Cosine(v, o Vector) float64 {
	nv, no := v.Norm(), o.Norm()
	if nv == 0 || no == 0 {
		return 0
	}
	return v.Dot(o) / (nv * no)
}
