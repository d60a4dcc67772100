// Package face compares face embeddings and guards enrollment against
// one person registering under two voter ids.
package face

import "math"

// eps keeps Distance finite for zero vectors.
const eps = 1e-9

// Distance is the cosine distance 1 - a·b / (‖a‖‖b‖ + eps), in [0, 2].
// Lower means more similar. Vectors of different length are never similar.
func Distance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)+eps)
}

// Matcher applies a single threshold to Distance. Every flow shares one Matcher.
type Matcher struct {
	Threshold float64
}

// Match returns the distance and whether it is within the threshold.
func (m Matcher) Match(a, b []float64) (float64, bool) {
	d := Distance(a, b)
	return d, d <= m.Threshold
}
