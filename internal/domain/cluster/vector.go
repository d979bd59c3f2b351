package cluster

import "math"

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1,1]. Mismatched dimensionalities and zero-magnitude vectors yield 0
// (treated as dissimilar rather than an error).
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// EuclideanDistance returns the L2 distance between a and b. Mismatched
// dimensionalities yield +Inf so such pairs are never considered neighbors.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Centroid returns the element-wise mean of vectors. Vectors whose
// dimensionality differs from the first one are skipped. Returns nil when no
// usable vector is present.
func Centroid(vectors [][]float64) []float64 {
	var out []float64
	n := 0
	for _, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if out == nil {
			out = make([]float64, len(v))
		}
		if len(v) != len(out) {
			continue
		}
		for i := range v {
			out[i] += v[i]
		}
		n++
	}
	if n == 0 {
		return nil
	}
	inv := 1.0 / float64(n)
	for i := range out {
		out[i] *= inv
	}
	return out
}
