// Package embedding turns words into fixed-length vectors and scores them.
//
// Providers:
//   - Hashing: deterministic character n-gram hashing, no model files (dev/tests).
//   - ONNX:    all-MiniLM-L6-v2 run locally through ONNX Runtime.
//   - Remote:  Hugging Face feature-extraction endpoint over HTTP.
//
// Providers are expensive to construct and cheap to query; build one per process
// and share it across sessions.
package embedding

import (
	"context"
	"math"
)

// Provider maps text to a vector. Implementations must be deterministic for
// identical input and safe for concurrent use.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

// Similarity returns the cosine similarity of a and b (1 - cosine distance).
// A zero vector has no direction, so its similarity to anything is 0.
func Similarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// normalize scales vec to unit length in place. It reports false for a zero vector.
func normalize(vec []float32) bool {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return false
	}
	inv := float32(1 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= inv
	}
	return true
}
