// Package embedding integrates the external vector provider: the provider
// port, an OpenAI-compatible HTTP client, and the batcher that feeds term
// records through it with caching, pacing, and bounded retries.
package embedding

import "context"

// Provider produces embedding vectors for term texts. Implementations must
// return one vector per input text, in input order, all with the same
// dimensionality.
type Provider interface {
	// Embed vectorizes texts in one provider call.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions reports the vector dimensionality this provider is
	// configured for.
	Dimensions() int
}

// Cache stores term vectors keyed by term text so repeat analyses skip the
// provider. Implementations are expected to be shared across runs; a miss is
// not an error.
type Cache interface {
	// Get returns the cached vector for text, or ok=false on a miss.
	Get(ctx context.Context, text string) (vector []float64, ok bool, err error)

	// Set stores the vector for text.
	Set(ctx context.Context, text string, vector []float64) error
}
