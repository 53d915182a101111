package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/hyperjump/kotae/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. The same text always
// yields the same unit-length vector, and different texts diverge, so cosine
// ranking over mock vectors is stable and meaningful.
type MockEmbedder struct {
	dimensions int
	// Calls counts Embed invocations, including those made through EmbedBatch.
	Calls int
}

// NewMockEmbedder returns a mock embedder producing vectors of the given dimension.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 16
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic unit vector derived from the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.Calls++
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := float64(h.Sum64() % 100003)
	vec := make([]float32, e.dimensions)
	for i := range vec {
		vec[i] = float32(math.Sin(seed+float64(i+1)) + 0.01)
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *MockEmbedder) Close() error {
	return nil
}
