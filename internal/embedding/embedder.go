// Package embedding provides the gateway to the external embedding service.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text.
// A failure of the backing service is fatal to the enclosing ingestion or
// query operation; implementations wrap errors with models.ErrEmbedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
