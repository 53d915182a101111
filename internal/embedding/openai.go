package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Embedding dimensions per known OpenAI model; the API is versionless from the
// core's point of view, so unknown models fall back to the small-model size.
const (
	dimSmall = 1536
	dimLarge = 3072
)

// OpenAIEmbedder calls the OpenAI embeddings API. Vectors are L2-normalized
// so inner product equals cosine similarity downstream.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIEmbedder creates an embedder for the given model using apiKey.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is not set", models.ErrEmbedding)
	}
	dim := dimSmall
	if model == string(openai.LargeEmbedding3) {
		dim = dimLarge
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dim:    dim,
	}, nil
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one API request, preserving order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts to embed", models.ErrEmptyInput)
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", models.ErrEmbedding, len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		copy(vec, d.Embedding)
		utils.NormalizeL2(vec)
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", models.ErrEmbedding, d.Index)
		}
		out[d.Index] = vec
	}
	e.dim = len(out[0])
	return out, nil
}

// Dimensions returns the embedding dimension for the configured model.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dim
}

// Close is a no-op; the HTTP client holds no resources needing release.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
