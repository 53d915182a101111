// Package answer assembles retrieved context and produces answers through the
// completion service.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
)

// Fixed responses returned without a completion call when retrieval is empty.
const (
	NoContextScoped = "I couldn't find any relevant information in the selected document to answer your question. The document may not contain content related to your query."
	NoContextGlobal = "No documents found. Please upload a document first."
)

// Answerer runs the query path: embed the question, retrieve the most similar
// segments, and ask the completion service for an answer grounded on them.
type Answerer struct {
	embedder  embedding.Embedder
	searcher  *search.Searcher
	completer llm.Completer
	topK      int
	logger    *zap.Logger
}

// Option configures an Answerer.
type Option func(*Answerer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(a *Answerer) { a.logger = l }
}

// NewAnswerer creates an answerer retrieving topK segments per question.
func NewAnswerer(embedder embedding.Embedder, searcher *search.Searcher, completer llm.Completer, topK int, opts ...Option) *Answerer {
	a := &Answerer{
		embedder:  embedder,
		searcher:  searcher,
		completer: completer,
		topK:      topK,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Answer answers question from the corpus, optionally scoped to documentID.
// When retrieval finds nothing, the fixed no-context response is returned
// without calling the completion service. topK <= 0 uses the configured default.
func (a *Answerer) Answer(ctx context.Context, question, documentID string, topK int) (*models.QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is required", models.ErrEmptyInput)
	}
	if topK <= 0 {
		topK = a.topK
	}
	queryVec, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	hits, err := a.searcher.Search(ctx, queryVec, documentID, topK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		msg := NoContextGlobal
		if documentID != "" {
			msg = NoContextScoped
		}
		return &models.QueryResult{Answer: msg, Segments: []models.SegmentRef{}}, nil
	}
	if a.logger != nil {
		a.logger.Debug("retrieved context",
			zap.Int("segments", len(hits)),
			zap.Float64("top_score", hits[0].Score),
		)
	}
	text, err := a.completer.Complete(ctx, BuildContext(hits), question)
	if err != nil {
		return nil, err
	}
	refs := make([]models.SegmentRef, len(hits))
	for i, h := range hits {
		refs[i] = models.SegmentRef{
			ID:      h.Segment.ID,
			Text:    h.Segment.Text,
			Ordinal: h.Segment.Ordinal,
		}
	}
	return &models.QueryResult{Answer: text, Segments: refs}, nil
}

// BuildContext joins segments into one prompt block, each introduced by a
// 1-based "[Context N]" label and separated by a blank line. Input ordering is
// preserved: callers pass similarity-ranked segments, most relevant first.
func BuildContext(hits []models.ScoredSegment) string {
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Context %d]\n%s", i+1, h.Segment.Text)
	}
	return b.String()
}
