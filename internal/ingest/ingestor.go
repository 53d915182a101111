// Package ingest turns raw document files into embedded, persisted documents.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/store"
)

// Ingestor runs the ingestion path: extract text, chunk it, embed every
// segment, and persist the assembled document as one atomic upsert. Nothing
// is written unless every segment embedded successfully.
type Ingestor struct {
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	store     store.Store
	logger    *zap.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets a logger for debug output (document ingested, deleted, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(ing *Ingestor) { ing.logger = l }
}

// NewIngestor creates an ingestor with the given dependencies.
func NewIngestor(extractor *extract.Extractor, ch *chunker.Chunker, embedder embedding.Embedder, st store.Store, opts ...Option) *Ingestor {
	ing := &Ingestor{
		extractor: extractor,
		chunker:   ch,
		embedder:  embedder,
		store:     st,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// IngestBytes ingests an uploaded document. The document ID is derived from
// the filename and the ingestion time, so re-uploading the same file creates
// a new document rather than replacing the old one.
func (ing *Ingestor) IngestBytes(ctx context.Context, content []byte, filename string) (*models.IngestResult, error) {
	text, err := ing.extractor.ExtractBytes(content, strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	return ing.ingestText(ctx, DocumentID(filename, time.Now()), filename, text)
}

// IngestFile ingests the file at path with a stable path-derived document ID,
// so re-ingesting a watched file replaces its previous document.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (*models.IngestResult, error) {
	text, err := ing.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return ing.ingestText(ctx, FileDocID(path), filepath.Base(path), text)
}

// DeleteFile removes the document previously ingested from path.
func (ing *Ingestor) DeleteFile(ctx context.Context, path string) error {
	id := FileDocID(path)
	if err := ing.store.Delete(ctx, id); err != nil {
		return err
	}
	if ing.logger != nil {
		ing.logger.Debug("document deleted", zap.String("id", id), zap.String("path", path))
	}
	return nil
}

func (ing *Ingestor) ingestText(ctx context.Context, id, filename, text string) (*models.IngestResult, error) {
	pieces, err := ing.chunker.Chunk(text)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", filename, err)
	}
	vectors, err := ing.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", filename, err)
	}
	doc := &models.Document{
		ID:        id,
		Filename:  filename,
		CreatedAt: time.Now().UTC(),
		Segments:  make([]models.Segment, len(pieces)),
	}
	for i := range pieces {
		doc.Segments[i] = models.Segment{
			ID:         fmt.Sprintf("%s_chunk_%d", id, i),
			DocumentID: id,
			Text:       pieces[i],
			Vector:     vectors[i],
			Ordinal:    i + 1,
		}
	}
	if err := ing.store.Upsert(ctx, doc); err != nil {
		return nil, err
	}
	if ing.logger != nil {
		ing.logger.Debug("document ingested",
			zap.String("id", id),
			zap.String("filename", filename),
			zap.Int("segments", len(doc.Segments)),
		)
	}
	return &models.IngestResult{DocumentID: id, SegmentCount: len(doc.Segments)}, nil
}
