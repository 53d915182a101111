// Package store persists documents and their segment vectors.
package store

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// Store is the durable document corpus.
//
// Upsert replaces any existing document with the same ID wholesale (never a
// merge) and is durable before it returns: a query issued after a successful
// upsert observes the complete new document. Implementations serialize
// concurrent writers; readers never observe a partially written document.
type Store interface {
	Upsert(ctx context.Context, doc *models.Document) error
	// Get returns the document with the given ID or models.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Document, error)
	// Load returns the full current snapshot; an uninitialized backing state
	// loads as an empty snapshot, not an error.
	Load(ctx context.Context) (*models.Snapshot, error)
	// Delete removes the document with the given ID or returns models.ErrNotFound.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.DocumentInfo, error)
	Close() error
}

// checkUpsert validates doc against the store invariants: the document's own
// consistency plus dimension agreement with the already-stored corpus.
// storeDim 0 means the store is empty and the document sets the dimension.
func checkUpsert(doc *models.Document, storeDim int) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if storeDim != 0 && doc.Dimension() != storeDim {
		return fmt.Errorf("%w: document %s has dimension %d, store has %d",
			models.ErrDimensionMismatch, doc.ID, doc.Dimension(), storeDim)
	}
	return nil
}
