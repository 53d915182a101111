// Package models defines core data structures for documents, segments, and query results.
package models

import (
	"fmt"
	"time"
)

// Segment is a chunked, independently embedded span of a document's text.
type Segment struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
	// Ordinal is the 1-based chunk position within the source document.
	// It is a display locator derived from chunk order, not a page number.
	Ordinal int `json:"ordinal"`
}

// Document is one ingested source with its ordered segments.
// Segments are immutable once created; a document is replaced wholesale on re-ingestion.
type Document struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Segments  []Segment `json:"segments"`
	CreatedAt time.Time `json:"created_at"`
}

// Dimension returns the vector dimension of the document's segments,
// or 0 when the document has no segments.
func (d *Document) Dimension() int {
	if len(d.Segments) == 0 {
		return 0
	}
	return len(d.Segments[0].Vector)
}

// Validate checks the document invariants required before persistence:
// non-empty ID, at least one segment, segments back-referencing the document,
// and one consistent non-zero vector dimension across all segments.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: document ID is required", ErrEmptyInput)
	}
	if len(d.Segments) == 0 {
		return fmt.Errorf("%w: document %s has no segments", ErrEmptyInput, d.ID)
	}
	dim := len(d.Segments[0].Vector)
	if dim == 0 {
		return fmt.Errorf("%w: document %s segment 0 has an empty vector", ErrDimensionMismatch, d.ID)
	}
	for i := range d.Segments {
		if d.Segments[i].DocumentID != d.ID {
			return fmt.Errorf("%w: segment %s belongs to %q, not %q",
				ErrEmptyInput, d.Segments[i].ID, d.Segments[i].DocumentID, d.ID)
		}
		if d.Segments[i].Text == "" {
			return fmt.Errorf("%w: segment %s has no text", ErrEmptyInput, d.Segments[i].ID)
		}
		if len(d.Segments[i].Vector) != dim {
			return fmt.Errorf("%w: segment %s has dimension %d, expected %d",
				ErrDimensionMismatch, d.Segments[i].ID, len(d.Segments[i].Vector), dim)
		}
	}
	return nil
}

// Snapshot is the full corpus at a point in time.
// Document order is insertion order; it is the tie-break order for search.
type Snapshot struct {
	Documents []Document `json:"documents"`
}

// Dimension returns the vector dimension of the stored corpus, discovered from
// the first document, or 0 for an empty snapshot.
func (s *Snapshot) Dimension() int {
	for i := range s.Documents {
		if dim := s.Documents[i].Dimension(); dim != 0 {
			return dim
		}
	}
	return 0
}

// SegmentCount returns the total number of segments across all documents.
func (s *Snapshot) SegmentCount() int {
	var n int
	for i := range s.Documents {
		n += len(s.Documents[i].Segments)
	}
	return n
}

// DocumentInfo is a listing entry for a stored document.
type DocumentInfo struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	SegmentCount int       `json:"segment_count"`
	CreatedAt    time.Time `json:"created_at"`
}
