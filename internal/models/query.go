package models

import (
	"fmt"
	"strings"
)

// IngestResult reports a successful document ingestion.
type IngestResult struct {
	DocumentID   string `json:"document_id"`
	SegmentCount int    `json:"segment_count"`
}

// QueryRequest is a question against the corpus, optionally scoped to one document.
type QueryRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"document_id,omitempty"`
	TopK       int    `json:"top_k,omitempty"`
}

// Validate checks the request and normalizes TopK against the given bounds.
func (q *QueryRequest) Validate(defaultTopK, maxTopK int) error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%w: question is required", ErrEmptyInput)
	}
	if q.TopK <= 0 {
		q.TopK = defaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	return nil
}

// SegmentRef is one retrieved segment in a query result. Text is the full
// segment text; truncation for display is a presentation concern.
type SegmentRef struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Ordinal int    `json:"ordinal"`
}

// QueryResult is the answer to a question with the segments it was grounded on,
// most relevant first.
type QueryResult struct {
	Answer   string       `json:"answer"`
	Segments []SegmentRef `json:"segments"`
}

// ScoredSegment pairs a candidate segment with its similarity score.
type ScoredSegment struct {
	Segment Segment `json:"segment"`
	Score   float64 `json:"score"`
}
