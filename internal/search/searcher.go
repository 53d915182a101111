package search

import (
	"context"
	"sort"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/store"
)

// Searcher ranks stored segments against a query vector by brute-force cosine
// similarity. Exact search over the whole corpus is the baseline here; the
// Store seam is where an index would slot in if the corpus outgrows it.
type Searcher struct {
	store store.Store
}

// NewSearcher creates a searcher reading from st.
func NewSearcher(st store.Store) *Searcher {
	return &Searcher{store: st}
}

// Search scores every candidate segment against query and returns at most
// topK results in descending score order. A non-empty documentID narrows the
// candidate set to that document's segments; otherwise all documents are
// searched. Ties keep enumeration order (document insertion order, then
// segment ordinal), so results are deterministic. An unknown documentID or an
// empty candidate set yields an empty result, not an error.
func (s *Searcher) Search(ctx context.Context, query []float32, documentID string, topK int) ([]models.ScoredSegment, error) {
	if topK <= 0 {
		return []models.ScoredSegment{}, nil
	}
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	var candidates []models.Segment
	if documentID != "" {
		for i := range snap.Documents {
			if snap.Documents[i].ID == documentID {
				candidates = snap.Documents[i].Segments
				break
			}
		}
	} else {
		candidates = make([]models.Segment, 0, snap.SegmentCount())
		for i := range snap.Documents {
			candidates = append(candidates, snap.Documents[i].Segments...)
		}
	}
	if len(candidates) == 0 {
		return []models.ScoredSegment{}, nil
	}

	scored := make([]models.ScoredSegment, len(candidates))
	for i := range candidates {
		scored[i] = models.ScoredSegment{
			Segment: candidates[i],
			Score:   CosineSimilarity(query, candidates[i].Vector),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}
