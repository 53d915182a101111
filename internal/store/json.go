package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

// JSONStore persists the corpus as a single JSON file holding the whole
// snapshot. Writes serialize through one mutex across the read-modify-write
// window, and the file is replaced atomically (temp file + rename) so a crash
// mid-write never leaves a truncated store behind.
type JSONStore struct {
	path string
	mu   sync.RWMutex
	snap models.Snapshot
}

// NewJSONStore opens the store at path, creating parent directories as needed.
// A missing file is an empty store.
func NewJSONStore(path string) (*JSONStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create store dir: %v", models.ErrStore, err)
		}
	}
	s := &JSONStore{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("%w: read store: %v", models.ErrStore, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.snap); err != nil {
		return nil, fmt.Errorf("%w: parse store: %v", models.ErrStore, err)
	}
	return s, nil
}

// Upsert inserts or replaces doc by ID. The in-memory snapshot is only
// updated after the new state has been persisted, so a failed write leaves
// the store unchanged.
func (s *JSONStore) Upsert(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkUpsert(doc, s.dimensionExcluding(doc.ID)); err != nil {
		return err
	}
	next := models.Snapshot{Documents: make([]models.Document, 0, len(s.snap.Documents)+1)}
	for i := range s.snap.Documents {
		if s.snap.Documents[i].ID != doc.ID {
			next.Documents = append(next.Documents, s.snap.Documents[i])
		}
	}
	next.Documents = append(next.Documents, copyDocument(doc))

	if err := s.write(&next); err != nil {
		return err
	}
	s.snap = next
	return nil
}

// Get returns a copy of the document with the given ID.
func (s *JSONStore) Get(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.snap.Documents {
		if s.snap.Documents[i].ID == id {
			doc := copyDocument(&s.snap.Documents[i])
			return &doc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
}

// Load returns the full current snapshot. Document and segment slices are
// copied; vector contents are shared and must not be mutated by callers.
func (s *JSONStore) Load(ctx context.Context) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := models.Snapshot{Documents: make([]models.Document, len(s.snap.Documents))}
	for i := range s.snap.Documents {
		snap.Documents[i] = copyDocument(&s.snap.Documents[i])
	}
	return &snap, nil
}

// Delete removes the document with the given ID.
func (s *JSONStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := models.Snapshot{Documents: make([]models.Document, 0, len(s.snap.Documents))}
	found := false
	for i := range s.snap.Documents {
		if s.snap.Documents[i].ID == id {
			found = true
			continue
		}
		next.Documents = append(next.Documents, s.snap.Documents[i])
	}
	if !found {
		return fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	if err := s.write(&next); err != nil {
		return err
	}
	s.snap = next
	return nil
}

// List returns a listing of all stored documents in insertion order.
func (s *JSONStore) List(ctx context.Context) ([]models.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]models.DocumentInfo, len(s.snap.Documents))
	for i := range s.snap.Documents {
		d := &s.snap.Documents[i]
		infos[i] = models.DocumentInfo{
			ID:           d.ID,
			Filename:     d.Filename,
			SegmentCount: len(d.Segments),
			CreatedAt:    d.CreatedAt,
		}
	}
	return infos, nil
}

// Close is a no-op; every write is already flushed to disk.
func (s *JSONStore) Close() error {
	return nil
}

// dimensionExcluding returns the corpus dimension ignoring the document with
// the given ID, so replacing the only document may change the dimension.
func (s *JSONStore) dimensionExcluding(id string) int {
	for i := range s.snap.Documents {
		if s.snap.Documents[i].ID == id {
			continue
		}
		if dim := s.snap.Documents[i].Dimension(); dim != 0 {
			return dim
		}
	}
	return 0
}

// write persists snap to the store file atomically. Callers hold the write lock.
func (s *JSONStore) write(snap *models.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode store: %v", models.ErrStore, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", models.ErrStore, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: write store: %v", models.ErrStore, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: close temp file: %v", models.ErrStore, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: replace store: %v", models.ErrStore, err)
	}
	return nil
}

// copyDocument copies doc with a fresh segments slice. Segment vectors share
// backing arrays; segments are immutable once created.
func copyDocument(doc *models.Document) models.Document {
	out := *doc
	out.Segments = make([]models.Segment, len(doc.Segments))
	copy(out.Segments, doc.Segments)
	return out
}
