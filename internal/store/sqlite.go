package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStore implements Store on SQLite. Upserts run in one transaction
// (delete + insert), so readers see either the old or the new document, never
// a partial one.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create database dir: %v", models.ErrStore, err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", models.ErrStore, err)
	}
	// One connection serializes writers; SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %s: %v", models.ErrStore, pragma, err)
		}
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %v", models.ErrStore, err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS segments (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		content TEXT NOT NULL,
		vector BLOB NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_segments_document_id ON segments(document_id);
	CREATE INDEX IF NOT EXISTS idx_segments_document_ordinal ON segments(document_id, ordinal);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert inserts or replaces doc by ID in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, doc *models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin upsert: %v", models.ErrStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	storeDim, err := corpusDimension(ctx, tx, doc.ID)
	if err != nil {
		return err
	}
	if err := checkUpsert(doc, storeDim); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", doc.ID); err != nil {
		return fmt.Errorf("%w: delete previous document: %v", models.ErrStore, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO documents (id, filename, created_at) VALUES (?, ?, ?)",
		doc.ID, doc.Filename, doc.CreatedAt,
	); err != nil {
		return fmt.Errorf("%w: insert document: %v", models.ErrStore, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO segments (id, document_id, ordinal, content, vector) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: prepare segment insert: %v", models.ErrStore, err)
	}
	defer stmt.Close()
	for i := range doc.Segments {
		seg := &doc.Segments[i]
		if _, err := stmt.ExecContext(ctx, seg.ID, seg.DocumentID, seg.Ordinal, seg.Text, vectorToBytes(seg.Vector)); err != nil {
			return fmt.Errorf("%w: insert segment %s: %v", models.ErrStore, seg.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit upsert: %v", models.ErrStore, err)
	}
	return nil
}

// corpusDimension returns the stored vector dimension ignoring excludeID, or 0
// for an empty corpus.
func corpusDimension(ctx context.Context, tx *sql.Tx, excludeID string) (int, error) {
	var length int
	err := tx.QueryRowContext(ctx,
		"SELECT length(vector) FROM segments WHERE document_id != ? LIMIT 1", excludeID,
	).Scan(&length)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read corpus dimension: %v", models.ErrStore, err)
	}
	return length / 4, nil
}

// Get returns the document with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Document, error) {
	doc := models.Document{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT filename, created_at FROM documents WHERE id = ?", id,
	).Scan(&doc.Filename, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get document: %v", models.ErrStore, err)
	}
	segments, err := s.segmentsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Segments = segments
	return &doc, nil
}

func (s *SQLiteStore) segmentsFor(ctx context.Context, docID string) ([]models.Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ordinal, content, vector FROM segments WHERE document_id = ? ORDER BY ordinal", docID)
	if err != nil {
		return nil, fmt.Errorf("%w: query segments: %v", models.ErrStore, err)
	}
	defer rows.Close()
	var segments []models.Segment
	for rows.Next() {
		seg := models.Segment{DocumentID: docID}
		var blob []byte
		if err := rows.Scan(&seg.ID, &seg.Ordinal, &seg.Text, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan segment: %v", models.ErrStore, err)
		}
		seg.Vector = bytesToVector(blob)
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate segments: %v", models.ErrStore, err)
	}
	return segments, nil
}

// Load returns the full snapshot, documents in insertion (rowid) order.
func (s *SQLiteStore) Load(ctx context.Context) (*models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, filename, created_at FROM documents ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("%w: query documents: %v", models.ErrStore, err)
	}
	defer rows.Close()
	snap := &models.Snapshot{}
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan document: %v", models.ErrStore, err)
		}
		snap.Documents = append(snap.Documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate documents: %v", models.ErrStore, err)
	}
	for i := range snap.Documents {
		segments, err := s.segmentsFor(ctx, snap.Documents[i].ID)
		if err != nil {
			return nil, err
		}
		snap.Documents[i].Segments = segments
	}
	return snap, nil
}

// Delete removes the document with the given ID; segments cascade.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: delete document: %v", models.ErrStore, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete document: %v", models.ErrStore, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return nil
}

// List returns a listing of all stored documents in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]models.DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.filename, d.created_at, COUNT(s.id)
		FROM documents d LEFT JOIN segments s ON s.document_id = d.id
		GROUP BY d.id ORDER BY d.rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", models.ErrStore, err)
	}
	defer rows.Close()
	var infos []models.DocumentInfo
	for rows.Next() {
		var info models.DocumentInfo
		if err := rows.Scan(&info.ID, &info.Filename, &info.CreatedAt, &info.SegmentCount); err != nil {
			return nil, fmt.Errorf("%w: scan listing: %v", models.ErrStore, err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate listing: %v", models.ErrStore, err)
	}
	return infos, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// vectorToBytes encodes a vector as little-endian float32 bits.
func vectorToBytes(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(x))
	}
	return out
}

// bytesToVector decodes a little-endian float32 blob.
func bytesToVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
