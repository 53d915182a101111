package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// DocumentID derives an upload document ID from the filename and the
// ingestion time. The timestamp component makes IDs collision-resistant in
// practice, not cryptographically unique.
func DocumentID(filename string, at time.Time) string {
	clean := nonAlnum.ReplaceAllString(filename, "_")
	if strings.Trim(clean, "_") == "" {
		clean = uuid.New().String()
	}
	return fmt.Sprintf("%s_%d", clean, at.UnixMilli())
}

// FileDocID returns a stable document ID for a file path. The same path
// always yields the same ID, so watched files can be re-indexed and deleted
// by path alone.
func FileDocID(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return "file_" + hex.EncodeToString(sum[:])
}
