// Package chunker splits extracted document text into overlapping segments.
package chunker

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// Default chunking policy, sized for embedding-friendly segments.
const (
	DefaultMaxSize = 1000
	DefaultOverlap = 200
)

// Chunker splits text into overlapping rune-based windows, preferring
// paragraph, sentence, and word boundaries over hard character cuts.
type Chunker struct {
	maxSize int
	overlap int
}

// NewChunker creates a chunker with the given window size and overlap, both in
// runes. Returns models.ErrInvalidPolicy when maxSize is not positive, overlap
// is negative, or overlap is not strictly less than maxSize.
func NewChunker(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 || overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("%w: maxSize=%d overlap=%d", models.ErrInvalidPolicy, maxSize, overlap)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Chunk splits text into pieces of at most maxSize runes in reading order.
// Each piece after the first starts exactly overlap runes before the previous
// piece's end, so consecutive pieces share overlap runes and concatenating the
// pieces with the overlap removed reconstructs text.
// Returns models.ErrEmptyInput when text is empty or whitespace-only.
func (c *Chunker) Chunk(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text to chunk", models.ErrEmptyInput)
	}
	runes := []rune(text)
	if len(runes) <= c.maxSize {
		return []string{text}, nil
	}
	var pieces []string
	start := 0
	for {
		end := start + c.maxSize
		if end >= len(runes) {
			pieces = append(pieces, string(runes[start:]))
			break
		}
		cut := c.findCut(runes, start, end)
		pieces = append(pieces, string(runes[start:cut]))
		start = cut - c.overlap
	}
	return pieces, nil
}

// findCut returns the cut index for the window starting at start, preferring a
// paragraph break, then a sentence break, then a word break, and falling back
// to a hard cut at end. Candidates below start+overlap+1 are skipped so the
// next window start (cut - overlap) always moves strictly forward.
func (c *Chunker) findCut(runes []rune, start, end int) int {
	earliest := start + c.overlap + 1
	if i := lastBoundary(runes, earliest, end, isParagraphBreak); i >= 0 {
		return i
	}
	if i := lastBoundary(runes, earliest, end, isSentenceBreak); i >= 0 {
		return i
	}
	if i := lastBoundary(runes, earliest, end, isWordBreak); i >= 0 {
		return i
	}
	return end
}

// lastBoundary scans backward from end to earliest and returns the largest cut
// index at which match reports a boundary, or -1 when none exists.
func lastBoundary(runes []rune, earliest, end int, match func([]rune, int) bool) int {
	for i := end; i >= earliest; i-- {
		if match(runes, i) {
			return i
		}
	}
	return -1
}

// isParagraphBreak reports whether a blank line ends immediately before cut.
func isParagraphBreak(runes []rune, cut int) bool {
	return cut >= 2 && runes[cut-1] == '\n' && runes[cut-2] == '\n'
}

// isSentenceBreak reports whether a sentence terminator followed by whitespace
// ends immediately before cut.
func isSentenceBreak(runes []rune, cut int) bool {
	if cut < 2 || !isSpace(runes[cut-1]) {
		return false
	}
	switch runes[cut-2] {
	case '.', '!', '?':
		return true
	}
	return false
}

// isWordBreak reports whether a whitespace rune ends immediately before cut.
func isWordBreak(runes []rune, cut int) bool {
	return cut >= 1 && isSpace(runes[cut-1])
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\n', '\t', '\r':
		return true
	}
	return false
}
