package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// wordDocumentPath is the main document body inside a .docx package.
const wordDocumentPath = "word/document.xml"

// textRun matches <w:t> nodes with or without attributes
// (e.g. <w:t xml:space="preserve">).
var textRun = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// paragraphEnd marks paragraph closes so extracted text keeps line structure.
var paragraphEnd = regexp.MustCompile(`</w:p>`)

// extractDOCX extracts text from .docx bytes. DOCX is a ZIP containing OOXML;
// all <w:t> text nodes are collected regardless of run attributes, and
// paragraph closes become newlines so chunking can break at paragraphs.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	var docXML []byte
	for _, f := range zr.File {
		if f.Name != wordDocumentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract DOCX: open %s: %w", f.Name, err)
		}
		docXML, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("extract DOCX: read %s: %w", f.Name, err)
		}
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", wordDocumentPath)
	}

	body := paragraphEnd.ReplaceAllString(string(docXML), "\n")
	var b strings.Builder
	for _, line := range strings.Split(body, "\n") {
		runs := textRun.FindAllStringSubmatch(line, -1)
		if len(runs) == 0 {
			continue
		}
		for _, r := range runs {
			b.WriteString(r[1])
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}
