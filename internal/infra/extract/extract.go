package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Extractor implements the text extraction collaborator: document bytes in,
// plain text out. PDFs go through a real parser; anything text-shaped is
// sanitized and passed through.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) Extract(data []byte, mimeType string) (string, error) {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case mime == "application/pdf":
		return extractPDF(data)
	case strings.HasPrefix(mime, "text/"), mime == "application/json":
		return sanitize(string(data)), nil
	}

	// Unknown mime: accept it when it decodes as text, refuse otherwise.
	if utf8.Valid(data) {
		return sanitize(string(data)), nil
	}
	return "", fmt.Errorf("unsupported mime type %q", mimeType)
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return sanitize(string(text)), nil
}

// sanitize drops invalid UTF-8 and control characters that upset both the
// scorer and downstream JSON encoding.
func sanitize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\t' {
			continue
		}
		if r == 127 {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.TrimSpace(sb.String())
}
