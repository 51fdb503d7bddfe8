// Package media classifies staged payloads by content.
package media

import (
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Classifier derives a MIME type from file content.
type Classifier interface {
	Classify(path string) (string, error)
}

// ContentClassifier inspects magic bytes; it never looks at the file name.
type ContentClassifier struct{}

// NewClassifier returns the content-based classifier.
func NewClassifier() *ContentClassifier {
	return &ContentClassifier{}
}

// Classify opens path and detects its MIME type from the leading bytes.
func (ContentClassifier) Classify(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return NormalizeMime(mt.String()), nil
}

// NormalizeMime normalizes MIME to lowercase token form.
func NormalizeMime(raw string) string {
	mime := strings.ToLower(strings.TrimSpace(raw))
	if mime == "" {
		return ""
	}
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

// Allowed reports whether mime is a member of allowList after normalization.
func Allowed(mime string, allowList []string) bool {
	mime = NormalizeMime(mime)
	if mime == "" {
		return false
	}
	for _, item := range allowList {
		if NormalizeMime(item) == mime {
			return true
		}
	}
	return false
}
