// Package source turns protocol documents into ordered text lines with the
// column spacing of the printed sheet kept as runs of spaces.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"skatescore/internal/util"
)

var (
	ErrOpenDocument = errors.New("open document")
	ErrNoText       = errors.New("no extractable text")
	ErrUnsupported  = errors.New("unsupported document type")
)

type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// Lines reads the document at path and returns its text lines in reading
// order. The format is chosen by file extension.
func (r *Reader) Lines(ctx context.Context, path string) ([]string, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenDocument, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDFLines(ctx, blob)
	case ".eml":
		return EMLLines(ctx, blob)
	case ".txt":
		return TextLines(blob)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

func TextLines(blob []byte) ([]string, error) {
	text := string(blob)
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}
	return util.SplitLines(text), nil
}
