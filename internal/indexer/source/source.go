// Package source reads the document collection. Every source yields one
// document per element, in a stable order that becomes the document ID
// order; a read either returns the whole collection or fails with
// ErrSourceUnavailable.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/errors"
)

// Source produces the raw document lines to index.
type Source interface {
	ReadDocuments(ctx context.Context) ([]string, error)
	// Describe names the source for logs.
	Describe() string
}

// FileSource reads a text file, one document per line. Each document keeps
// its trailing newline, exactly as read. Files ending in .gz or .zst are
// decompressed on the fly.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Describe() string {
	return "file:" + s.Path
}

func (s *FileSource) ReadDocuments(ctx context.Context) ([]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w: %w", s.Path, apperrors.ErrSourceUnavailable, err)
	}
	defer f.Close()

	r, closeFn, err := decompressor(s.Path, f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w: %w", s.Path, apperrors.ErrSourceUnavailable, err)
	}
	defer closeFn()

	docs, err := ReadLines(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w: %w", s.Path, apperrors.ErrSourceUnavailable, err)
	}
	return docs, nil
}

func decompressor(path string, r io.Reader) (io.Reader, func(), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return r, func() {}, nil
	}
}

// ReadLines splits r into lines, keeping each line's "\n". A "\r\n" ending
// is stored as "\n". A final line without a newline is kept as is; an empty
// input yields no documents.
func ReadLines(ctx context.Context, r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	docs := make([]string, 0, 64)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := br.ReadString('\n')
		if strings.HasSuffix(line, "\r\n") {
			line = line[:len(line)-2] + "\n"
		}
		if line != "" {
			docs = append(docs, line)
		}
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Static serves a fixed in-memory collection. Tests and the CLI use it.
type Static []string

func (s Static) Describe() string {
	return fmt.Sprintf("static:%d", len(s))
}

func (s Static) ReadDocuments(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSourceUnavailable, err)
	}
	docs := make([]string, len(s))
	copy(docs, s)
	return docs, nil
}
