package ingestion

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// MaxLineBytes is the longest line the importer accepts; longer lines are a source error
const MaxLineBytes = 4 * 1024 * 1024

// SourceError is an open or read failure. It is fatal to the current file only.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// OpenSource opens a log file for reading. Files ending in .gz are gunzipped
// and files ending in .zst or .zstd are zstd-decoded on the fly.
func OpenSource(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceError{Source: path, Err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &SourceError{Source: path, Err: fmt.Errorf("gzip header: %w", err)}
		}
		return &stackedReader{Reader: gz, closers: []io.Closer{gz, f}}, nil

	case ".zst", ".zstd":
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &SourceError{Source: path, Err: fmt.Errorf("zstd stream: %w", err)}
		}
		return &stackedReader{Reader: dec, closers: []io.Closer{dec.IOReadCloser(), f}}, nil

	default:
		return f, nil
	}
}

// stackedReader reads from a decoder and closes the decoder and file in order
type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReader) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
