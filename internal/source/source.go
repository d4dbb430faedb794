// Package source turns configured inputs (in-memory records, CSV, JSON,
// HTML tables) into a single stream of records.Record values.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/abbasaisolutions/sygnify-sub002/internal/config"
	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

// ErrInputType reports input that is not tabular record data, e.g. a JSON
// root that is a bare scalar. The pipeline fails fast on it rather than
// guessing at a schema.
var ErrInputType = errors.New("source: input is not record data")

// Reader streams records from one input. Implementations send on out
// until the input is exhausted or ctx is done, and never close out; the
// caller owns the channel.
type Reader interface {
	// Kind identifies the source type ("records", "csv", "json", "html").
	Kind() string

	// Stream sends every record on out. Recoverable per-record problems go
	// to onErr (which may be nil) with a 1-based line or row number; fatal
	// problems end the stream with an error.
	Stream(ctx context.Context, out chan<- records.Record, onErr func(line int, err error)) error

	// SinglePass reports whether the source can only be read once.
	SinglePass() bool
}

// Open builds a Reader for the configured source. File-backed kinds open
// the file lazily on Stream, so Open itself does not touch the path.
func Open(src config.Source) (Reader, error) {
	switch src.Kind {
	case config.SourceRecords:
		return nil, fmt.Errorf("source: kind %q requires FromRecords", src.Kind)
	case config.SourceCSV:
		return &csvReader{path: src.Path, opts: src.Options}, nil
	case config.SourceJSON:
		return &jsonReader{path: src.Path, opts: src.Options}, nil
	case config.SourceHTML:
		return &htmlReader{path: src.Path, opts: src.Options}, nil
	default:
		return nil, fmt.Errorf("source: unknown kind %q", src.Kind)
	}
}

// FromRecords wraps an in-memory dataset as a Reader.
func FromRecords(recs []records.Record) Reader {
	return &sliceReader{recs: recs}
}

type sliceReader struct {
	recs []records.Record
}

func (s *sliceReader) Kind() string     { return "records" }
func (s *sliceReader) SinglePass() bool { return false }

func (s *sliceReader) Stream(ctx context.Context, out chan<- records.Record, onErr func(line int, err error)) error {
	for _, rec := range s.recs {
		if rec == nil {
			continue
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func openPath(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("source: path not set")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	return f, nil
}
