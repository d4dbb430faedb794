package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/abbasaisolutions/sygnify-sub002/internal/config"
	"github.com/abbasaisolutions/sygnify-sub002/internal/schema"
	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

// csvReader streams one CSV file as records keyed by normalized header
// names.
//
// Options:
//   - has_header (bool, default true)
//   - comma (string, default ",")
//   - trim_space (bool, default true)
//   - lazy_quotes (bool, default false)
//   - fields_per_record (int, default 0: infer, allow variable)
//   - header_map (map original header -> record key)
type csvReader struct {
	path string
	opts config.Options
}

func (c *csvReader) Kind() string { return "csv" }

// SinglePass is true: the file is parsed in one forward pass.
func (c *csvReader) SinglePass() bool { return true }

func (c *csvReader) Stream(ctx context.Context, out chan<- records.Record, onErr func(line int, err error)) error {
	f, err := openPath(c.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return streamCSV(ctx, f, c.opts, out, onErr)
}

func streamCSV(ctx context.Context, src io.Reader, opt config.Options, out chan<- records.Record, onErr func(line int, err error)) error {
	hasHeader := opt.Bool("has_header", true)
	trim := opt.Bool("trim_space", true)
	hm := opt.StringMap("header_map")

	cr := csv.NewReader(src)
	cr.Comma = opt.Rune("comma", ',')
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	if n := opt.Int("fields_per_record", 0); n != 0 {
		cr.FieldsPerRecord = n
	} else {
		cr.FieldsPerRecord = -1
	}

	var (
		line    int
		columns []string
	)
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	if hasHeader {
		hdr, err := readRec()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read header: %w", err)
		}
		columns = make([]string, len(hdr))
		for i, h := range hdr {
			h = strings.TrimSpace(h)
			if i == 0 {
				h = strings.TrimPrefix(h, "\ufeff")
			}
			if mapped, ok := hm[h]; ok {
				h = mapped
			} else {
				h = schema.TruncateFieldName(schema.NormalizeFieldName(h))
			}
			if h == "" {
				h = "column_" + strconv.Itoa(i+1)
			}
			columns[i] = h
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := readRec()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		// Headerless input names columns positionally from the first row.
		if columns == nil {
			columns = make([]string, len(rec))
			for i := range rec {
				columns[i] = "column_" + strconv.Itoa(i+1)
			}
		}

		row := make(records.Record, len(columns))
		for i, col := range columns {
			if i >= len(rec) {
				row[col] = nil
				continue
			}
			v := rec[i]
			if trim {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				row[col] = nil
			} else {
				row[col] = v
			}
		}
		// Overflow fields on ragged rows are dropped; onErr sees them once.
		if len(rec) > len(columns) && onErr != nil {
			onErr(line, fmt.Errorf("csv read: row has %d fields, header has %d", len(rec), len(columns)))
		}

		select {
		case out <- row:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
