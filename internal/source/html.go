package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/abbasaisolutions/sygnify-sub002/internal/config"
	"github.com/abbasaisolutions/sygnify-sub002/internal/schema"
	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

// htmlReader streams the rows of one HTML table as records. Column names
// come from header cells, normalized the same way as CSV headers.
//
// Options:
//   - selector (string, default "table"): the table to read; the first
//     match wins when several tables are present
//   - header_map (map original header -> record key)
type htmlReader struct {
	path string
	opts config.Options
}

func (h *htmlReader) Kind() string     { return "html" }
func (h *htmlReader) SinglePass() bool { return false }

func (h *htmlReader) Stream(ctx context.Context, out chan<- records.Record, onErr func(line int, err error)) error {
	f, err := openPath(h.path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return fmt.Errorf("source: parse html: %w", err)
	}
	return streamHTMLTable(ctx, doc, h.opts, out, onErr)
}

func streamHTMLTable(ctx context.Context, doc *goquery.Document, opt config.Options, out chan<- records.Record, onErr func(line int, err error)) error {
	selector := opt.String("selector", "table")
	hm := opt.StringMap("header_map")

	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return fmt.Errorf("%w: no element matches %q", ErrInputType, selector)
	}

	var columns []string
	table.Find("tr").First().Find("th").Each(func(i int, cell *goquery.Selection) {
		columns = append(columns, headerName(cell.Text(), i, hm))
	})

	var streamErr error
	rowNum := 0
	table.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		select {
		case <-ctx.Done():
			streamErr = ctx.Err()
			return false
		default:
		}

		cells := tr.Find("td")
		if cells.Length() == 0 {
			// Header or separator row.
			return true
		}
		rowNum++

		// Headerless tables name columns positionally from the first row.
		if columns == nil {
			for i := 0; i < cells.Length(); i++ {
				columns = append(columns, "column_"+strconv.Itoa(i+1))
			}
		}

		rec := make(records.Record, len(columns))
		cells.Each(func(i int, cell *goquery.Selection) {
			if i >= len(columns) {
				return
			}
			v := strings.TrimSpace(cell.Text())
			if v == "" {
				rec[columns[i]] = nil
			} else {
				rec[columns[i]] = v
			}
		})
		if cells.Length() > len(columns) && onErr != nil {
			onErr(rowNum, fmt.Errorf("html: row has %d cells, header has %d", cells.Length(), len(columns)))
		}
		for i := cells.Length(); i < len(columns); i++ {
			rec[columns[i]] = nil
		}

		select {
		case out <- rec:
			return true
		case <-ctx.Done():
			streamErr = ctx.Err()
			return false
		}
	})

	return streamErr
}

func headerName(raw string, i int, hm map[string]string) string {
	h := strings.TrimSpace(raw)
	if mapped, ok := hm[h]; ok {
		return mapped
	}
	h = schema.TruncateFieldName(schema.NormalizeFieldName(h))
	if h == "" {
		h = "column_" + strconv.Itoa(i+1)
	}
	return h
}
