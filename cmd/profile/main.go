// Command profile infers a dataset schema by sampling an input file.
//
// It is intended for quickly inspecting real input data before wiring up a
// full run config for cmd/analyze. It reads a bounded prefix of the input
// (default 1000 rows), infers per-column semantic types, and prints a
// per-column summary with confidence and quality scores.
//
// The input format is detected from the file extension: .csv, .json, and
// .html are supported.
//
// Output modes:
//
//   - Default mode: prints a human-readable column table to stdout.
//   - JSON mode (-json): prints the full profile as JSON, suitable for
//     piping into jq or into other tooling.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abbasaisolutions/sygnify-sub002/internal/config"
	"github.com/abbasaisolutions/sygnify-sub002/internal/schema"
	"github.com/abbasaisolutions/sygnify-sub002/internal/source"
	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

func main() {
	var (
		// flagFile is the local path of the dataset to sample.
		flagFile = flag.String("file", "", "Path of the source file (.csv, .json, or .html)")

		// flagRows bounds how many rows are sampled from the start of the
		// input. Type sampling saturates quickly, so the default is plenty
		// for inference; raise it for more precise null and unique counts.
		flagRows = flag.Int("rows", 1000, "Number of rows to sample from the start of the file")

		// flagJSON switches output to the full profile as JSON.
		flagJSON = flag.Bool("json", false, "Print the full profile as JSON")
	)
	flag.Parse()

	if *flagFile == "" {
		fatalf("usage: profile -file <path> [-rows N] [-json]")
	}

	kind, err := kindFromPath(*flagFile)
	if err != nil {
		fatalf("%v", err)
	}

	rdr, err := source.Open(config.Source{Kind: kind, Path: *flagFile})
	if err != nil {
		fatalf("%v", err)
	}

	profile, parseErrs, err := sampleProfile(context.Background(), rdr, *flagRows)
	if err != nil {
		fatalf("%v", err)
	}

	if *flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(profile); err != nil {
			fatalf("encode profile: %v", err)
		}
		return
	}

	printProfile(profile, parseErrs)
}

// kindFromPath maps a file extension to a source kind.
func kindFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return config.SourceCSV, nil
	case ".json", ".ndjson":
		return config.SourceJSON, nil
	case ".html", ".htm":
		return config.SourceHTML, nil
	}
	return "", fmt.Errorf("cannot detect source kind from %q (expected .csv, .json, or .html)", path)
}

// sampleProfile streams at most maxRows records through a profiler. The
// reader keeps filling the channel until it notices the cancellation, so
// the consumer drains after cancelling.
func sampleProfile(ctx context.Context, rdr source.Reader, maxRows int) (schema.DatasetProfile, int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	parseErrs := 0
	out := make(chan records.Record, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- rdr.Stream(ctx, out, func(line int, err error) { parseErrs++ })
		close(out)
	}()

	prof := schema.NewProfiler()
	rows := 0
	for rec := range out {
		if rows < maxRows {
			prof.Observe(rec)
			rows++
		}
		if rows >= maxRows {
			cancel()
		}
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return schema.DatasetProfile{}, parseErrs, err
	}

	profile, err := prof.Finish()
	if err != nil {
		return schema.DatasetProfile{}, parseErrs, err
	}
	return profile, parseErrs, nil
}

// printProfile renders the per-column summary.
func printProfile(p schema.DatasetProfile, parseErrs int) {
	fmt.Printf("rows sampled: %d    columns: %d    quality score: %.2f\n", p.RowCount, p.ColumnCount, p.QualityScore)
	if parseErrs > 0 {
		fmt.Printf("parse errors: %d\n", parseErrs)
	}
	fmt.Println()

	names := make([]string, 0, len(p.Columns))
	for name := range p.Columns {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%-24s %-12s %-6s %-7s %-7s %-6s %s\n",
		"COLUMN", "TYPE", "CONF", "NULLS", "UNIQUE", "COMPL", "SAMPLE")
	for _, name := range names {
		cs := p.Columns[name]
		sample := ""
		if len(cs.SampleValues) > 0 {
			sample = cs.SampleValues[0]
			if len(sample) > 32 {
				sample = sample[:32] + "..."
			}
		}
		flagged := ""
		if cs.Inconsistent {
			flagged = " (inconsistent)"
		}
		fmt.Printf("%-24s %-12s %-6.2f %-7d %-7d %-6.2f %s%s\n",
			name, cs.Type, cs.Confidence, cs.NullCount, cs.UniqueCount, cs.Completeness, sample, flagged)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
