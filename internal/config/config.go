// Package config defines the processing configuration for an analysis run
// and its validation.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Strategy names accepted by the execution engine.
const (
	StrategyAuto        = "auto"
	StrategyStreaming   = "streaming"
	StrategyChunking    = "chunking"
	StrategyParallel    = "parallel"
	StrategyIncremental = "incremental"
)

// Source kinds accepted by the source package.
const (
	SourceRecords = "records"
	SourceCSV     = "csv"
	SourceJSON    = "json"
	SourceHTML    = "html"
)

// Processing is the top-level configuration for one analysis run.
type Processing struct {
	// Job is the logical job name for metrics and logs.
	Job string `json:"job"`

	// Source describes where records come from.
	Source Source `json:"source"`

	// Strategy selects the execution strategy. "auto" (or empty) lets the
	// engine pick based on source shape and record count.
	Strategy string `json:"strategy"`

	// ChunkSize is the number of records per chunk. Defaults to 10000.
	ChunkSize int `json:"chunk_size"`

	// Workers is the parallel-mode worker count. Defaults to 4.
	Workers int `json:"workers"`

	// MemoryLimitMB is the advisory heap ceiling sampled between chunks.
	// 0 disables the check.
	MemoryLimitMB int `json:"memory_limit_mb"`

	// Domain biases amount-column keywords and recommendation templates
	// (e.g. "finance", "retail"). Optional.
	Domain string `json:"domain"`

	// CPUIntensive marks the dataset as compute-heavy, biasing strategy
	// selection toward parallel.
	CPUIntensive bool `json:"cpu_intensive"`

	// Growing marks the dataset as append-only; together with KeyColumn it
	// enables the incremental strategy.
	Growing   bool   `json:"growing"`
	KeyColumn string `json:"key_column"`

	// Checkpoint configures the incremental-mode checkpoint store.
	Checkpoint Checkpoint `json:"checkpoint"`

	// Forecast lists metric columns to forecast. Empty means all amount and
	// numeric columns discovered by analysis.
	Forecast []string `json:"forecast"`
}

// Source describes the record source for a run.
type Source struct {
	// Kind: "records" (in-memory), "csv", "json", "html".
	Kind string `json:"kind"`

	// Path is the input file path for file-backed kinds.
	Path string `json:"path"`

	// Options carries parser-specific options (delimiter, header_map,
	// record selector for html, ...).
	Options Options `json:"options"`
}

// Checkpoint selects and configures a checkpoint store backend.
type Checkpoint struct {
	// Kind: "memory", "sqlite", "postgres", "mssql". Empty defaults to memory.
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

// Severity levels for validation issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is a single validation finding.
type Issue struct {
	Severity string
	Path     string
	Message  string
}

// Load decodes a Processing config from JSON.
func Load(r io.Reader) (Processing, error) {
	var p Processing
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Processing{}, fmt.Errorf("decode config: %w", err)
	}
	return p, nil
}

// Validate checks a Processing config and returns all findings. Errors make
// the config unusable; warnings indicate defaults will be substituted.
func Validate(p Processing) []Issue {
	var issues []Issue

	add := func(sev, path, msg string) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: msg})
	}

	switch p.Source.Kind {
	case SourceRecords, SourceCSV, SourceJSON, SourceHTML:
	case "":
		add(SeverityError, "source.kind", "source kind is required")
	default:
		add(SeverityError, "source.kind", fmt.Sprintf("unsupported source kind %q", p.Source.Kind))
	}
	if p.Source.Kind != "" && p.Source.Kind != SourceRecords && strings.TrimSpace(p.Source.Path) == "" {
		add(SeverityError, "source.path", "path is required for file-backed sources")
	}

	switch p.Strategy {
	case "", StrategyAuto, StrategyStreaming, StrategyChunking, StrategyParallel, StrategyIncremental:
	default:
		add(SeverityError, "strategy", fmt.Sprintf("unknown strategy %q", p.Strategy))
	}

	if p.Strategy == StrategyIncremental && strings.TrimSpace(p.KeyColumn) == "" {
		add(SeverityError, "key_column", "incremental strategy requires a monotonic key column")
	}

	if p.ChunkSize < 0 {
		add(SeverityError, "chunk_size", "chunk size must be >= 0")
	} else if p.ChunkSize == 0 {
		add(SeverityWarning, "chunk_size", "chunk size not set; defaulting to 10000")
	}

	if p.Workers < 0 {
		add(SeverityError, "workers", "workers must be >= 0")
	}
	if p.MemoryLimitMB < 0 {
		add(SeverityError, "memory_limit_mb", "memory limit must be >= 0")
	}

	switch p.Checkpoint.Kind {
	case "", "memory":
	case "sqlite", "postgres", "mssql":
		if strings.TrimSpace(p.Checkpoint.DSN) == "" {
			add(SeverityError, "checkpoint.dsn", "dsn is required for "+p.Checkpoint.Kind+" checkpoints")
		}
	default:
		add(SeverityError, "checkpoint.kind", fmt.Sprintf("unknown checkpoint kind %q", p.Checkpoint.Kind))
	}

	return issues
}

// HasError reports whether any issue carries error severity.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
