// Package schema implements per-column semantic type inference and dataset
// quality profiling.
//
// The package is responsible for:
//   - Sampling a bounded number of values per column
//   - Scoring every registered type validator against the sample
//   - Applying column-name domain overrides (amount/price → currency, ...)
//   - Transforming values to canonical form (currency strips symbols, ...)
//   - Scoring completeness/accuracy/consistency per column
//
// Design constraints:
//   - Inference is best-effort and must never fail the run, with one
//     exception: a dataset with zero usable rows returns ErrEmptyDataset.
//   - Transform failures are per-cell and recovered by keeping the raw value.
package schema

import (
	"errors"
	"fmt"
)

// ErrEmptyDataset is returned when a dataset has no usable rows.
var ErrEmptyDataset = errors.New("schema: empty dataset")

// Kind is a semantic column type.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCurrency    Kind = "currency"
	KindPercentage  Kind = "percentage"
	KindDate        Kind = "date"
	KindBoolean     Kind = "boolean"
	KindEmail       Kind = "email"
	KindURL         Kind = "url"
	KindPhone       Kind = "phone"
	KindZipcode     Kind = "zipcode"
	KindSSN         Kind = "ssn"
	KindCategorical Kind = "categorical"
	KindText        Kind = "text"
	KindUnknown     Kind = "unknown"
)

// ColumnSchema is the inferred schema for one column. Immutable once built.
type ColumnSchema struct {
	Name         string   `json:"name"`
	Type         Kind     `json:"type"`
	Confidence   float64  `json:"confidence"`
	SampleValues []string `json:"sample_values,omitempty"`
	UniqueCount  int      `json:"unique_count"`
	NullCount    int      `json:"null_count"`

	// Quality components, all in [0,1]. Consistency is the coefficient of
	// variation for numeric/currency columns and is not clamped.
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Consistency  float64 `json:"consistency,omitempty"`
	Inconsistent bool    `json:"inconsistent,omitempty"`
}

// DatasetProfile is the per-run dataset schema and quality summary.
// Built in one pass and read-only afterwards.
type DatasetProfile struct {
	RowCount     int                     `json:"row_count"`
	ColumnCount  int                     `json:"column_count"`
	Columns      map[string]ColumnSchema `json:"columns"`
	QualityScore float64                 `json:"quality_score"`
}

// TransformError records a per-cell canonicalization failure. It is never
// fatal: the raw value is retained and the error is counted.
type TransformError struct {
	Column string
	Value  string
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("schema: transform column %q value %q: %v", e.Column, e.Value, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }
