// Package records defines the record type shared by every pipeline stage.
package records

import (
	"sort"
	"strings"
)

// Record is a single parsed row, keyed by normalized column name.
//
// Values are whatever the source produced: string for text sources, typed
// values (float64, bool, time.Time) after canonical transformation.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the value for key as a trimmed string and whether the key
// held a meaningful (non-nil, non-blank) value.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case []byte:
		s := strings.TrimSpace(string(t))
		return s, s != ""
	default:
		return "", false
	}
}

// Columns returns the sorted union of keys across records.
func Columns(recs []Record) []string {
	set := make(map[string]struct{})
	for _, r := range recs {
		for k := range r {
			set[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
