package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Options is a loosely-typed option bag decoded from JSON config sections.
//
// Accessors are lenient: wrong-typed or missing values fall back to the
// provided default. This keeps config parsing tolerant of hand-edited JSON
// (numbers arrive as float64, maps as map[string]any).
type Options map[string]any

// Any returns the raw value for key, or nil.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// String returns a string option, or def when missing/blank.
func (o Options) String(key, def string) string {
	v := o.Any(key)
	if v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		if strings.TrimSpace(s) == "" {
			return def
		}
		return s
	}
	return def
}

// Bool returns a boolean option. Accepts bool and common string encodings.
func (o Options) Bool(key string, def bool) bool {
	v := o.Any(key)
	if v == nil {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "t", "true", "yes", "y":
			return true
		case "0", "f", "false", "no", "n":
			return false
		}
	}
	return def
}

// Int returns an integer option. JSON numbers decode as float64.
func (o Options) Int(key string, def int) int {
	v := o.Any(key)
	if v == nil {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// Float returns a float option.
func (o Options) Float(key string, def float64) float64 {
	v := o.Any(key)
	if v == nil {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return def
}

// Rune returns the first rune of a string option, or def.
func (o Options) Rune(key string, def rune) rune {
	s := o.String(key, "")
	if s == "" {
		return def
	}
	for _, r := range s {
		return r
	}
	return def
}

// StringMap returns a map[string]string option. Non-string values are
// stringified with fmt.Sprint.
func (o Options) StringMap(key string) map[string]string {
	v := o.Any(key)
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case map[string]string:
		return t
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, raw := range t {
			if s, ok := raw.(string); ok {
				out[k] = s
				continue
			}
			out[k] = fmt.Sprint(raw)
		}
		return out
	}
	return nil
}

// Strings returns a []string option, tolerating []any of strings.
func (o Options) Strings(key string) []string {
	v := o.Any(key)
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, raw := range t {
			if s, ok := raw.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
