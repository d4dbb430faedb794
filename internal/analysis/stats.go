package analysis

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Descriptive holds distribution statistics for a numeric column.
type Descriptive struct {
	Count    int     `json:"count"`
	Sum      float64 `json:"sum"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Q1       float64 `json:"q1"`
	Q3       float64 `json:"q3"`
	CV       float64 `json:"cv"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// Describe computes distribution statistics for the series.
// Returns nil for an empty series.
func Describe(series []float64) *Descriptive {
	n := len(series)
	if n == 0 {
		return nil
	}

	d := &Descriptive{Count: n}

	d.Min, d.Max = series[0], series[0]
	for _, v := range series {
		d.Sum += v
		if v < d.Min {
			d.Min = v
		}
		if v > d.Max {
			d.Max = v
		}
	}
	d.Mean = d.Sum / float64(n)

	var m2, m3, m4 float64
	for _, v := range series {
		diff := v - d.Mean
		m2 += diff * diff
		m3 += diff * diff * diff
		m4 += diff * diff * diff * diff
	}
	variance := m2 / float64(n)
	d.StdDev = math.Sqrt(variance)

	if d.StdDev > 0 {
		d.Skewness = (m3 / float64(n)) / math.Pow(d.StdDev, 3)
		d.Kurtosis = (m4/float64(n))/math.Pow(variance, 2) - 3
	}
	if d.Mean != 0 {
		d.CV = d.StdDev / math.Abs(d.Mean)
	}

	sorted := append([]float64(nil), series...)
	sort.Float64s(sorted)
	d.Median = quantile(sorted, 0.5)
	d.Q1 = quantile(sorted, 0.25)
	d.Q3 = quantile(sorted, 0.75)

	return d
}

// quantile interpolates the q-th quantile over a sorted series.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ParseNumeric extracts a float from a raw cell value. Strings accept plain
// numbers, thousand-separated numbers, and currency formatting.
func ParseNumeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, true
		}
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return f, true
		}
		return parseCurrencyLoose(s)
	default:
		return 0, false
	}
}

// parseCurrencyLoose strips a leading/trailing currency symbol and parses
// the remainder. Parenthesized values are negative.
func parseCurrencyLoose(s string) (float64, bool) {
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	var b strings.Builder
	seen := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seen = true
			b.WriteRune(r)
		case r == '.' || r == '-':
			b.WriteRune(r)
		case r == ',' || r == ' ':
		case r == '$' || r == '€' || r == '£' || r == '¥' || r == '₹':
		default:
			return 0, false
		}
	}
	if !seen {
		return 0, false
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

var temporalLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"Jan 2006",
	"2006-01",
}

func isTemporal(v any) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return false
		}
		for _, lay := range temporalLayouts {
			if _, err := time.Parse(lay, s); err == nil {
				return true
			}
		}
	}
	return false
}
