package analysis

import (
	"math"
	"sort"
	"strconv"
)

// CategoryCount is one value of a categorical distribution.
type CategoryCount struct {
	Value   string  `json:"value"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// CategoricalStats is the frequency profile of a categorical column.
type CategoricalStats struct {
	Distinct int             `json:"distinct"`
	Top      []CategoryCount `json:"top"`
	Entropy  float64         `json:"entropy"`
}

// DescribeCategorical builds the frequency distribution, the top five values
// with percentages, and the Shannon entropy of the column.
func DescribeCategorical(vals []any) *CategoricalStats {
	freq := map[string]int{}
	total := 0
	for _, v := range vals {
		s, ok := valueLabel(v)
		if !ok {
			continue
		}
		freq[s]++
		total++
	}
	if total == 0 {
		return nil
	}

	top := make([]CategoryCount, 0, len(freq))
	for v, c := range freq {
		top = append(top, CategoryCount{
			Value:   v,
			Count:   c,
			Percent: float64(c) / float64(total) * 100,
		})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count == top[j].Count {
			return top[i].Value < top[j].Value
		}
		return top[i].Count > top[j].Count
	})
	if len(top) > 5 {
		top = top[:5]
	}

	entropy := 0.0
	for _, c := range freq {
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}

	return &CategoricalStats{
		Distinct: len(freq),
		Top:      top,
		Entropy:  entropy,
	}
}

func valueLabel(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		f, ok := ParseNumeric(v)
		if !ok {
			return "", false
		}
		return strconv.FormatFloat(f, 'g', -1, 64), true
	}
}
