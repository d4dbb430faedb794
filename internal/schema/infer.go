package schema

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

const (
	// sampleRows bounds how many non-null values per column feed inference.
	sampleRows = 100

	// distinctCapPerColumn bounds distinct tracking for unique counts.
	distinctCapPerColumn = 10000

	// dominanceThreshold is the minimum validator score for a specific type
	// to win over the text fallback.
	dominanceThreshold = 0.6

	// inconsistentCV is the coefficient-of-variation level above which a
	// numeric column is flagged inconsistent.
	inconsistentCV = 2.0
)

// domainOverride re-scores a column by name keywords. Overrides only raise
// confidence, never lower an independently higher score.
type domainOverride struct {
	Kind     Kind
	Floor    float64
	Keywords []string
}

var domainOverrides = []domainOverride{
	{KindCurrency, 0.8, []string{"amount", "price", "revenue", "cost", "expense", "income"}},
	{KindPercentage, 0.8, []string{"percentage", "rate", "ratio", "margin"}},
	{KindDate, 0.8, []string{"date", "time", "created", "updated"}},
	{KindNumeric, 0.7, []string{"id", "code", "number"}},
	{KindBoolean, 0.7, []string{"is_", "has_", "active", "enabled", "status"}},
}

// Profiler accumulates one streaming pass over a dataset and produces an
// immutable DatasetProfile.
//
// Sampling is bounded: the first sampleRows non-null values per column drive
// type scoring; null/total/distinct counters run over every observed row.
type Profiler struct {
	columns  []string
	colSeen  map[string]struct{}
	rowCount int

	samples  map[string][]string
	nulls    map[string]int
	totals   map[string]int
	distinct map[string]map[string]struct{}
	capped   map[string]bool

	// numeric accumulators for consistency scoring
	numSum   map[string]float64
	numSumSq map[string]float64
	numN     map[string]int
}

// NewProfiler returns an empty profiler.
func NewProfiler() *Profiler {
	return &Profiler{
		colSeen:  map[string]struct{}{},
		samples:  map[string][]string{},
		nulls:    map[string]int{},
		totals:   map[string]int{},
		distinct: map[string]map[string]struct{}{},
		capped:   map[string]bool{},
		numSum:   map[string]float64{},
		numSumSq: map[string]float64{},
		numN:     map[string]int{},
	}
}

// Observe folds one record into the profile.
func (p *Profiler) Observe(rec records.Record) {
	if len(rec) == 0 {
		return
	}
	p.rowCount++

	for name := range rec {
		if _, ok := p.colSeen[name]; !ok {
			p.colSeen[name] = struct{}{}
			p.columns = append(p.columns, name)
		}
	}

	for _, name := range p.columns {
		p.totals[name]++

		raw, present := rec[name]
		if !present || raw == nil {
			p.nulls[name]++
			continue
		}

		v, ok := valueString(raw)
		if !ok {
			p.nulls[name]++
			continue
		}

		if len(p.samples[name]) < sampleRows {
			p.samples[name] = append(p.samples[name], v)
		}

		if !p.capped[name] {
			set := p.distinct[name]
			if set == nil {
				set = make(map[string]struct{})
				p.distinct[name] = set
			}
			set[v] = struct{}{}
			if len(set) >= distinctCapPerColumn {
				p.capped[name] = true
				p.distinct[name] = nil
			}
		}

		if f, err := transformNumeric(v); err == nil {
			p.observeNumericFloat(name, f.(float64))
		} else if f, err := transformCurrency(v); err == nil && validateCurrency(v) {
			p.observeNumericFloat(name, f.(float64))
		}
	}
}

// valueString renders a scalar as the string form inference operates on.
// Blank strings and non-scalar values count as missing.
func valueString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case []byte:
		s := strings.TrimSpace(string(t))
		return s, s != ""
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case json.Number:
		s := strings.TrimSpace(t.String())
		return s, s != ""
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

func (p *Profiler) observeNumericFloat(name string, f float64) {
	p.numSum[name] += f
	p.numSumSq[name] += f * f
	p.numN[name]++
}

// Finish builds the dataset profile. It returns ErrEmptyDataset when no
// usable rows were observed.
func (p *Profiler) Finish() (DatasetProfile, error) {
	if p.rowCount == 0 || len(p.columns) == 0 {
		return DatasetProfile{}, ErrEmptyDataset
	}

	cols := make(map[string]ColumnSchema, len(p.columns))
	sort.Strings(p.columns)

	var complSum, accSum float64
	for _, name := range p.columns {
		cs := p.inferColumn(name)
		cols[name] = cs
		complSum += cs.Completeness
		accSum += cs.Accuracy
	}

	n := float64(len(p.columns))
	quality := (complSum/n + accSum/n) / 2
	switch {
	case p.rowCount > 500:
		quality = math.Min(quality+0.05, 0.98)
	case p.rowCount > 100:
		quality = math.Min(quality+0.03, 0.95)
	}

	return DatasetProfile{
		RowCount:     p.rowCount,
		ColumnCount:  len(p.columns),
		Columns:      cols,
		QualityScore: clamp01(quality),
	}, nil
}

func (p *Profiler) inferColumn(name string) ColumnSchema {
	sample := p.samples[name]
	kind, confidence := scoreSample(sample)

	// Fallback split: repeated low-cardinality values read as categorical.
	if kind == KindText {
		if d := p.distinctCount(name); d > 0 && !p.capped[name] {
			nonNull := p.totals[name] - p.nulls[name]
			if nonNull > 0 && float64(d)/float64(nonNull) <= 0.5 {
				kind = KindCategorical
			}
		}
	}

	kind, confidence = applyOverrides(name, kind, confidence)

	cs := ColumnSchema{
		Name:        name,
		Type:        kind,
		Confidence:  clamp01(confidence),
		UniqueCount: p.distinctCount(name),
		NullCount:   p.nulls[name],
	}

	if len(sample) > 0 {
		limit := 5
		if len(sample) < limit {
			limit = len(sample)
		}
		cs.SampleValues = append([]string(nil), sample[:limit]...)
	}

	// Quality components.
	total := p.totals[name]
	nonNull := total - p.nulls[name]
	if total > 0 {
		cs.Completeness = float64(nonNull) / float64(total)
	}
	cs.Accuracy = accuracyFor(kind, sample)

	if kind == KindNumeric || kind == KindCurrency {
		if cv, ok := p.coefficientOfVariation(name); ok {
			cs.Consistency = cv
			cs.Inconsistent = cv > inconsistentCV
		}
	}

	return cs
}

func (p *Profiler) distinctCount(name string) int {
	if p.capped[name] {
		return distinctCapPerColumn
	}
	return len(p.distinct[name])
}

func (p *Profiler) coefficientOfVariation(name string) (float64, bool) {
	n := p.numN[name]
	if n < 2 {
		return 0, false
	}
	mean := p.numSum[name] / float64(n)
	variance := p.numSumSq[name]/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	if mean == 0 {
		return 0, false
	}
	return math.Sqrt(variance) / math.Abs(mean), true
}

// scoreSample scores every registered strategy against the sampled values and
// returns the winner. Text is the fallback when no specific type dominates.
func scoreSample(sample []string) (Kind, float64) {
	if len(sample) == 0 {
		return KindUnknown, 0
	}

	best := KindText
	bestScore := 0.0
	for _, s := range Strategies() {
		accepted := 0
		for _, v := range sample {
			if s.Validate(v) {
				accepted++
			}
		}
		score := float64(accepted) / float64(len(sample))
		if score > bestScore {
			best, bestScore = s.Kind, score
		}
	}

	if bestScore < dominanceThreshold {
		return KindText, 1 - bestScore
	}

	// Two-token numeric columns that also read as boolean prefer boolean.
	if best == KindNumeric {
		boolAll := true
		for _, v := range sample {
			if !validateBoolean(v) {
				boolAll = false
				break
			}
		}
		if boolAll {
			return KindBoolean, bestScore
		}
	}

	return best, bestScore
}

// applyOverrides applies column-name keyword overrides. An override can
// switch the kind and floor the confidence, but never lowers a confidence
// the sample already earned.
func applyOverrides(name string, kind Kind, confidence float64) (Kind, float64) {
	lower := strings.ToLower(name)
	for _, ov := range domainOverrides {
		if !matchesAny(lower, ov.Keywords) {
			continue
		}
		if compatibleOverride(kind, ov.Kind) {
			if ov.Floor > confidence {
				confidence = ov.Floor
			}
			return ov.Kind, confidence
		}
	}
	return kind, confidence
}

// compatibleOverride reports whether a name-based override may reassign a
// sample-scored kind. Overrides refine numeric-ish and ambiguous kinds; they
// never overturn structural matches like email or ssn.
func compatibleOverride(scored, override Kind) bool {
	switch override {
	case KindCurrency, KindPercentage, KindNumeric:
		return scored == KindNumeric || scored == KindCurrency || scored == KindPercentage ||
			scored == KindText || scored == KindCategorical || scored == KindUnknown
	case KindDate:
		return scored == KindDate || scored == KindText || scored == KindNumeric || scored == KindUnknown
	case KindBoolean:
		return scored == KindBoolean || scored == KindNumeric || scored == KindText ||
			scored == KindCategorical || scored == KindUnknown
	}
	return false
}

func matchesAny(name string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func accuracyFor(kind Kind, sample []string) float64 {
	if len(sample) == 0 {
		return 0
	}
	s, ok := StrategyFor(kind)
	if !ok {
		// text/categorical accept everything by definition
		return 1
	}
	accepted := 0
	for _, v := range sample {
		if s.Validate(v) {
			accepted++
		}
	}
	return float64(accepted) / float64(len(sample))
}

// Canonicalize converts a raw record to canonical values per the inferred
// profile. Transform failures keep the raw value and are reported through
// onErr (which may be nil); they never fail the record.
func Canonicalize(rec records.Record, profile DatasetProfile, onErr func(*TransformError)) records.Record {
	out := make(records.Record, len(rec))
	for name, raw := range rec {
		cs, ok := profile.Columns[name]
		if !ok {
			out[name] = raw
			continue
		}
		s, ok := StrategyFor(cs.Type)
		if !ok {
			out[name] = raw
			continue
		}
		str, ok2 := rec.String(name)
		if !ok2 {
			out[name] = raw
			continue
		}
		v, err := s.Transform(str)
		if err != nil {
			if onErr != nil {
				onErr(&TransformError{Column: name, Value: str, Err: err})
			}
			out[name] = raw
			continue
		}
		out[name] = v
	}
	return out
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
