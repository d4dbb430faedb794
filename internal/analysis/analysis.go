// Package analysis implements statistical profiling, anomaly detection,
// trend/seasonality analysis, and insight generation over typed columns.
//
// All computations are pure functions over the accumulated column data.
// The package never fails on malformed input: when nothing can be analyzed
// it returns a well-formed report with a generic fallback insight set.
package analysis

import (
	"sort"
	"strings"

	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

// Class is the analysis role assigned to a column.
type Class string

const (
	ClassNumeric     Class = "numeric"
	ClassTemporal    Class = "temporal"
	ClassAmount      Class = "amount"
	ClassCategorical Class = "categorical"
)

const (
	// classifySample bounds how many values drive column classification.
	classifySample = 100

	// maxSeriesLen caps per-column value retention so analysis memory stays
	// bounded on very large datasets.
	maxSeriesLen = 100000

	numericShareThreshold  = 0.8
	temporalShareThreshold = 0.7
)

// financialKeywords mark amount columns by name. A domain label extends the
// set (see NewAnalyzer).
var financialKeywords = []string{
	"amount", "price", "revenue", "cost", "expense", "income",
	"profit", "balance", "payment", "fee", "salary", "total",
}

var domainKeywords = map[string][]string{
	"finance":    {"debit", "credit", "principal", "interest"},
	"retail":     {"sales", "discount", "refund"},
	"operations": {"spend", "budget"},
}

// ColumnAnalysis is the full analysis result for one column.
type ColumnAnalysis struct {
	Name  string `json:"name"`
	Class Class  `json:"class"`

	Stats       *Descriptive      `json:"stats,omitempty"`
	Anomalies   []Anomaly         `json:"anomalies,omitempty"`
	AnomalyPct  float64           `json:"anomaly_pct"`
	Trend       *Trend            `json:"trend,omitempty"`
	Seasonality *Seasonality      `json:"seasonality,omitempty"`
	Volatility  *Volatility       `json:"volatility,omitempty"`
	Risk        *Risk             `json:"risk,omitempty"`
	Profit      *Profitability    `json:"profitability,omitempty"`
	Categories  *CategoricalStats `json:"categories,omitempty"`

	// Series is the ordered numeric series, retained for forecasting.
	Series []float64 `json:"-"`
}

// Report is the aggregate analysis output for a run.
type Report struct {
	Columns         map[string]*ColumnAnalysis `json:"columns"`
	Insights        []Insight                  `json:"insights"`
	Recommendations []Recommendation           `json:"recommendations"`
}

// Analyzer accumulates records across chunks and produces a Report.
type Analyzer struct {
	keywords []string

	columns []string
	colSeen map[string]struct{}
	values  map[string][]any
	rows    int
}

// NewAnalyzer returns an analyzer. The domain label only biases which
// columns read as amounts and which recommendation templates apply.
func NewAnalyzer(domain string) *Analyzer {
	kw := append([]string(nil), financialKeywords...)
	if extra, ok := domainKeywords[strings.ToLower(strings.TrimSpace(domain))]; ok {
		kw = append(kw, extra...)
	}
	return &Analyzer{
		keywords: kw,
		colSeen:  map[string]struct{}{},
		values:   map[string][]any{},
	}
}

// Observe folds one record into the analyzer state.
func (a *Analyzer) Observe(rec records.Record) {
	if len(rec) == 0 {
		return
	}
	a.rows++
	for name, v := range rec {
		if _, ok := a.colSeen[name]; !ok {
			a.colSeen[name] = struct{}{}
			a.columns = append(a.columns, name)
		}
		if len(a.values[name]) < maxSeriesLen {
			a.values[name] = append(a.values[name], v)
		}
	}
}

// Merge folds another analyzer's accumulated state into this one. Column
// values keep their order, with the other analyzer's values appended, so
// merging partition analyzers in partition order preserves series order.
func (a *Analyzer) Merge(other *Analyzer) {
	if other == nil {
		return
	}
	a.rows += other.rows
	for _, name := range other.columns {
		if _, ok := a.colSeen[name]; !ok {
			a.colSeen[name] = struct{}{}
			a.columns = append(a.columns, name)
		}
		room := maxSeriesLen - len(a.values[name])
		if room <= 0 {
			continue
		}
		vals := other.values[name]
		if len(vals) > room {
			vals = vals[:room]
		}
		a.values[name] = append(a.values[name], vals...)
	}
}

// Finish runs all per-column analyses and derives insights. It never
// returns an error: an unanalyzable dataset yields the fallback report.
func (a *Analyzer) Finish() Report {
	rep := Report{Columns: map[string]*ColumnAnalysis{}}

	sort.Strings(a.columns)
	for _, name := range a.columns {
		ca := a.analyzeColumn(name, a.values[name])
		rep.Columns[name] = ca
	}

	rep.Insights = buildInsights(rep.Columns)
	rep.Recommendations = buildRecommendations(rep.Insights)

	if len(rep.Insights) == 0 {
		rep.Insights, rep.Recommendations = fallbackInsights()
	}
	return rep
}

func (a *Analyzer) analyzeColumn(name string, vals []any) *ColumnAnalysis {
	ca := &ColumnAnalysis{Name: name}

	series, numericShare := numericSeries(vals)
	temporalShare := temporalShare(vals)

	switch {
	case numericShare >= numericShareThreshold && a.isAmountName(name):
		ca.Class = ClassAmount
	case numericShare >= numericShareThreshold:
		ca.Class = ClassNumeric
	case temporalShare >= temporalShareThreshold:
		ca.Class = ClassTemporal
	default:
		ca.Class = ClassCategorical
	}

	switch ca.Class {
	case ClassNumeric, ClassAmount:
		ca.Series = series
		ca.Stats = Describe(series)

		union := DetectAll(name, series, DefaultDetectorParams())
		ca.Anomalies = union
		if len(series) > 0 {
			ca.AnomalyPct = float64(len(union)) / float64(len(series)) * 100
		}

		ca.Trend = FitTrend(series)
		ca.Seasonality = DetectSeasonality(series)
		ca.Volatility = BandVolatility(ca.Stats)

		if ca.Class == ClassAmount {
			ca.Risk = ScoreRisk(series, ca.Stats, ca.Volatility)
			ca.Profit = AssessProfitability(series)
		}

	case ClassCategorical:
		ca.Categories = DescribeCategorical(vals)
	}

	return ca
}

func (a *Analyzer) isAmountName(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range a.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// numericSeries converts raw values to an ordered float series and reports
// the share of sampled values that parse as numeric (plain or currency).
func numericSeries(vals []any) ([]float64, float64) {
	out := make([]float64, 0, len(vals))
	sampled, hits := 0, 0
	for i, v := range vals {
		f, ok := ParseNumeric(v)
		if i < classifySample {
			sampled++
			if ok {
				hits++
			}
		}
		if ok {
			out = append(out, f)
		}
	}
	if sampled == 0 {
		return out, 0
	}
	return out, float64(hits) / float64(sampled)
}

func temporalShare(vals []any) float64 {
	sampled, hits := 0, 0
	for i, v := range vals {
		if i >= classifySample {
			break
		}
		sampled++
		if isTemporal(v) {
			hits++
		}
	}
	if sampled == 0 {
		return 0
	}
	return float64(hits) / float64(sampled)
}
