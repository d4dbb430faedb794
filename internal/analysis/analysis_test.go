package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s=%v, want %v (±%v)", name, got, want, tol)
	}
}

// TestDescribe verifies distribution statistics on a small profit series.
func TestDescribe(t *testing.T) {
	t.Parallel()

	series := []float64{16185, 13210, 10890, 4440, 12350}
	d := Describe(series)
	if d == nil {
		t.Fatal("Describe returned nil")
	}
	if d.Count != 5 {
		t.Errorf("Count=%d, want 5", d.Count)
	}
	approx(t, "Sum", d.Sum, 57075, 0.001)
	approx(t, "Mean", d.Mean, 11415, 0.001)
	approx(t, "Median", d.Median, 12350, 0.001)
	approx(t, "Min", d.Min, 4440, 0.001)
	approx(t, "Max", d.Max, 16185, 0.001)
	approx(t, "Q1", d.Q1, 10890, 0.001)
	approx(t, "Q3", d.Q3, 13210, 0.001)
	approx(t, "StdDev", d.StdDev, 3892.95, 0.5)

	if Describe(nil) != nil {
		t.Error("Describe(nil) must return nil")
	}
}

// TestDetectIQROutlier verifies the canonical small-series outlier case.
func TestDetectIQROutlier(t *testing.T) {
	t.Parallel()

	series := []float64{1, 2, 3, 4, 100}
	found := DetectAll("x", series, DefaultDetectorParams())
	if len(found) == 0 {
		t.Fatal("no anomalies detected")
	}
	hit := false
	for _, a := range found {
		if a.Index == 4 && a.Value == 100 {
			hit = true
		}
	}
	if !hit {
		t.Fatalf("value 100 at index 4 not flagged: %+v", found)
	}
}

// TestDetectAllShortSeries verifies the under-four-points guard.
func TestDetectAllShortSeries(t *testing.T) {
	t.Parallel()

	if got := DetectAll("x", []float64{1, 2, 100}, DefaultDetectorParams()); got != nil {
		t.Fatalf("short series produced anomalies: %+v", got)
	}
}

// TestDetectAllDeduplicates verifies one finding per index, keeping the
// higher score when methods overlap, ordered by index.
func TestDetectAllDeduplicates(t *testing.T) {
	t.Parallel()

	series := make([]float64, 40)
	for i := range series {
		series[i] = 10
	}
	series[5] = 500
	series[20] = -400

	found := DetectAll("x", series, DefaultDetectorParams())
	seen := map[int]int{}
	lastIdx := -1
	for _, a := range found {
		seen[a.Index]++
		if a.Index < lastIdx {
			t.Fatalf("findings not ordered by index: %+v", found)
		}
		lastIdx = a.Index
	}
	for idx, n := range seen {
		if n > 1 {
			t.Fatalf("index %d reported %d times", idx, n)
		}
	}
	if seen[5] == 0 || seen[20] == 0 {
		t.Fatalf("planted outliers not flagged: %+v", found)
	}
}

// TestFitTrend covers directions and the short-series guard.
func TestFitTrend(t *testing.T) {
	t.Parallel()

	var up []float64
	for i := 0; i < 30; i++ {
		up = append(up, float64(10+3*i))
	}
	tr := FitTrend(up)
	if tr == nil {
		t.Fatal("FitTrend returned nil")
	}
	if tr.Direction != "increasing" {
		t.Errorf("Direction=%q, want increasing", tr.Direction)
	}
	approx(t, "Slope", tr.Slope, 3, 1e-9)
	approx(t, "R2", tr.R2, 1, 1e-9)
	if tr.Confidence != "high" {
		t.Errorf("Confidence=%q, want high", tr.Confidence)
	}

	flat := []float64{5, 5, 5, 5, 5}
	if ftr := FitTrend(flat); ftr == nil || ftr.Direction != "stable" {
		t.Errorf("flat series trend=%+v, want stable", ftr)
	}

	if FitTrend([]float64{1}) != nil {
		t.Error("single-point series must not fit a trend")
	}
}

// TestDetectSeasonality verifies a period-4 sawtooth is found and pure
// noiseless monotone data yields no short spurious period claim of zero.
func TestDetectSeasonality(t *testing.T) {
	t.Parallel()

	var saw []float64
	for i := 0; i < 40; i++ {
		saw = append(saw, []float64{10, 20, 30, 40}[i%4])
	}
	s := DetectSeasonality(saw)
	if s == nil {
		t.Fatal("no seasonality detected in period-4 sawtooth")
	}
	if s.Period != 4 {
		t.Errorf("Period=%d, want 4", s.Period)
	}
	if s.Cycles == 0 {
		t.Error("Cycles=0, want > 0")
	}

	if got := DetectSeasonality([]float64{1}); got != nil {
		t.Errorf("tiny series seasonality=%+v, want nil", got)
	}
	if got := DetectSeasonality([]float64{7, 7, 7, 7, 7, 7}); got != nil {
		t.Errorf("constant series seasonality=%+v, want nil", got)
	}
}

// TestBandVolatility verifies the CV band cutoffs.
func TestBandVolatility(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cv   float64
		band string
	}{
		{0.05, "stable"},
		{0.2, "moderate"},
		{0.9, "volatile"},
	}
	for _, tc := range tests {
		v := BandVolatility(&Descriptive{CV: tc.cv})
		if v.Band != tc.band {
			t.Errorf("cv=%v band=%q, want %q", tc.cv, v.Band, tc.band)
		}
	}
	if BandVolatility(nil) != nil {
		t.Error("BandVolatility(nil) must return nil")
	}
}

// TestScoreRisk verifies the additive components and the level cutoffs.
func TestScoreRisk(t *testing.T) {
	t.Parallel()

	// Short, mostly negative, high-drawdown series trips every component.
	risky := []float64{100, -50, -80, -90, 5, -60, -70, -85, -95, -40}
	d := Describe(risky)
	r := ScoreRisk(risky, d, BandVolatility(d))
	if r == nil {
		t.Fatal("ScoreRisk returned nil")
	}
	if r.Level != "high" {
		t.Errorf("Level=%q (score %d), want high", r.Level, r.Score)
	}
	if r.NegativeRatio <= 0.6 {
		t.Errorf("NegativeRatio=%v, want > 0.6", r.NegativeRatio)
	}
	if r.MaxDrawdown <= 0.3 {
		t.Errorf("MaxDrawdown=%v, want > 0.3", r.MaxDrawdown)
	}

	// A long, flat, positive series scores low.
	calm := make([]float64, 100)
	for i := range calm {
		calm[i] = 50
	}
	d = Describe(calm)
	if r := ScoreRisk(calm, d, BandVolatility(d)); r.Level != "low" {
		t.Errorf("calm series level=%q (score %d), want low", r.Level, r.Score)
	}
}

// TestAssessProfitability verifies the sign split and margin bands.
func TestAssessProfitability(t *testing.T) {
	t.Parallel()

	p := AssessProfitability([]float64{1000, 500, -300})
	approx(t, "Revenue", p.Revenue, 1500, 1e-9)
	approx(t, "Expenses", p.Expenses, 300, 1e-9)
	approx(t, "Net", p.Net, 1200, 1e-9)
	approx(t, "MarginPct", p.MarginPct, 80, 1e-9)
	if p.Band != "high" {
		t.Errorf("Band=%q, want high", p.Band)
	}

	profit := AssessProfitability([]float64{16185, 13210, 10890, 4440, 12350})
	approx(t, "profit Revenue", profit.Revenue, 57075, 1e-9)
	approx(t, "profit Expenses", profit.Expenses, 0, 1e-9)
	approx(t, "profit MarginPct", profit.MarginPct, 100, 1e-9)
	if profit.Band != "high" {
		t.Errorf("profit Band=%q, want high", profit.Band)
	}

	thin := AssessProfitability([]float64{100, -95})
	if thin.Band != "low" {
		t.Errorf("thin Band=%q, want low", thin.Band)
	}
	if AssessProfitability(nil) != nil {
		t.Error("empty series must return nil")
	}
}

// TestParseNumeric covers the accepted raw-cell encodings.
func TestParseNumeric(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{"1,234.56", 1234.56, true},
		{"$500", 500, true},
		{"($250.00)", -250, true},
		{42.5, 42.5, true},
		{7, 7, true},
		{json.Number("3.25"), 3.25, true},
		{"abc", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{"12x", 0, false},
	}
	for _, tc := range tests {
		got, ok := ParseNumeric(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseNumeric(%v)=(%v,%v), want (%v,%v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

// TestAnalyzerClassification verifies per-column role assignment.
func TestAnalyzerClassification(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer("")
	for i := 0; i < 50; i++ {
		a.Observe(records.Record{
			"profit":   fmt.Sprintf("%d", 1000+i*10),
			"quantity": fmt.Sprintf("%d", i),
			"day":      fmt.Sprintf("2025-04-%02d", i%28+1),
			"channel":  []string{"web", "store", "phone"}[i%3],
		})
	}
	rep := a.Finish()

	want := map[string]Class{
		"profit":   ClassAmount,
		"quantity": ClassNumeric,
		"day":      ClassTemporal,
		"channel":  ClassCategorical,
	}
	for name, class := range want {
		ca, ok := rep.Columns[name]
		if !ok {
			t.Fatalf("missing column %q", name)
		}
		if ca.Class != class {
			t.Errorf("%s: class=%q, want %q", name, ca.Class, class)
		}
	}

	if rep.Columns["profit"].Stats == nil || rep.Columns["profit"].Profit == nil {
		t.Error("amount column missing stats or profitability")
	}
	if rep.Columns["quantity"].Risk != nil {
		t.Error("plain numeric column must not carry a risk score")
	}
	cat := rep.Columns["channel"].Categories
	if cat == nil || cat.Distinct != 3 {
		t.Fatalf("channel categories=%+v, want 3 distinct", cat)
	}
}

// TestAnalyzerDomainKeywords verifies the domain label extends amount
// keyword matching.
func TestAnalyzerDomainKeywords(t *testing.T) {
	t.Parallel()

	build := func(domain string) Class {
		a := NewAnalyzer(domain)
		for i := 0; i < 20; i++ {
			a.Observe(records.Record{"debit": fmt.Sprintf("%d", 100+i)})
		}
		return a.Finish().Columns["debit"].Class
	}

	if got := build("finance"); got != ClassAmount {
		t.Errorf("finance debit class=%q, want amount", got)
	}
	if got := build(""); got != ClassNumeric {
		t.Errorf("default debit class=%q, want numeric", got)
	}
}

// TestAnalyzerMerge verifies merging partition analyzers matches a single
// sequential pass.
func TestAnalyzerMerge(t *testing.T) {
	t.Parallel()

	seq := NewAnalyzer("")
	left := NewAnalyzer("")
	right := NewAnalyzer("")
	for i := 0; i < 100; i++ {
		rec := records.Record{"amount": fmt.Sprintf("%d", i)}
		seq.Observe(rec)
		if i < 50 {
			left.Observe(rec)
		} else {
			right.Observe(rec)
		}
	}
	left.Merge(right)

	seqRep := seq.Finish()
	mergedRep := left.Finish()

	ss, ms := seqRep.Columns["amount"].Stats, mergedRep.Columns["amount"].Stats
	if ss.Count != ms.Count || ss.Sum != ms.Sum || ss.Mean != ms.Mean {
		t.Fatalf("merged stats %+v differ from sequential %+v", ms, ss)
	}
	for i, v := range seqRep.Columns["amount"].Series {
		if mergedRep.Columns["amount"].Series[i] != v {
			t.Fatalf("series order diverged at %d", i)
		}
	}
}

// TestInsightsAnomalyRate verifies elevated anomaly rates produce a
// data-quality warning with a matching recommendation.
func TestInsightsAnomalyRate(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer("")
	for i := 0; i < 30; i++ {
		v := "10"
		if i%8 == 0 {
			v = "9000"
		}
		a.Observe(records.Record{"measure": v})
	}
	rep := a.Finish()

	foundInsight := false
	for _, ins := range rep.Insights {
		if ins.Category == "data_quality" && ins.Kind == InsightWarning {
			foundInsight = true
		}
	}
	if !foundInsight {
		t.Fatalf("no data_quality warning in %+v", rep.Insights)
	}

	foundRec := false
	for _, rec := range rep.Recommendations {
		if rec.Category == "data_quality" {
			foundRec = true
		}
	}
	if !foundRec {
		t.Fatalf("no data_quality recommendation in %+v", rep.Recommendations)
	}
}

// TestFinishFallback verifies an unanalyzable dataset still yields a
// non-empty insight set.
func TestFinishFallback(t *testing.T) {
	t.Parallel()

	rep := NewAnalyzer("").Finish()
	if len(rep.Insights) == 0 || len(rep.Recommendations) == 0 {
		t.Fatalf("fallback insights missing: %+v", rep)
	}
	if rep.Insights[0].Category != "general" {
		t.Errorf("fallback category=%q, want general", rep.Insights[0].Category)
	}
}
