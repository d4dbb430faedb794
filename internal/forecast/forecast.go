package forecast

import (
	"math"
	"sort"
)

// Interval is a symmetric confidence interval around the point forecast.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Forecast is the selected model's prediction for one metric. Read-only.
type Forecast struct {
	Metric           string  `json:"metric"`
	Model            Model   `json:"model"`
	Accuracy         float64 `json:"accuracy"`
	NextValue        float64 `json:"next_value"`
	Trend            string  `json:"trend"` // increasing, decreasing, stable
	RiskLevel        string  `json:"risk_level"`
	InsufficientData bool    `json:"insufficient_data,omitempty"`
	Excluded         []Model `json:"excluded_models,omitempty"`

	// Intervals at 60/80/95%; widths satisfy low <= medium <= high.
	Intervals struct {
		Low    Interval `json:"low"`
		Medium Interval `json:"medium"`
		High   Interval `json:"high"`
	} `json:"intervals"`
}

// Summary aggregates forecasts across metrics.
type Summary struct {
	Trend          string   `json:"trend"`           // majority vote
	ConfidenceBand string   `json:"confidence_band"` // low, medium, high
	KeyDrivers     []string `json:"key_drivers,omitempty"`
}

// normal z multipliers for the 60/80/95% intervals.
const (
	z60 = 0.84
	z80 = 1.28
	z95 = 1.96
)

const (
	minSeriesLen       = 3
	fallbackConfidence = 0.3
	fallbackRangePct   = 0.2
)

// ForMetric forecasts one ordered series. Series shorter than three points
// fall back to the simple average with a fixed low confidence and a ±20%
// range. Individual model failures exclude that model without aborting.
func ForMetric(metric string, series []float64) (Forecast, bool) {
	if len(series) == 0 {
		return Forecast{}, false
	}

	if len(series) < minSeriesLen {
		return averageFallback(metric, series), true
	}

	fits, excluded := evaluateAll(series)
	if len(fits) == 0 {
		return averageFallback(metric, series), true
	}

	best, ok := selectBest(fits)
	if !ok {
		return averageFallback(metric, series), true
	}

	fc := Forecast{
		Metric:    metric,
		Model:     best.Model,
		Accuracy:  clamp01(best.Accuracy),
		NextValue: best.Next,
		Trend:     trendOf(series, best),
	}
	for _, me := range excluded {
		fc.Excluded = append(fc.Excluded, me.Model)
	}
	fc.RiskLevel = riskLevel(series)
	setIntervals(&fc, series)
	return fc, true
}

// evaluateAll fits every registered model. A model failure excludes that
// model without aborting the metric's forecast.
func evaluateAll(series []float64) (map[Model]fit, []*ModelError) {
	fits := make(map[Model]fit, len(evaluators))
	var excluded []*ModelError
	for _, model := range selectionOrder {
		f, err := evaluators[model](series)
		if err != nil {
			excluded = append(excluded, &ModelError{Model: model, Err: err})
			continue
		}
		fits[model] = f
	}
	return fits, excluded
}

// selectBest picks the highest-accuracy fit; ties break by the declared
// selectionOrder ranking.
func selectBest(fits map[Model]fit) (fit, bool) {
	var best fit
	found := false
	for _, model := range selectionOrder {
		f, ok := fits[model]
		if !ok {
			continue
		}
		if !found || f.Accuracy > best.Accuracy {
			best = f
			found = true
		}
	}
	return best, found
}

func averageFallback(metric string, series []float64) Forecast {
	var sum float64
	for _, v := range series {
		sum += v
	}
	mean := sum / float64(len(series))

	fc := Forecast{
		Metric:           metric,
		Model:            ModelAverage,
		Accuracy:         fallbackConfidence,
		NextValue:        mean,
		Trend:            "stable",
		RiskLevel:        riskLevel(series),
		InsufficientData: true,
	}

	margin := math.Abs(mean) * fallbackRangePct
	fc.Intervals.Low = Interval{Low: mean - margin, High: mean + margin}
	fc.Intervals.Medium = fc.Intervals.Low
	fc.Intervals.High = fc.Intervals.Low
	return fc
}

// setIntervals applies normal-approximation margins of z * stddev around the
// point forecast.
func setIntervals(fc *Forecast, series []float64) {
	sd := stddev(series)
	p := fc.NextValue
	fc.Intervals.Low = Interval{Low: p - z60*sd, High: p + z60*sd}
	fc.Intervals.Medium = Interval{Low: p - z80*sd, High: p + z80*sd}
	fc.Intervals.High = Interval{Low: p - z95*sd, High: p + z95*sd}
}

func trendOf(series []float64, f fit) string {
	slope := f.Slope
	if f.Model != ModelLinear {
		if lf, err := fitLinear(series); err == nil {
			slope = lf.Slope
		}
	}
	switch {
	case math.Abs(slope) < 0.01:
		return "stable"
	case slope > 0:
		return "increasing"
	default:
		return "decreasing"
	}
}

// riskLevel reuses the analysis variance bands over CV.
func riskLevel(series []float64) string {
	sd := stddev(series)
	var sum float64
	for _, v := range series {
		sum += v
	}
	mean := sum / float64(len(series))
	if mean == 0 {
		return "low"
	}
	cv := sd / math.Abs(mean)
	switch {
	case cv < 0.1:
		return "low"
	case cv < 0.3:
		return "medium"
	default:
		return "high"
	}
}

// Run forecasts every metric in the map. Metrics with no data are skipped.
func Run(series map[string][]float64) map[string]Forecast {
	out := make(map[string]Forecast, len(series))
	for metric, s := range series {
		if fc, ok := ForMetric(metric, s); ok {
			out[metric] = fc
		}
	}
	return out
}

// Summarize computes the majority-vote trend, the mean-confidence band, and
// the key drivers (metrics whose trend strength exceeds 0.7).
func Summarize(forecasts map[string]Forecast, trendStrength map[string]float64) Summary {
	s := Summary{Trend: "stable", ConfidenceBand: "low"}
	if len(forecasts) == 0 {
		return s
	}

	votes := map[string]int{}
	var confSum float64
	for _, fc := range forecasts {
		votes[fc.Trend]++
		confSum += fc.Accuracy
	}

	bestTrend, bestVotes := "stable", 0
	for _, trend := range []string{"increasing", "decreasing", "stable"} {
		if votes[trend] > bestVotes {
			bestTrend, bestVotes = trend, votes[trend]
		}
	}
	s.Trend = bestTrend

	mean := confSum / float64(len(forecasts))
	switch {
	case mean >= 0.7:
		s.ConfidenceBand = "high"
	case mean >= 0.4:
		s.ConfidenceBand = "medium"
	default:
		s.ConfidenceBand = "low"
	}

	for metric, strength := range trendStrength {
		if _, ok := forecasts[metric]; ok && strength > 0.7 {
			s.KeyDrivers = append(s.KeyDrivers, metric)
		}
	}
	sort.Strings(s.KeyDrivers)
	return s
}

func stddev(series []float64) float64 {
	n := float64(len(series))
	if n == 0 {
		return 0
	}
	var sum, sumSq float64
	for _, v := range series {
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
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
