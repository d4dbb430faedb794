package analysis

import (
	"math"
)

// Trend is the OLS trend of a series over its sequential index.
type Trend struct {
	Direction  string  `json:"direction"` // increasing, decreasing, stable
	Slope      float64 `json:"slope"`
	Intercept  float64 `json:"intercept"`
	R2         float64 `json:"r2"`
	Confidence string  `json:"confidence"` // high when R² > 0.7, else medium
	Strength   float64 `json:"strength"`
}

const stableSlopeEpsilon = 0.01

// FitTrend regresses value on sequential index.
// Returns nil when the series is too short to fit.
func FitTrend(series []float64) *Trend {
	n := len(series)
	if n < 2 {
		return nil
	}

	slope, intercept, r2 := olsIndex(series)

	t := &Trend{
		Slope:     slope,
		Intercept: intercept,
		R2:        r2,
		Strength:  math.Abs(r2),
	}

	switch {
	case math.Abs(slope) < stableSlopeEpsilon:
		t.Direction = "stable"
	case slope > 0:
		t.Direction = "increasing"
	default:
		t.Direction = "decreasing"
	}

	if r2 > 0.7 {
		t.Confidence = "high"
	} else {
		t.Confidence = "medium"
	}
	return t
}

// olsIndex fits y = slope*i + intercept over i = 0..n-1 and returns R².
func olsIndex(series []float64) (slope, intercept, r2 float64) {
	n := float64(len(series))

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0, sumY / n, 0
	}
	slope = (n*sumXY - sumX*sumY) / den
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range series {
		fit := slope*float64(i) + intercept
		ssTot += (y - meanY) * (y - meanY)
		ssRes += (y - fit) * (y - fit)
	}
	if ssTot == 0 {
		// A flat series is perfectly explained by the flat fit.
		return slope, intercept, 1
	}
	return slope, intercept, 1 - ssRes/ssTot
}

// Seasonality captures autocorrelation-based periodicity.
type Seasonality struct {
	Period   int     `json:"period"`
	Strength float64 `json:"strength"`
	Cycles   int     `json:"cycles"`
}

// DetectSeasonality scans autocorrelation over lags 1..min(20, N/2) and
// reports the first lag with correlation above 0.3 as the candidate period.
// Returns nil when no candidate period exists.
func DetectSeasonality(series []float64) *Seasonality {
	n := len(series)
	maxLag := n / 2
	if maxLag > 20 {
		maxLag = 20
	}
	if maxLag < 1 {
		return nil
	}

	acf := autocorrelation(series, maxLag)
	period := 0
	for lag := 1; lag <= maxLag && lag < len(acf); lag++ {
		if acf[lag] > 0.3 {
			period = lag
			break
		}
	}
	if period == 0 {
		return nil
	}

	return &Seasonality{
		Period:   period,
		Strength: seasonalStrength(series, period),
		Cycles:   countCycles(series),
	}
}

// autocorrelation returns ACF values for lags 0..maxLag.
func autocorrelation(series []float64, maxLag int) []float64 {
	n := len(series)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	var mean float64
	for _, v := range series {
		mean += v
	}
	mean /= float64(n)

	var variance float64
	for _, v := range series {
		diff := v - mean
		variance += diff * diff
	}
	if variance == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		var sum float64
		for i := k; i < n; i++ {
			sum += (series[i] - mean) * (series[i-k] - mean)
		}
		acf[k] = sum / variance
	}
	return acf
}

// seasonalStrength bins the series by period phase and compares within-bin
// dispersion to overall dispersion.
func seasonalStrength(series []float64, period int) float64 {
	d := Describe(series)
	if d == nil || d.StdDev == 0 || period <= 0 {
		return 0
	}

	bins := make([][]float64, period)
	for i, v := range series {
		p := i % period
		bins[p] = append(bins[p], v)
	}

	var sum float64
	var counted int
	for _, bin := range bins {
		if bd := Describe(bin); bd != nil {
			sum += bd.StdDev
			counted++
		}
	}
	if counted == 0 {
		return 0
	}
	return (sum / float64(counted)) / d.StdDev
}

// countCycles counts local-maximum to local-minimum transitions.
func countCycles(series []float64) int {
	if len(series) < 3 {
		return 0
	}
	cycles := 0
	sawMax := false
	for i := 1; i < len(series)-1; i++ {
		isMax := series[i] > series[i-1] && series[i] > series[i+1]
		isMin := series[i] < series[i-1] && series[i] < series[i+1]
		if isMax {
			sawMax = true
		}
		if isMin && sawMax {
			cycles++
			sawMax = false
		}
	}
	return cycles
}
