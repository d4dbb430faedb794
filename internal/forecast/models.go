// Package forecast fits candidate models over ordered numeric series,
// selects the best by accuracy, and emits point forecasts with confidence
// bounds.
package forecast

import (
	"fmt"
	"math"
)

// Model identifies a forecasting model kind.
type Model string

const (
	ModelLinear      Model = "linear"
	ModelMovingAvg   Model = "moving_average"
	ModelExponential Model = "exponential_smoothing"
	ModelAverage     Model = "simple_average"
)

// selectionOrder is the declared tie-break ranking when accuracies are
// equal. This is a deliberate ordering, not an evaluation-order artifact.
var selectionOrder = []Model{ModelLinear, ModelMovingAvg, ModelExponential}

// ModelError records one candidate model's failure. The model is excluded
// from selection; the metric's forecast proceeds with the remaining models.
type ModelError struct {
	Model Model
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("forecast: model %s: %v", e.Model, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// fit is one candidate model evaluation.
type fit struct {
	Model    Model
	Accuracy float64
	Next     float64
	Slope    float64
}

// evaluator fits one model kind over a series.
type evaluator func(series []float64) (fit, error)

var evaluators = map[Model]evaluator{
	ModelLinear:      fitLinear,
	ModelMovingAvg:   fitMovingAverage,
	ModelExponential: fitExponential,
}

const smoothingAlpha = 0.3

// fitLinear does OLS of value on index; accuracy is R² and the next value
// extrapolates one step past the series.
func fitLinear(series []float64) (fit, error) {
	n := len(series)
	if n < 2 {
		return fit{}, fmt.Errorf("series too short (%d)", n)
	}

	nf := float64(n)
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := nf*sumXX - sumX*sumX
	if den == 0 {
		return fit{}, fmt.Errorf("degenerate index variance")
	}
	slope := (nf*sumXY - sumX*sumY) / den
	intercept := (sumY - slope*sumX) / nf

	meanY := sumY / nf
	var ssTot, ssRes float64
	for i, y := range series {
		f := slope*float64(i) + intercept
		ssTot += (y - meanY) * (y - meanY)
		ssRes += (y - f) * (y - f)
	}
	r2 := 1.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	if r2 < 0 {
		r2 = 0
	}

	return fit{
		Model:    ModelLinear,
		Accuracy: r2,
		Next:     slope*nf + intercept,
		Slope:    slope,
	}, nil
}

// fitMovingAverage uses a window of min(3, N/2); accuracy is 1-MAPE of the
// windowed averages against actuals, and the next value averages the last
// window.
func fitMovingAverage(series []float64) (fit, error) {
	n := len(series)
	window := n / 2
	if window > 3 {
		window = 3
	}
	if window < 1 {
		return fit{}, fmt.Errorf("series too short (%d)", n)
	}

	var absPctSum float64
	var counted int
	for i := window; i < n; i++ {
		var sum float64
		for j := i - window; j < i; j++ {
			sum += series[j]
		}
		pred := sum / float64(window)
		if series[i] != 0 {
			absPctSum += math.Abs((series[i] - pred) / series[i])
			counted++
		}
	}

	accuracy := 0.5 // no scorable points: neutral accuracy
	if counted > 0 {
		accuracy = 1 - absPctSum/float64(counted)
		if accuracy < 0 {
			accuracy = 0
		}
	}

	var sum float64
	for _, v := range series[n-window:] {
		sum += v
	}

	return fit{
		Model:    ModelMovingAvg,
		Accuracy: accuracy,
		Next:     sum / float64(window),
	}, nil
}

// fitExponential applies simple exponential smoothing with α=0.3; accuracy
// is 1-MAPE of the smoothed sequence against actuals.
func fitExponential(series []float64) (fit, error) {
	n := len(series)
	if n < 2 {
		return fit{}, fmt.Errorf("series too short (%d)", n)
	}

	smoothed := series[0]
	var absPctSum float64
	var counted int
	for i := 1; i < n; i++ {
		if series[i] != 0 {
			absPctSum += math.Abs((series[i] - smoothed) / series[i])
			counted++
		}
		smoothed = smoothingAlpha*series[i] + (1-smoothingAlpha)*smoothed
	}

	accuracy := 0.5
	if counted > 0 {
		accuracy = 1 - absPctSum/float64(counted)
		if accuracy < 0 {
			accuracy = 0
		}
	}

	return fit{
		Model:    ModelExponential,
		Accuracy: accuracy,
		Next:     smoothed,
	}, nil
}
