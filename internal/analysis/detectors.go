package analysis

import (
	"math"
	"sort"
)

// Method identifies an anomaly-detection method.
type Method string

const (
	MethodIQR          Method = "iqr"
	MethodZScore       Method = "zscore"
	MethodDistanceRank Method = "distance_rank"
)

// Anomaly is one detected outlier, read-only once produced.
type Anomaly struct {
	Column   string  `json:"column"`
	Method   Method  `json:"method"`
	Index    int     `json:"index"`
	Value    float64 `json:"value"`
	Score    float64 `json:"score"`
	Severity string  `json:"severity"`
}

// DetectorParams carries per-method tuning for the detector ensemble.
type DetectorParams struct {
	IQRFence      float64 // fence multiplier, default 1.5
	ZThreshold    float64 // |z| cutoff, default 3
	Contamination float64 // expected anomaly fraction, default 0.1
}

// DefaultDetectorParams returns the standard ensemble tuning.
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{IQRFence: 1.5, ZThreshold: 3, Contamination: 0.1}
}

// detector is one tagged variant of the ensemble.
type detector func(column string, series []float64, p DetectorParams) []Anomaly

var detectors = []detector{detectIQR, detectZScore, detectDistanceRank}

// DetectAll runs every detector independently and returns the deduplicated
// union, keyed by series index. When two methods flag the same point the
// higher-score finding wins.
func DetectAll(column string, series []float64, p DetectorParams) []Anomaly {
	if len(series) < 4 {
		return nil
	}

	byIndex := map[int]Anomaly{}
	for _, d := range detectors {
		for _, a := range d(column, series, p) {
			if prev, ok := byIndex[a.Index]; !ok || a.Score > prev.Score {
				byIndex[a.Index] = a
			}
		}
	}

	out := make([]Anomaly, 0, len(byIndex))
	for _, a := range byIndex {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// detectIQR flags values outside [Q1-fence*IQR, Q3+fence*IQR].
func detectIQR(column string, series []float64, p DetectorParams) []Anomaly {
	sorted := append([]float64(nil), series...)
	sort.Float64s(sorted)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1

	fence := p.IQRFence
	if fence <= 0 {
		fence = 1.5
	}
	lo := q1 - fence*iqr
	hi := q3 + fence*iqr

	var out []Anomaly
	for i, v := range series {
		if v < lo || v > hi {
			dist := 0.0
			if iqr > 0 {
				if v < lo {
					dist = (lo - v) / iqr
				} else {
					dist = (v - hi) / iqr
				}
			}
			out = append(out, Anomaly{
				Column:   column,
				Method:   MethodIQR,
				Index:    i,
				Value:    v,
				Score:    dist,
				Severity: severityFromScore(dist, 1, 3),
			})
		}
	}
	return out
}

// detectZScore flags values with |z| above the threshold.
func detectZScore(column string, series []float64, p DetectorParams) []Anomaly {
	d := Describe(series)
	if d == nil || d.StdDev == 0 {
		return nil
	}

	thr := p.ZThreshold
	if thr <= 0 {
		thr = 3
	}

	var out []Anomaly
	for i, v := range series {
		z := math.Abs(v-d.Mean) / d.StdDev
		if z > thr {
			out = append(out, Anomaly{
				Column:   column,
				Method:   MethodZScore,
				Index:    i,
				Value:    v,
				Score:    z,
				Severity: severityFromScore(z, thr, thr+2),
			})
		}
	}
	return out
}

// detectDistanceRank flags the top ceil(contamination*N) points by distance
// from the mean.
func detectDistanceRank(column string, series []float64, p DetectorParams) []Anomaly {
	d := Describe(series)
	if d == nil {
		return nil
	}

	contamination := p.Contamination
	if contamination <= 0 || contamination >= 1 {
		contamination = 0.1
	}
	k := int(math.Ceil(contamination * float64(len(series))))
	if k <= 0 {
		return nil
	}

	type ranked struct {
		idx  int
		dist float64
	}
	rs := make([]ranked, len(series))
	for i, v := range series {
		rs[i] = ranked{idx: i, dist: math.Abs(v - d.Mean)}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].dist > rs[j].dist })

	scale := d.StdDev
	if scale == 0 {
		scale = 1
	}

	out := make([]Anomaly, 0, k)
	for _, r := range rs[:k] {
		score := r.dist / scale
		out = append(out, Anomaly{
			Column:   column,
			Method:   MethodDistanceRank,
			Index:    r.idx,
			Value:    series[r.idx],
			Score:    score,
			Severity: severityFromScore(score, 2, 4),
		})
	}
	return out
}

func severityFromScore(score, medium, high float64) string {
	switch {
	case score >= high:
		return "high"
	case score >= medium:
		return "medium"
	default:
		return "low"
	}
}
