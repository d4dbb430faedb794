package analysis

// Volatility bands a series by coefficient of variation.
type Volatility struct {
	CV    float64 `json:"cv"`
	Band  string  `json:"band"`  // stable, moderate, volatile
	Level string  `json:"level"` // low, medium, high
}

// BandVolatility maps CV to the stable/moderate/volatile bands with mirrored
// low/medium/high risk levels.
func BandVolatility(d *Descriptive) *Volatility {
	if d == nil {
		return nil
	}
	v := &Volatility{CV: d.CV}
	switch {
	case d.CV < 0.1:
		v.Band, v.Level = "stable", "low"
	case d.CV < 0.3:
		v.Band, v.Level = "moderate", "medium"
	default:
		v.Band, v.Level = "volatile", "high"
	}
	return v
}

// Risk is the composite risk assessment for an amount column.
type Risk struct {
	Score         int     `json:"score"` // 0..100
	Level         string  `json:"level"` // low, medium, high
	NegativeRatio float64 `json:"negative_ratio"`
	MaxDrawdown   float64 `json:"max_drawdown"`
}

// ScoreRisk computes the additive amount-column risk score:
// volatility > 0.5 adds 30, negative ratio > 0.6 adds 25, max drawdown > 0.3
// adds 25, fewer than 30 points adds 20; capped at 100.
func ScoreRisk(series []float64, d *Descriptive, vol *Volatility) *Risk {
	if d == nil || len(series) == 0 {
		return nil
	}

	r := &Risk{
		NegativeRatio: negativeRatio(series),
		MaxDrawdown:   maxDrawdown(series),
	}

	score := 0
	if vol != nil && vol.CV > 0.5 {
		score += 30
	}
	if r.NegativeRatio > 0.6 {
		score += 25
	}
	if r.MaxDrawdown > 0.3 {
		score += 25
	}
	if len(series) < 30 {
		score += 20
	}
	if score > 100 {
		score = 100
	}
	r.Score = score

	switch {
	case score > 70:
		r.Level = "high"
	case score > 40:
		r.Level = "medium"
	default:
		r.Level = "low"
	}
	return r
}

func negativeRatio(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	neg := 0
	for _, v := range series {
		if v < 0 {
			neg++
		}
	}
	return float64(neg) / float64(len(series))
}

// maxDrawdown is the largest peak-to-trough decline as a fraction of the peak.
func maxDrawdown(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	peak := series[0]
	maxDD := 0.0
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Profitability summarizes the sign split of an amount series.
type Profitability struct {
	Revenue   float64 `json:"revenue"`
	Expenses  float64 `json:"expenses"`
	Net       float64 `json:"net"`
	MarginPct float64 `json:"margin_pct"`
	Band      string  `json:"band"` // low, medium, high
}

// AssessProfitability treats positive values as revenue and negative values
// as expenses. Margin is net over revenue, 0 when revenue is 0.
func AssessProfitability(series []float64) *Profitability {
	if len(series) == 0 {
		return nil
	}

	p := &Profitability{}
	for _, v := range series {
		if v > 0 {
			p.Revenue += v
		} else {
			p.Expenses += -v
		}
	}
	p.Net = p.Revenue - p.Expenses
	if p.Revenue > 0 {
		p.MarginPct = p.Net / p.Revenue * 100
	}

	switch {
	case p.MarginPct > 20:
		p.Band = "high"
	case p.MarginPct > 10:
		p.Band = "medium"
	default:
		p.Band = "low"
	}
	return p
}
