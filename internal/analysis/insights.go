package analysis

import (
	"fmt"
	"sort"
)

// Insight kinds.
const (
	InsightPositive    = "positive"
	InsightWarning     = "warning"
	InsightCritical    = "critical"
	InsightOpportunity = "opportunity"
)

// Insight is one derived finding. Read-only once produced.
type Insight struct {
	Category    string             `json:"category"`
	Kind        string             `json:"kind"`
	Description string             `json:"description"`
	Impact      string             `json:"impact"`
	Confidence  float64            `json:"confidence"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// Recommendation is a remediation suggestion derived from insights.
type Recommendation struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
	Action   string `json:"action"`
}

const anomalyPctWarning = 5.0

// buildInsights applies the fixed threshold rules over per-column analyses.
func buildInsights(cols map[string]*ColumnAnalysis) []Insight {
	names := make([]string, 0, len(cols))
	for n := range cols {
		names = append(names, n)
	}
	sort.Strings(names)

	var out []Insight
	for _, name := range names {
		ca := cols[name]

		if ca.AnomalyPct > anomalyPctWarning {
			out = append(out, Insight{
				Category:    "data_quality",
				Kind:        InsightWarning,
				Description: fmt.Sprintf("%s has an elevated anomaly rate (%.1f%% of values flagged)", name, ca.AnomalyPct),
				Impact:      "medium",
				Confidence:  0.8,
				Metrics:     map[string]float64{"anomaly_pct": ca.AnomalyPct},
			})
		}

		if ca.Risk != nil && ca.Risk.Level == "high" {
			out = append(out, Insight{
				Category:    "risk",
				Kind:        InsightCritical,
				Description: fmt.Sprintf("%s shows high financial risk (score %d/100)", name, ca.Risk.Score),
				Impact:      "high",
				Confidence:  0.85,
				Metrics:     map[string]float64{"risk_score": float64(ca.Risk.Score)},
			})
		}

		if ca.Profit != nil {
			switch ca.Profit.Band {
			case "high":
				out = append(out, Insight{
					Category:    "profitability",
					Kind:        InsightPositive,
					Description: fmt.Sprintf("%s carries a strong margin of %.1f%%", name, ca.Profit.MarginPct),
					Impact:      "high",
					Confidence:  0.8,
					Metrics:     map[string]float64{"margin_pct": ca.Profit.MarginPct},
				})
			case "low":
				if ca.Profit.Revenue > 0 {
					out = append(out, Insight{
						Category:    "profitability",
						Kind:        InsightOpportunity,
						Description: fmt.Sprintf("%s margin is thin (%.1f%%); expense review may recover headroom", name, ca.Profit.MarginPct),
						Impact:      "medium",
						Confidence:  0.7,
						Metrics:     map[string]float64{"margin_pct": ca.Profit.MarginPct},
					})
				}
			}
		}

		if ca.Trend != nil && ca.Trend.Direction != "stable" && ca.Trend.Confidence == "high" {
			kind := InsightPositive
			if ca.Trend.Direction == "decreasing" && ca.Class == ClassAmount {
				kind = InsightWarning
			}
			out = append(out, Insight{
				Category:    "trend",
				Kind:        kind,
				Description: fmt.Sprintf("%s is %s with strong fit (R²=%.2f)", name, ca.Trend.Direction, ca.Trend.R2),
				Impact:      "medium",
				Confidence:  ca.Trend.R2,
				Metrics:     map[string]float64{"slope": ca.Trend.Slope, "r2": ca.Trend.R2},
			})
		}

		if ca.Volatility != nil && ca.Volatility.Band == "volatile" {
			out = append(out, Insight{
				Category:    "volatility",
				Kind:        InsightWarning,
				Description: fmt.Sprintf("%s is highly volatile (CV=%.2f)", name, ca.Volatility.CV),
				Impact:      "medium",
				Confidence:  0.75,
				Metrics:     map[string]float64{"cv": ca.Volatility.CV},
			})
		}
	}
	return out
}

// remediation templates per insight category, applied to warning/critical insights.
var remediations = map[string]Recommendation{
	"data_quality":  {Category: "data_quality", Action: "Investigate flagged outliers; confirm whether they are data-entry errors or genuine events before downstream use"},
	"risk":          {Category: "risk", Action: "Review high-risk amount columns; consider hedging, reserves, or tighter controls on volatile flows"},
	"volatility":    {Category: "volatility", Action: "Smooth volatile series with longer reporting windows, or segment by driver to isolate the variance source"},
	"trend":         {Category: "trend", Action: "Validate the declining trend against business events and adjust forecasts or targets accordingly"},
	"profitability": {Category: "profitability", Action: "Break expenses down by category to find margin recovery opportunities"},
}

// buildRecommendations maps warning/critical insights onto remediation
// templates, deduplicated by category.
func buildRecommendations(insights []Insight) []Recommendation {
	seen := map[string]struct{}{}
	var out []Recommendation
	for _, ins := range insights {
		if ins.Kind != InsightWarning && ins.Kind != InsightCritical && ins.Kind != InsightOpportunity {
			continue
		}
		tmpl, ok := remediations[ins.Category]
		if !ok {
			continue
		}
		if _, dup := seen[ins.Category]; dup {
			continue
		}
		seen[ins.Category] = struct{}{}

		tmpl.Priority = "medium"
		if ins.Kind == InsightCritical {
			tmpl.Priority = "high"
		}
		out = append(out, tmpl)
	}
	return out
}

// fallbackInsights is the non-empty generic set returned when the dataset
// yields nothing analyzable. Callers treat this as a reduced-confidence
// success, not a failure.
func fallbackInsights() ([]Insight, []Recommendation) {
	return []Insight{{
			Category:    "general",
			Kind:        InsightWarning,
			Description: "The dataset did not yield specific findings; results are based on limited or unparseable data",
			Impact:      "low",
			Confidence:  0.3,
		}}, []Recommendation{{
			Category: "general",
			Priority: "low",
			Action:   "Verify column formats and provide more rows to improve analysis coverage",
		}}
}
