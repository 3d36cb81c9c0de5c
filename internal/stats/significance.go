// ABOUTME: Chi-squared significance calculation over experiment counter rows
// ABOUTME: Pure computation; emits p-values, rates, and improvement vs control

package stats

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/growthtools/abtrack/internal/store"
)

// SignificanceThreshold is the fixed two-tailed p-value cutoff.
const SignificanceThreshold = 0.05

// ImprovementKind tags how an improvement value should be read.
type ImprovementKind int

const (
	// ImprovementUndefined means no control row existed to compare against.
	ImprovementUndefined ImprovementKind = iota

	// ImprovementFinite carries an ordinary percentage.
	ImprovementFinite

	// ImprovementInfinite marks a variant converting against a control
	// that never converted; no finite percentage exists.
	ImprovementInfinite

	// ImprovementBaseline marks the control row itself.
	ImprovementBaseline
)

// Improvement is the relative conversion-rate change versus control. The
// tagged kind keeps the infinite and undefined cases out of the numeric
// domain instead of overloading sentinel floats.
type Improvement struct {
	Kind    ImprovementKind
	Percent float64
}

// Finite returns an ordinary percentage improvement.
func Finite(percent float64) Improvement {
	return Improvement{Kind: ImprovementFinite, Percent: percent}
}

// Infinite returns the infinite-improvement marker.
func Infinite() Improvement {
	return Improvement{Kind: ImprovementInfinite}
}

// Baseline returns the control-row marker.
func Baseline() Improvement {
	return Improvement{Kind: ImprovementBaseline}
}

// Undefined returns the no-control marker.
func Undefined() Improvement {
	return Improvement{Kind: ImprovementUndefined}
}

// MarshalJSON renders finite improvements as numbers and the markers as
// strings ("infinite", "baseline") or null (undefined).
func (i Improvement) MarshalJSON() ([]byte, error) {
	switch i.Kind {
	case ImprovementFinite:
		return json.Marshal(i.Percent)
	case ImprovementInfinite:
		return json.Marshal("infinite")
	case ImprovementBaseline:
		return json.Marshal("baseline")
	default:
		return []byte("null"), nil
	}
}

// String renders the improvement for human-facing surfaces.
func (i Improvement) String() string {
	switch i.Kind {
	case ImprovementFinite:
		return fmt.Sprintf("%+.1f%%", i.Percent)
	case ImprovementInfinite:
		return "∞"
	case ImprovementBaseline:
		return "baseline"
	default:
		return "n/a"
	}
}

// VariantResult is the per-variant detail in a significance report.
type VariantResult struct {
	Views                   int64       `json:"views"`
	Conversions             int64       `json:"conversions"`
	SecondaryConversions    int64       `json:"secondary_conversions"`
	ConversionRate          float64     `json:"conversion_rate"`
	SecondaryConversionRate float64     `json:"secondary_conversion_rate"`
	Improvement             Improvement `json:"improvement"`
	SecondaryImprovement    Improvement `json:"secondary_improvement"`
}

// Report is the computed significance read-out for one experiment. When Err
// is non-empty the p-values are meaningless and must not be trusted.
type Report struct {
	PValue               *float64                  `json:"p_value"`
	Significant          bool                      `json:"significant"`
	PValueSecondary      *float64                  `json:"p_value_secondary"`
	SignificantSecondary bool                      `json:"significant_secondary"`
	Err                  string                    `json:"error,omitempty"`
	Variants             map[string]*VariantResult `json:"variants"`
}

// Calculate computes the significance report for one experiment from all of
// its counter rows. It never touches storage and never fails: degenerate
// inputs come back as a report with Err set.
func Calculate(rows []*store.VariantCounter) *Report {
	if len(rows) < 2 {
		return &Report{
			Err:      fmt.Sprintf("not enough variants for significance calculation (%d found)", len(rows)),
			Variants: map[string]*VariantResult{},
		}
	}

	var totalViews, totalConversions, totalSecondary int64
	for _, row := range rows {
		totalViews += row.TotalViews
		totalConversions += row.Conversions
		totalSecondary += row.SecondaryConversions
	}

	if totalViews == 0 {
		variants := make(map[string]*VariantResult, len(rows))
		for _, row := range rows {
			variants[row.Variant] = &VariantResult{
				Conversions:          row.Conversions,
				SecondaryConversions: row.SecondaryConversions,
				Improvement:          Finite(0),
				SecondaryImprovement: Finite(0),
			}
		}
		return &Report{
			Err:      "no views recorded for this experiment",
			Variants: variants,
		}
	}

	overallPrimaryRate := float64(totalConversions) / float64(totalViews)
	overallSecondaryRate := float64(totalSecondary) / float64(totalViews)

	var chiPrimary, chiSecondary float64
	variants := make(map[string]*VariantResult, len(rows))

	for _, row := range rows {
		views := float64(row.TotalViews)

		chiPrimary += chiTerms(views, float64(row.Conversions), overallPrimaryRate)
		chiSecondary += chiTerms(views, float64(row.SecondaryConversions), overallSecondaryRate)

		result := &VariantResult{
			Views:                row.TotalViews,
			Conversions:          row.Conversions,
			SecondaryConversions: row.SecondaryConversions,
		}
		if row.TotalViews > 0 {
			result.ConversionRate = float64(row.Conversions) / views
			result.SecondaryConversionRate = float64(row.SecondaryConversions) / views
		}
		variants[row.Variant] = result
	}

	df := len(rows) - 1
	if df < 1 {
		df = 1
	}

	pPrimary := pValue(chiPrimary, df)
	pSecondary := pValue(chiSecondary, df)

	applyImprovements(variants)

	return &Report{
		PValue:               pPrimary,
		Significant:          pPrimary != nil && *pPrimary < SignificanceThreshold,
		PValueSecondary:      pSecondary,
		SignificantSecondary: pSecondary != nil && *pSecondary < SignificanceThreshold,
		Variants:             variants,
	}
}

// chiTerms accumulates the success and failure cells for one variant in the
// 2xk contingency table. Cells with zero expectation contribute nothing.
func chiTerms(views, observed, overallRate float64) float64 {
	expected := views * overallRate
	var sum float64
	if expected > 0 {
		sum += (observed - expected) * (observed - expected) / expected
	}
	expectedFailures := views - expected
	observedFailures := views - observed
	if expectedFailures > 0 {
		sum += (observedFailures - expectedFailures) * (observedFailures - expectedFailures) / expectedFailures
	}
	return sum
}

// pValue evaluates 1 - CDF_chi2(df, statistic). A zero statistic means no
// observed deviation, which is the maximal p-value by definition. Returns nil
// when the evaluation degenerates numerically.
func pValue(statistic float64, df int) *float64 {
	if statistic == 0 {
		p := 1.0
		return &p
	}
	if math.IsNaN(statistic) || math.IsInf(statistic, 0) {
		return nil
	}

	dist := distuv.ChiSquared{K: float64(df)}
	p := 1 - dist.CDF(statistic)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return nil
	}
	if p < 0 {
		p = 0
	}
	return &p
}

// applyImprovements fills in improvement vs the control row, when present.
func applyImprovements(variants map[string]*VariantResult) {
	control, hasControl := variants[store.VariantControl]
	if !hasControl {
		for _, v := range variants {
			v.Improvement = Undefined()
			v.SecondaryImprovement = Undefined()
		}
		return
	}

	control.Improvement = Baseline()
	control.SecondaryImprovement = Baseline()

	for name, v := range variants {
		if name == store.VariantControl {
			continue
		}
		v.Improvement = improvementVs(control.ConversionRate, v.ConversionRate)
		v.SecondaryImprovement = improvementVs(control.SecondaryConversionRate, v.SecondaryConversionRate)
	}
}

// improvementVs compares a variant rate against the control rate.
func improvementVs(controlRate, rate float64) Improvement {
	switch {
	case controlRate > 0:
		return Finite((rate - controlRate) / controlRate * 100)
	case rate > 0:
		return Infinite()
	default:
		return Finite(0)
	}
}
