// Package trend derives viability time series and group comparisons from history.
package trend

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

// ViabilitySeries returns one point per record for every class, in record order.
// A class without detections in a record contributes a zero rate.
func ViabilitySeries(records []domain.HistoryRecord) domain.TrendSeries {
	series := make(domain.TrendSeries, 3)
	for _, name := range domain.ClassNames() {
		points := make([]domain.TrendPoint, 0, len(records))
		for _, rec := range records {
			points = append(points, domain.TrendPoint{
				Timestamp: rec.Timestamp,
				Rate:      rec.Data[name].ViabilityRate(),
			})
		}
		series[name] = points
	}
	return series
}

// Summarize returns the population mean and standard deviation of values.
func Summarize(values []float64) domain.SeriesSummary {
	if len(values) == 0 {
		return domain.SeriesSummary{}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return domain.SeriesSummary{Mean: mean, StdDev: std}
}

// SummarizeSeries summarises every class series of s.
func SummarizeSeries(s domain.TrendSeries) map[domain.ClassName]domain.SeriesSummary {
	out := make(map[domain.ClassName]domain.SeriesSummary, len(s))
	for name, points := range s {
		values := make([]float64, len(points))
		for i, p := range points {
			values[i] = p.Rate
		}
		out[name] = Summarize(values)
	}
	return out
}

type Analyzer struct {
	alpha float64
}

func NewAnalyzer(th domain.Thresholds) *Analyzer {
	alpha := th.SignificanceAlpha
	if alpha <= 0 || alpha >= 1 {
		alpha = domain.DefaultThresholds().SignificanceAlpha
	}
	return &Analyzer{alpha: alpha}
}

func (a *Analyzer) Alpha() float64 { return a.alpha }

// CompareGroups contrasts the control class with the other classes. The experimental
// value of a record is the mean rate of the non-control classes that had detections in
// it, or 0 when none had.
func (a *Analyzer) CompareGroups(records []domain.HistoryRecord, control domain.ClassName) (*domain.GroupComparison, error) {
	if _, ok := domain.VariantByName(control); !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "compare groups", fmt.Errorf("unknown control class %q", control))
	}

	cmp := &domain.GroupComparison{
		Control:            control,
		Timestamps:         make([]string, 0, len(records)),
		ControlSeries:      make([]float64, 0, len(records)),
		ExperimentalSeries: make([]float64, 0, len(records)),
	}
	for _, rec := range records {
		cmp.Timestamps = append(cmp.Timestamps, rec.Timestamp)
		cmp.ControlSeries = append(cmp.ControlSeries, rec.Data[control].ViabilityRate())

		var sum float64
		var n int
		for _, name := range domain.ClassNames() {
			if name == control {
				continue
			}
			tally := rec.Data[name]
			if tally.Total > 0 {
				sum += tally.ViabilityRate()
				n++
			}
		}
		experimental := 0.0
		if n > 0 {
			experimental = sum / float64(n)
		}
		cmp.ExperimentalSeries = append(cmp.ExperimentalSeries, experimental)
	}

	cmp.ControlSummary = Summarize(cmp.ControlSeries)
	cmp.ExperimentalSummary = Summarize(cmp.ExperimentalSeries)
	cmp.Significance = Significance(cmp.ControlSeries, cmp.ExperimentalSeries, a.alpha)
	return cmp, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
