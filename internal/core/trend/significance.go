package trend

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

const (
	reasonTooFewSamples = "each group needs at least two samples"
	reasonZeroVariance  = "both groups are constant"
)

// Significance runs a two-sided two-sample Student t-test with pooled variance.
// It is advisory: when the test cannot run the result says why instead of failing.
func Significance(control, experimental []float64, alpha float64) domain.Significance {
	out := domain.Significance{Alpha: alpha}
	n1, n2 := float64(len(control)), float64(len(experimental))
	if len(control) <= 1 || len(experimental) <= 1 {
		out.Reason = reasonTooFewSamples
		return out
	}

	m1, v1 := stat.MeanVariance(control, nil)
	m2, v2 := stat.MeanVariance(experimental, nil)
	df := n1 + n2 - 2
	pooled := ((n1-1)*v1 + (n2-1)*v2) / df
	if pooled <= 0 || !finite(pooled) {
		out.Reason = reasonZeroVariance
		return out
	}

	t := (m1 - m2) / math.Sqrt(pooled*(1/n1+1/n2))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))
	if p > 1 {
		p = 1
	}

	out.Available = true
	out.TStatistic = t
	out.PValue = p
	out.Significant = p < alpha
	return out
}
