package domain

// Thresholds collects the heuristic constants of the pipeline. The defaults are
// approximate and pending domain-expert review.
type Thresholds struct {
	// Detections with confidence below this value are ignored; equal is kept.
	Confidence float64 `json:"confidence" yaml:"confidence"`
	// Mean 8-bit luminance a crop must exceed to count as viable.
	ViabilityMeanMin float64 `json:"viability_mean_min" yaml:"viability_mean_min"`
	// Luminance standard deviation a crop must exceed to count as viable.
	ViabilityStdDevMin float64 `json:"viability_std_dev_min" yaml:"viability_std_dev_min"`
	// Overall viable fraction above which a sample is graded A.
	GradeAFraction float64 `json:"grade_a_fraction" yaml:"grade_a_fraction"`
	// p-value below which a group difference is reported as significant.
	SignificanceAlpha float64 `json:"significance_alpha" yaml:"significance_alpha"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Confidence:         0.5,
		ViabilityMeanMin:   100,
		ViabilityStdDevMin: 20,
		GradeAFraction:     0.8,
		SignificanceAlpha:  0.05,
	}
}
