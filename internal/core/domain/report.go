package domain

import "time"

type QualityGrade string

const (
	GradeA QualityGrade = "A"
	GradeB QualityGrade = "B"
)

// Rate is a percentage that may be undefined because its denominator is zero.
type Rate struct {
	Value     float64 `json:"value"`
	Available bool    `json:"available"`
}

func RateOf(numerator, denominator int) Rate {
	if denominator <= 0 {
		return Rate{}
	}
	return Rate{Value: float64(numerator) / float64(denominator) * 100, Available: true}
}

type SampleInfo struct {
	AnalysisID          string  `json:"analysis_id,omitempty"`
	Filename            string  `json:"filename"`
	Width               int     `json:"width,omitempty"`
	Height              int     `json:"height,omitempty"`
	Format              string  `json:"format,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

type ClassMetrics struct {
	ViabilityRate Rate `json:"viability_rate"`
	Share         Rate `json:"share"`
}

type DerivedMetrics struct {
	ConfidenceThreshold   float64                    `json:"confidence_threshold"`
	OverallViableFraction float64                    `json:"overall_viable_fraction"`
	QualityGrade          QualityGrade               `json:"quality_grade"`
	PerClass              map[ClassName]ClassMetrics `json:"per_class"`
}

// ReportDocument is the exportable snapshot of one analysis.
type ReportDocument struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Sample      SampleInfo     `json:"sample"`
	Counts      ClassCounts    `json:"counts"`
	Metrics     DerivedMetrics `json:"metrics"`
}

type BatchReportItem struct {
	Filename    string      `json:"filename"`
	Counts      ClassCounts `json:"counts,omitempty"`
	ProcessedAt string      `json:"processed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// BatchInfo counts every uploaded file in SampleCount, failed ones included.
type BatchInfo struct {
	BatchID        string `json:"batch_id,omitempty"`
	SampleCount    int    `json:"sample_count"`
	CompletedCount int    `json:"completed_count"`
}

// BatchReport summarises several analyses.
type BatchReport struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Batch       BatchInfo          `json:"batch"`
	Summary     ClassCounts        `json:"summary"`
	PerClass    map[ClassName]Rate `json:"per_class"`
	Items       []BatchReportItem  `json:"items"`
}
