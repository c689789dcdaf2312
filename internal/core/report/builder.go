// Package report builds the exportable summaries of analyses and batches.
package report

import (
	"errors"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

var errNoDetections = errors.New("no detections to report on")

type Builder struct {
	thresholds domain.Thresholds
	now        func() time.Time
}

func NewBuilder(th domain.Thresholds) *Builder {
	return &Builder{thresholds: th, now: time.Now}
}

// Build derives the report of a single analysis. Counts with no detections at all
// cannot be graded and yield ErrInsufficientData.
func (b *Builder) Build(counts domain.ClassCounts, sample domain.SampleInfo) (domain.ReportDocument, error) {
	counts = counts.Normalized()
	totals := counts.Totals()
	if totals.Total == 0 {
		return domain.ReportDocument{}, domain.WrapError(domain.ErrInsufficientData, "build report", errNoDetections)
	}

	fraction := float64(totals.Viable) / float64(totals.Total)
	grade := domain.GradeB
	if fraction > b.thresholds.GradeAFraction {
		grade = domain.GradeA
	}

	perClass := make(map[domain.ClassName]domain.ClassMetrics, len(counts))
	for name, t := range counts {
		perClass[name] = domain.ClassMetrics{
			ViabilityRate: domain.RateOf(t.Viable, t.Total),
			Share:         domain.RateOf(t.Total, totals.Total),
		}
	}

	return domain.ReportDocument{
		GeneratedAt: b.now(),
		Sample:      sample,
		Counts:      counts,
		Metrics: domain.DerivedMetrics{
			ConfidenceThreshold:   sample.ConfidenceThreshold,
			OverallViableFraction: fraction,
			QualityGrade:          grade,
			PerClass:              perClass,
		},
	}, nil
}

// BuildBatch sums the items that completed and lists every item, failed ones included.
func (b *Builder) BuildBatch(items []domain.BatchReportItem, info domain.BatchInfo) (domain.BatchReport, error) {
	summary := domain.NewClassCounts()
	completed := 0
	for _, item := range items {
		if item.Error != "" {
			continue
		}
		summary = summary.Add(item.Counts)
		completed++
	}
	if completed == 0 {
		return domain.BatchReport{}, domain.WrapError(domain.ErrInsufficientData, "build batch report", errors.New("no completed items"))
	}

	perClass := make(map[domain.ClassName]domain.Rate, len(summary))
	for name, t := range summary {
		perClass[name] = domain.RateOf(t.Viable, t.Total)
	}
	if info.SampleCount < len(items) {
		info.SampleCount = len(items)
	}
	info.CompletedCount = completed

	return domain.BatchReport{
		GeneratedAt: b.now(),
		Batch:       info,
		Summary:     summary,
		PerClass:    perClass,
		Items:       items,
	}, nil
}
