package report

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

func fixedBuilder() *Builder {
	b := NewBuilder(domain.DefaultThresholds())
	b.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return b
}

func TestBuildGradesAboveFraction(t *testing.T) {
	counts := domain.NewClassCounts()
	for i := 0; i < 9; i++ {
		counts.Record(domain.ClassWT, true)
	}
	counts.Record(domain.ClassT1C5C1, false)

	doc, err := fixedBuilder().Build(counts, domain.SampleInfo{Filename: "a.png", ConfidenceThreshold: 0.5})
	require.NoError(t, err)

	assert.Equal(t, domain.GradeA, doc.Metrics.QualityGrade)
	assert.InDelta(t, 0.9, doc.Metrics.OverallViableFraction, 1e-9)
	assert.Equal(t, 0.5, doc.Metrics.ConfidenceThreshold)
	assert.Equal(t, domain.Rate{Value: 100, Available: true}, doc.Metrics.PerClass[domain.ClassWT].ViabilityRate)
	share := doc.Metrics.PerClass[domain.ClassWT].Share
	assert.True(t, share.Available)
	assert.InDelta(t, 90, share.Value, 1e-9)
	assert.False(t, doc.Metrics.PerClass[domain.ClassT1C5E5].ViabilityRate.Available)
	assert.Equal(t, "a.png", doc.Sample.Filename)
}

func TestBuildExactlyAtFractionIsGradeB(t *testing.T) {
	counts := domain.NewClassCounts()
	for i := 0; i < 4; i++ {
		counts.Record(domain.ClassWT, true)
	}
	counts.Record(domain.ClassWT, false)

	doc, err := fixedBuilder().Build(counts, domain.SampleInfo{})
	require.NoError(t, err)
	assert.Equal(t, domain.GradeB, doc.Metrics.QualityGrade)
}

func TestBuildAllZeroIsInsufficientData(t *testing.T) {
	_, err := fixedBuilder().Build(domain.NewClassCounts(), domain.SampleInfo{})
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))

	_, err = fixedBuilder().Build(nil, domain.SampleInfo{})
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
}

func TestBuildBatchSumsCompletedItems(t *testing.T) {
	a := domain.NewClassCounts()
	a.Record(domain.ClassWT, true)
	a.Record(domain.ClassWT, false)
	b := domain.NewClassCounts()
	b.Record(domain.ClassWT, true)
	b.Record(domain.ClassT1C5E5, true)

	items := []domain.BatchReportItem{
		{Filename: "a.png", Counts: a},
		{Filename: "broken.png", Error: "decode failed"},
		{Filename: "b.png", Counts: b},
	}
	rep, err := fixedBuilder().BuildBatch(items, domain.BatchInfo{BatchID: "batch-1"})
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Batch.SampleCount)
	assert.Equal(t, 2, rep.Batch.CompletedCount)
	assert.Equal(t, domain.Tally{Total: 3, Viable: 2, NonViable: 1}, rep.Summary[domain.ClassWT])
	assert.Equal(t, domain.Tally{Total: 1, Viable: 1}, rep.Summary[domain.ClassT1C5E5])
	assert.False(t, rep.PerClass[domain.ClassT1C5C1].Available)
	assert.Len(t, rep.Items, 3)
}

func TestBuildBatchWithoutCompletedItems(t *testing.T) {
	_, err := fixedBuilder().BuildBatch([]domain.BatchReportItem{{Filename: "x", Error: "boom"}}, domain.BatchInfo{})
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
}
