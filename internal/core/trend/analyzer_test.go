package trend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

func record(ts string, wt, t1, e5 domain.Tally) domain.HistoryRecord {
	return domain.HistoryRecord{
		Timestamp: ts,
		Filename:  ts + ".png",
		Data: domain.ClassCounts{
			domain.ClassWT:     wt,
			domain.ClassT1C5C1: t1,
			domain.ClassT1C5E5: e5,
		},
	}
}

func tally(viable, nonViable int) domain.Tally {
	return domain.Tally{Total: viable + nonViable, Viable: viable, NonViable: nonViable}
}

func TestViabilitySeriesKeepsLengthAndOrder(t *testing.T) {
	records := []domain.HistoryRecord{
		record("2024-05-01 10:00:00", tally(3, 1), tally(0, 0), tally(1, 1)),
		record("2024-05-02 10:00:00", tally(1, 1), tally(2, 0), tally(0, 0)),
		record("2024-05-03 10:00:00", tally(0, 4), tally(0, 0), tally(0, 0)),
	}

	series := ViabilitySeries(records)

	require.Len(t, series, 3)
	for name, points := range series {
		require.Len(t, points, len(records), name)
		for i, p := range points {
			assert.Equal(t, records[i].Timestamp, p.Timestamp)
		}
	}
	assert.Equal(t, []float64{75, 50, 0}, rates(series[domain.ClassWT]))
	assert.Equal(t, []float64{0, 100, 0}, rates(series[domain.ClassT1C5C1]))
	assert.Equal(t, []float64{50, 0, 0}, rates(series[domain.ClassT1C5E5]))
}

func TestViabilitySeriesAllZeroCounts(t *testing.T) {
	records := []domain.HistoryRecord{
		{Timestamp: "2024-05-01 10:00:00", Data: domain.NewClassCounts()},
		{Timestamp: "2024-05-02 10:00:00", Data: domain.ClassCounts{}},
	}

	for name, points := range ViabilitySeries(records) {
		assert.Equal(t, []float64{0, 0}, rates(points), name)
	}
}

func TestViabilitySeriesEmptyHistory(t *testing.T) {
	series := ViabilitySeries(nil)
	assert.Len(t, series, 3)
	assert.Empty(t, series[domain.ClassWT])
}

func TestCompareGroupsExperimentalIsMeanOfClassesWithData(t *testing.T) {
	records := []domain.HistoryRecord{
		record("2024-05-01 10:00:00", tally(1, 1), tally(4, 0), tally(0, 4)),
		record("2024-05-02 10:00:00", tally(2, 0), tally(3, 1), tally(0, 0)),
		record("2024-05-03 10:00:00", tally(0, 2), tally(0, 0), tally(0, 0)),
	}

	cmp, err := NewAnalyzer(domain.DefaultThresholds()).CompareGroups(records, domain.ClassWT)
	require.NoError(t, err)

	assert.Equal(t, []float64{50, 100, 0}, cmp.ControlSeries)
	assert.Equal(t, []float64{50, 75, 0}, cmp.ExperimentalSeries)
	assert.Len(t, cmp.Timestamps, 3)
	assert.InDelta(t, 50, cmp.ControlSummary.Mean, 1e-9)
}

func TestCompareGroupsOnlyControlData(t *testing.T) {
	records := []domain.HistoryRecord{
		record("2024-05-01 10:00:00", tally(3, 1), tally(0, 0), tally(0, 0)),
		record("2024-05-02 10:00:00", tally(1, 1), tally(0, 0), tally(0, 0)),
	}

	cmp, err := NewAnalyzer(domain.DefaultThresholds()).CompareGroups(records, domain.ClassWT)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0}, cmp.ExperimentalSeries)
	assert.True(t, cmp.Significance.Available)
}

func TestCompareGroupsUnknownControl(t *testing.T) {
	_, err := NewAnalyzer(domain.DefaultThresholds()).CompareGroups(nil, "XX")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestSignificanceMatchesPooledTTest(t *testing.T) {
	got := Significance([]float64{1, 2, 3, 4, 5}, []float64{2, 3, 4, 5, 6}, 0.05)

	require.True(t, got.Available)
	assert.InDelta(t, -1.0, got.TStatistic, 1e-9)
	assert.InDelta(t, 0.34659, got.PValue, 1e-4)
	assert.False(t, got.Significant)
}

func TestSignificanceDetectsClearDifference(t *testing.T) {
	got := Significance([]float64{90, 92, 91, 89, 93}, []float64{40, 42, 41, 39, 43}, 0.05)

	require.True(t, got.Available)
	assert.True(t, got.Significant)
	assert.Less(t, got.PValue, 0.001)
}

func TestSignificanceUnavailable(t *testing.T) {
	tests := []struct {
		name         string
		control, exp []float64
		reason       string
	}{
		{name: "single control sample", control: []float64{1}, exp: []float64{1, 2}, reason: reasonTooFewSamples},
		{name: "empty experimental", control: []float64{1, 2}, exp: nil, reason: reasonTooFewSamples},
		{name: "constant groups", control: []float64{0, 0}, exp: []float64{0, 0, 0}, reason: reasonZeroVariance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Significance(tt.control, tt.exp, 0.05)
			assert.False(t, got.Available)
			assert.False(t, got.Significant)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestSummarizeUsesPopulationStd(t *testing.T) {
	s := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5, s.Mean, 1e-9)
	assert.InDelta(t, 2, s.StdDev, 1e-9)

	assert.Equal(t, domain.SeriesSummary{}, Summarize(nil))
}

func rates(points []domain.TrendPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Rate
	}
	return out
}
