package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
	"github.com/kirillkom/pollen-vision/internal/core/trend"
)

const DefaultRecentHistory = 10

type HistoryQueryUseCase struct {
	store    ports.HistoryStore
	analyzer *trend.Analyzer
	exporter ports.ReportExporter
	observer ports.AnalysisObserver
}

func NewHistoryQueryUseCase(
	store ports.HistoryStore,
	analyzer *trend.Analyzer,
	exporter ports.ReportExporter,
	observer ports.AnalysisObserver,
) *HistoryQueryUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	return &HistoryQueryUseCase{store: store, analyzer: analyzer, exporter: exporter, observer: observer}
}

// Recent returns the newest limit records, oldest first.
func (uc *HistoryQueryUseCase) Recent(ctx context.Context, limit int) domain.HistoryLoad {
	if limit <= 0 {
		limit = DefaultRecentHistory
	}
	load := uc.load(ctx, domain.AllHistory())
	if len(load.Records) > limit {
		load.Records = load.Records[len(load.Records)-limit:]
	}
	return load
}

func (uc *HistoryQueryUseCase) Window(ctx context.Context, window domain.Window) domain.HistoryLoad {
	return uc.load(ctx, window)
}

func (uc *HistoryQueryUseCase) Series(ctx context.Context, window domain.Window) (domain.TrendSeries, domain.HistorySummary) {
	load := uc.load(ctx, window)
	return trend.ViabilitySeries(load.Records), domain.SummarizeHistory(load)
}

func (uc *HistoryQueryUseCase) Compare(ctx context.Context, window domain.Window, control domain.ClassName) (*domain.GroupComparison, error) {
	load := uc.load(ctx, window)
	cmp, err := uc.analyzer.CompareGroups(load.Records, control)
	if err != nil {
		return nil, fmt.Errorf("compare groups: %w", err)
	}
	return cmp, nil
}

func (uc *HistoryQueryUseCase) ExportWorkbook(ctx context.Context) ([]byte, error) {
	load := uc.load(ctx, domain.AllHistory())
	if load.Degraded() {
		return nil, fmt.Errorf("export history: %w", load.Err)
	}
	data, err := uc.exporter.HistoryWorkbook(load.Records)
	if err != nil {
		return nil, fmt.Errorf("render history workbook: %w", err)
	}
	return data, nil
}

func (uc *HistoryQueryUseCase) load(ctx context.Context, window domain.Window) domain.HistoryLoad {
	var load domain.HistoryLoad
	if window.IsAll() {
		load = uc.store.LoadAll(ctx)
	} else {
		load = uc.store.LoadWindow(ctx, window)
	}
	uc.observer.ObserveHistoryLoad(load.Degraded())
	return load
}
