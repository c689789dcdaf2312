package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
	"github.com/kirillkom/pollen-vision/internal/core/report"
)

type ReportUseCase struct {
	analyses ports.AnalysisRepository
	batches  ports.BatchRepository
	builder  *report.Builder
	exporter ports.ReportExporter
}

func NewReportUseCase(
	analyses ports.AnalysisRepository,
	batches ports.BatchRepository,
	builder *report.Builder,
	exporter ports.ReportExporter,
) *ReportUseCase {
	return &ReportUseCase{analyses: analyses, batches: batches, builder: builder, exporter: exporter}
}

func (uc *ReportUseCase) AnalysisReport(ctx context.Context, analysisID string) (domain.ReportDocument, error) {
	analysis, err := uc.analyses.GetByID(ctx, analysisID)
	if err != nil {
		return domain.ReportDocument{}, fmt.Errorf("fetch analysis by id: %w", err)
	}
	doc, err := uc.builder.Build(analysis.Counts, domain.SampleInfo{
		AnalysisID:          analysis.ID,
		Filename:            analysis.Filename,
		Width:               analysis.Width,
		Height:              analysis.Height,
		Format:              analysis.MimeType,
		ConfidenceThreshold: analysis.Threshold,
	})
	if err != nil {
		return domain.ReportDocument{}, fmt.Errorf("build report: %w", err)
	}
	return doc, nil
}

func (uc *ReportUseCase) AnalysisWorkbook(ctx context.Context, analysisID string) ([]byte, error) {
	doc, err := uc.AnalysisReport(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	data, err := uc.exporter.ReportWorkbook(doc)
	if err != nil {
		return nil, fmt.Errorf("render report workbook: %w", err)
	}
	return data, nil
}

func (uc *ReportUseCase) BatchReport(ctx context.Context, batchID string) (domain.BatchReport, error) {
	job, err := uc.batches.GetByID(ctx, batchID)
	if err != nil {
		return domain.BatchReport{}, fmt.Errorf("fetch batch by id: %w", err)
	}
	items := make([]domain.BatchReportItem, 0, len(job.Items))
	for _, item := range job.Items {
		if !item.Done() {
			continue
		}
		items = append(items, domain.BatchReportItem{
			Filename:    item.Filename,
			Counts:      item.Counts,
			ProcessedAt: item.ProcessedAt,
			Error:       item.Error,
		})
	}
	rep, err := uc.builder.BuildBatch(items, domain.BatchInfo{BatchID: job.ID, SampleCount: len(job.Items)})
	if err != nil {
		return domain.BatchReport{}, fmt.Errorf("build batch report: %w", err)
	}
	return rep, nil
}

func (uc *ReportUseCase) BatchWorkbook(ctx context.Context, batchID string) ([]byte, error) {
	rep, err := uc.BatchReport(ctx, batchID)
	if err != nil {
		return nil, err
	}
	data, err := uc.exporter.BatchWorkbook(rep)
	if err != nil {
		return nil, fmt.Errorf("render batch workbook: %w", err)
	}
	return data, nil
}
