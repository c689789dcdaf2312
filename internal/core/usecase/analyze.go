package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pollen-vision/internal/core/aggregate"
	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

type AnalyzeOptions struct {
	Thresholds     domain.Thresholds
	MaxUploadBytes int64
}

type AnalyzeImageUseCase struct {
	repo     ports.AnalysisRepository
	storage  ports.ObjectStorage
	history  ports.HistoryStore
	observer ports.AnalysisObserver
	screen   screening
	opts     AnalyzeOptions
	logger   *slog.Logger
	now      func() time.Time
}

func NewAnalyzeImageUseCase(
	repo ports.AnalysisRepository,
	storage ports.ObjectStorage,
	detector ports.Detector,
	codec ports.ImageCodec,
	aggregator *aggregate.Aggregator,
	history ports.HistoryStore,
	observer ports.AnalysisObserver,
	opts AnalyzeOptions,
	logger *slog.Logger,
) *AnalyzeImageUseCase {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeImageUseCase{
		repo:     repo,
		storage:  storage,
		history:  history,
		observer: observer,
		screen:   screening{detector: detector, codec: codec, aggregator: aggregator},
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

func (uc *AnalyzeImageUseCase) Analyze(ctx context.Context, req ports.AnalyzeRequest) (*domain.AnalysisResult, error) {
	started := uc.now()
	result, err := uc.analyze(ctx, req)
	if err != nil {
		uc.observer.ObserveAnalysis("failed", nil, 0, 0, uc.now().Sub(started))
		return nil, err
	}
	uc.observer.ObserveAnalysis("ok", result.Analysis.Counts, result.Analysis.DefaultedCount, result.Analysis.RejectedCount, uc.now().Sub(started))
	return result, nil
}

func (uc *AnalyzeImageUseCase) analyze(ctx context.Context, req ports.AnalyzeRequest) (*domain.AnalysisResult, error) {
	threshold, err := resolveThreshold(req.Identity, req.Threshold, uc.opts.Thresholds.Confidence)
	if err != nil {
		return nil, err
	}
	data, err := readUpload(req.Body, uc.opts.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	out, err := uc.screen.run(ctx, data, req.Filename, threshold)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	sourceKey := fmt.Sprintf("analyses/%s/%s", id, sanitizeFilename(req.Filename))
	annotatedKey := fmt.Sprintf("analyses/%s/annotated.png", id)
	if err := uc.storage.Save(ctx, sourceKey, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("save source image: %w", err)
	}
	if err := uc.storage.Save(ctx, annotatedKey, bytes.NewReader(out.png)); err != nil {
		return nil, fmt.Errorf("save annotated image: %w", err)
	}

	bounds := out.source.Bounds()
	now := uc.now()
	analysis := domain.Analysis{
		ID:             id,
		UserID:         req.Identity.UserID,
		Filename:       req.Filename,
		MimeType:       req.MimeType,
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		Threshold:      threshold,
		Counts:         out.result.Counts,
		DetectionCount: len(out.result.Outcomes) + len(out.result.Rejected) + out.result.Filtered,
		FilteredCount:  out.result.Filtered,
		RejectedCount:  len(out.result.Rejected),
		DefaultedCount: out.result.DefaultedCount(),
		SourceKey:      sourceKey,
		AnnotatedKey:   annotatedKey,
		CreatedAt:      now.UTC(),
	}
	if analysis.MimeType == "" {
		analysis.MimeType = "image/" + out.format
	}
	if err := uc.repo.Create(ctx, &analysis); err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}

	saved := appendHistory(ctx, uc.history, uc.logger, domain.NewHistoryRecord(now, req.Filename, out.result.Counts))

	return &domain.AnalysisResult{
		Analysis:     analysis,
		Outcomes:     out.result.Outcomes,
		Rejected:     out.result.Rejected,
		HistorySaved: saved,
		Mode:         analysisMode(req.Identity),
	}, nil
}

func (uc *AnalyzeImageUseCase) GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error) {
	analysis, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch analysis by id: %w", err)
	}
	return analysis, nil
}

func (uc *AnalyzeImageUseCase) OpenAnnotated(ctx context.Context, id string) (io.ReadCloser, error) {
	analysis, err := uc.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	rc, err := uc.storage.Open(ctx, analysis.AnnotatedKey)
	if err != nil {
		return nil, fmt.Errorf("open annotated image: %w", err)
	}
	return rc, nil
}
