package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/aggregate"
	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

// ScreenResult is a local screening that was not persisted as an analysis.
type ScreenResult struct {
	Filename     string
	Format       string
	Width        int
	Height       int
	Threshold    float64
	Counts       domain.ClassCounts
	Outcomes     []domain.DetectionOutcome
	Rejected     []domain.RejectedDetection
	Filtered     int
	Defaulted    int
	AnnotatedPNG []byte
	HistorySaved bool
}

// ScreenImageUseCase runs the pipeline on local files for the command line tool.
// Only the history log is written; images stay wherever the caller puts them.
type ScreenImageUseCase struct {
	screen    screening
	history   ports.HistoryStore
	threshold float64
	logger    *slog.Logger
	now       func() time.Time
}

func NewScreenImageUseCase(
	detector ports.Detector,
	codec ports.ImageCodec,
	aggregator *aggregate.Aggregator,
	history ports.HistoryStore,
	threshold float64,
	logger *slog.Logger,
) *ScreenImageUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenImageUseCase{
		screen:    screening{detector: detector, codec: codec, aggregator: aggregator},
		history:   history,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Screen analyses data. A nil history store or record=false skips the history append.
func (uc *ScreenImageUseCase) Screen(ctx context.Context, filename string, data []byte, threshold *float64, record bool) (*ScreenResult, error) {
	th, err := resolveThreshold(domain.Identity{Role: domain.RoleProfessional}, threshold, uc.threshold)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "screen image", errors.New("empty file"))
	}

	out, err := uc.screen.run(ctx, data, filename, th)
	if err != nil {
		return nil, err
	}

	res := &ScreenResult{
		Filename:     filename,
		Format:       out.format,
		Width:        out.source.Bounds().Dx(),
		Height:       out.source.Bounds().Dy(),
		Threshold:    th,
		Counts:       out.result.Counts,
		Outcomes:     out.result.Outcomes,
		Rejected:     out.result.Rejected,
		Filtered:     out.result.Filtered,
		Defaulted:    out.result.DefaultedCount(),
		AnnotatedPNG: out.png,
	}
	if record && uc.history != nil {
		res.HistorySaved = appendHistory(ctx, uc.history, uc.logger, domain.NewHistoryRecord(uc.now(), filename, out.result.Counts))
	}
	return res, nil
}
