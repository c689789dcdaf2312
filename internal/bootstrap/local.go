package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/kirillkom/pollen-vision/internal/config"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
	"github.com/kirillkom/pollen-vision/internal/core/usecase"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/detector/httpmodel"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/imaging"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/resilience"
)

// OpenHistory opens only the configured history store, for tools that do not
// need the rest of the service. The returned func releases it.
func OpenHistory(cfg config.Config, logger *slog.Logger) (ports.HistoryStore, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryBackend != config.HistoryBackendPostgres {
		store, err := newHistoryStore(cfg, nil, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	store, err := newHistoryStore(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close() }, nil
}

// NewScreener wires the detector and drawing pipeline for local screening.
func NewScreener(cfg config.Config, history ports.HistoryStore, logger *slog.Logger) (*usecase.ScreenImageUseCase, error) {
	if logger == nil {
		logger = slog.Default()
	}
	aggregator, err := newAggregator(cfg, logger)
	if err != nil {
		return nil, err
	}
	executor := resilience.NewExecutor(cfg.DetectorResilience, resilience.Hooks{}, logger)
	detector := httpmodel.New(cfg.DetectorURL, cfg.DetectorTimeout, executor)
	codec := imaging.New(imaging.Limits{MaxWidth: cfg.MaxImageWidth, MaxHeight: cfg.MaxImageHeight})
	return usecase.NewScreenImageUseCase(detector, codec, aggregator, history, cfg.Thresholds.Confidence, logger), nil
}
