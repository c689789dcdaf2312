package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kirillkom/pollen-vision/internal/config"
	"github.com/kirillkom/pollen-vision/internal/core/aggregate"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
	"github.com/kirillkom/pollen-vision/internal/core/report"
	"github.com/kirillkom/pollen-vision/internal/core/trend"
	"github.com/kirillkom/pollen-vision/internal/core/usecase"
	"github.com/kirillkom/pollen-vision/internal/core/viability"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/detector/httpmodel"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/history/cache"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/history/jsonfile"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/imaging"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/repository/relational"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/resilience"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/storage/localfs"
)

// Telemetry lets each binary plug its own metrics into the shared wiring.
type Telemetry struct {
	Observer      ports.AnalysisObserver
	Hooks         resilience.Hooks
	Progress      usecase.ProgressFunc
	OnDeliveryLag func(time.Duration)
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue   ports.MessageQueue
	History ports.HistoryStore

	AnalyzeUC  *usecase.AnalyzeImageUseCase
	SubmitUC   *usecase.SubmitBatchUseCase
	ProcessUC  *usecase.ProcessBatchUseCase
	HistoryUC  *usecase.HistoryQueryUseCase
	ReportUC   *usecase.ReportUseCase
	AccountUC  *usecase.AccountUseCase
	CaseUC     *usecase.CaseBoardUseCase
	BackupUC   *usecase.HistoryBackupUseCase
	Aggregator *aggregate.Aggregator

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, telemetry Telemetry) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	rdb, err := relational.Open(cfg.RelationalDriver, cfg.RelationalDSN)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open relational store: %w", err)
	}
	if err := relational.EnsureSchema(ctx, rdb); err != nil {
		closeAll(db, rdb)
		return nil, fmt.Errorf("ensure relational schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		closeAll(db, rdb)
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	history, err := newHistoryStore(cfg, db, logger)
	if err != nil {
		closeAll(db, rdb)
		return nil, fmt.Errorf("init history store: %w", err)
	}

	executor := resilience.NewExecutor(cfg.DetectorResilience, telemetry.Hooks, logger)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		OnDeliveryLag:      telemetry.OnDeliveryLag,
		Logger:             logger,
	})
	if err != nil {
		closeAll(db, rdb)
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	aggregator, err := newAggregator(cfg, logger)
	if err != nil {
		queue.Close()
		closeAll(db, rdb)
		return nil, err
	}

	detector := httpmodel.New(cfg.DetectorURL, cfg.DetectorTimeout, executor)
	codec := imaging.New(imaging.Limits{MaxWidth: cfg.MaxImageWidth, MaxHeight: cfg.MaxImageHeight})
	exporter := xlsx.New()

	analysisRepo := postgres.NewAnalysisRepository(db)
	batchRepo := postgres.NewBatchRepository(db)
	opts := usecase.AnalyzeOptions{Thresholds: cfg.Thresholds, MaxUploadBytes: cfg.MaxUploadBytes}

	accountUC := usecase.NewAccountUseCase(relational.NewUserStore(rdb), cfg.PasswordHashCost, logger)
	if cfg.AdminUsername != "" {
		if err := accountUC.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			queue.Close()
			closeAll(db, rdb)
			return nil, fmt.Errorf("seed admin account: %w", err)
		}
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Queue:   queue,
		History: history,

		AnalyzeUC: usecase.NewAnalyzeImageUseCase(analysisRepo, storage, detector, codec, aggregator, history, telemetry.Observer, opts, logger),
		SubmitUC:  usecase.NewSubmitBatchUseCase(batchRepo, storage, queue, opts),
		ProcessUC: usecase.NewProcessBatchUseCase(
			batchRepo, storage, detector, codec, aggregator, history, telemetry.Observer,
			cfg.BatchParallelism, telemetry.Progress, logger,
		),
		HistoryUC:  usecase.NewHistoryQueryUseCase(history, trend.NewAnalyzer(cfg.Thresholds), exporter, telemetry.Observer),
		ReportUC:   usecase.NewReportUseCase(analysisRepo, batchRepo, report.NewBuilder(cfg.Thresholds), exporter),
		AccountUC:  accountUC,
		CaseUC:     usecase.NewCaseBoardUseCase(relational.NewCaseStore(rdb)),
		BackupUC:   usecase.NewHistoryBackupUseCase(history, storage),
		Aggregator: aggregator,

		closeFn: func() {
			queue.Close()
			closeAll(db, rdb)
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newHistoryStore(cfg config.Config, db *sql.DB, logger *slog.Logger) (ports.HistoryStore, error) {
	var store ports.HistoryStore
	switch cfg.HistoryBackend {
	case config.HistoryBackendPostgres:
		store = postgres.NewHistoryRepository(db, logger)
	default:
		fileStore, err := jsonfile.New(cfg.HistoryPath, logger)
		if err != nil {
			return nil, err
		}
		store = fileStore
	}
	if cfg.TrendCacheTTL > 0 {
		store = cache.New(store, cfg.TrendCacheTTL)
	}
	return store, nil
}

// newAggregator builds the classifier and the labeler. A missing label font
// falls back to the built-in face.
func newAggregator(cfg config.Config, logger *slog.Logger) (*aggregate.Aggregator, error) {
	classifier, err := viability.New(cfg.ClassifierPolicy, cfg.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("init viability classifier: %w", err)
	}

	labeler := aggregate.NewLabeler(cfg.LabelLocale)
	if cfg.LabelFontPath != "" {
		data, err := os.ReadFile(cfg.LabelFontPath)
		if err != nil {
			logger.Warn("label font unreadable, using built-in face", "path", cfg.LabelFontPath, "error", err)
		} else if err := labeler.WithFont(data, cfg.LabelFontSize); err != nil {
			logger.Warn("label font invalid, using built-in face", "path", cfg.LabelFontPath, "error", err)
		}
	}
	return aggregate.New(classifier, labeler), nil
}

func closeAll(db *sql.DB, rdb *sqlx.DB) {
	_ = rdb.Close()
	_ = db.Close()
}
