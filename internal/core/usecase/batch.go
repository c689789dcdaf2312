package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/pollen-vision/internal/core/aggregate"
	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

const (
	defaultBatchParallelism = 4
	previewMaxSide          = 256
)

type SubmitBatchUseCase struct {
	repo           ports.BatchRepository
	storage        ports.ObjectStorage
	queue          ports.MessageQueue
	threshold      float64
	maxUploadBytes int64
}

func NewSubmitBatchUseCase(
	repo ports.BatchRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	opts AnalyzeOptions,
) *SubmitBatchUseCase {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &SubmitBatchUseCase{
		repo:           repo,
		storage:        storage,
		queue:          queue,
		threshold:      opts.Thresholds.Confidence,
		maxUploadBytes: opts.MaxUploadBytes,
	}
}

func (uc *SubmitBatchUseCase) Submit(
	ctx context.Context,
	identity domain.Identity,
	threshold *float64,
	files []ports.UploadFile,
) (*domain.BatchJob, error) {
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit batch", errors.New("no files"))
	}
	resolved, err := resolveThreshold(identity, threshold, uc.threshold)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	items := make([]domain.BatchItem, 0, len(files))
	for i, f := range files {
		data, err := readUpload(f.Body, uc.maxUploadBytes)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", f.Filename, err)
		}
		key := fmt.Sprintf("batches/%s/%03d_%s", id, i, sanitizeFilename(f.Filename))
		if err := uc.storage.Save(ctx, key, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("save to object storage: %w", err)
		}
		items = append(items, domain.BatchItem{Filename: f.Filename, SourceKey: key})
	}

	now := time.Now().UTC()
	job := &domain.BatchJob{
		ID:        id,
		UserID:    identity.UserID,
		Threshold: resolved,
		Status:    domain.BatchStatusUploaded,
		Items:     items,
		Total:     len(items),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create batch job: %w", err)
	}
	if err := uc.queue.PublishBatchSubmitted(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish batch event: %w", err)
	}
	return job, nil
}

func (uc *SubmitBatchUseCase) GetBatch(ctx context.Context, id string) (*domain.BatchJob, error) {
	job, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch batch by id: %w", err)
	}
	return job, nil
}

// ProgressFunc is called after each batch item finishes.
type ProgressFunc func(domain.BatchProgress)

type ProcessBatchUseCase struct {
	repo        ports.BatchRepository
	storage     ports.ObjectStorage
	history     ports.HistoryStore
	observer    ports.AnalysisObserver
	screen      screening
	parallelism int
	progress    ProgressFunc
	logger      *slog.Logger
	now         func() time.Time
}

func NewProcessBatchUseCase(
	repo ports.BatchRepository,
	storage ports.ObjectStorage,
	detector ports.Detector,
	codec ports.ImageCodec,
	aggregator *aggregate.Aggregator,
	history ports.HistoryStore,
	observer ports.AnalysisObserver,
	parallelism int,
	progress ProgressFunc,
	logger *slog.Logger,
) *ProcessBatchUseCase {
	if parallelism <= 0 {
		parallelism = defaultBatchParallelism
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if progress == nil {
		progress = func(domain.BatchProgress) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessBatchUseCase{
		repo:        repo,
		storage:     storage,
		history:     history,
		observer:    observer,
		screen:      screening{detector: detector, codec: codec, aggregator: aggregator},
		parallelism: parallelism,
		progress:    progress,
		logger:      logger,
		now:         time.Now,
	}
}

func (uc *ProcessBatchUseCase) ProcessByID(ctx context.Context, batchID string) error {
	if err := uc.markStatus(ctx, batchID, domain.BatchStatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	job, err := uc.repo.GetByID(ctx, batchID)
	if err != nil {
		err = fmt.Errorf("fetch batch by id: %w", err)
		if failErr := uc.markFailed(ctx, batchID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	pending, err := uc.screenItems(ctx, job)
	if err != nil {
		if failErr := uc.markFailed(context.WithoutCancel(ctx), batchID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	uc.recordHistory(ctx, job, pending)

	if err := uc.markStatus(ctx, batchID, domain.BatchStatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

// screenItems runs the pipeline for every unfinished item, at most uc.parallelism at a
// time, and returns the indexes of the items completed in this run.
func (uc *ProcessBatchUseCase) screenItems(ctx context.Context, job *domain.BatchJob) ([]int, error) {
	var (
		mu        sync.Mutex
		completed []int
		processed = 0
	)
	for _, item := range job.Items {
		if item.Done() {
			processed++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.parallelism)
	for i := range job.Items {
		if job.Items[i].Done() {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			item := uc.screenItem(gctx, job.Threshold, job.Items[i])
			if gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()
			job.Items[i] = item
			processed++
			if item.Error == "" {
				completed = append(completed, i)
			}
			if err := uc.repo.SaveProgress(gctx, job.ID, job.Items, processed); err != nil {
				uc.logger.Warn("batch progress not saved", "batch_id", job.ID, "error", err)
			}
			uc.progress(domain.BatchProgress{
				BatchID:   job.ID,
				Processed: processed,
				Total:     len(job.Items),
				Filename:  item.Filename,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("screen batch items: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("screen batch items: %w", err)
	}
	job.Processed = processed
	return completed, nil
}

// screenItem never returns an error: failures are recorded on the item.
func (uc *ProcessBatchUseCase) screenItem(ctx context.Context, threshold float64, item domain.BatchItem) domain.BatchItem {
	started := uc.now()
	out, err := uc.loadAndScreen(ctx, threshold, &item)
	if err != nil {
		uc.observer.ObserveAnalysis("failed", nil, 0, 0, uc.now().Sub(started))
		item.Error = err.Error()
		return item
	}
	uc.observer.ObserveAnalysis("ok", out.result.Counts, out.result.DefaultedCount(), len(out.result.Rejected), uc.now().Sub(started))
	item.Counts = out.result.Counts
	item.ProcessedAt = domain.FormatTimestamp(uc.now())
	return item
}

func (uc *ProcessBatchUseCase) loadAndScreen(ctx context.Context, threshold float64, item *domain.BatchItem) (*screened, error) {
	data, err := uc.readSource(ctx, item.SourceKey)
	if err != nil {
		return nil, err
	}
	out, err := uc.screen.run(ctx, data, item.Filename, threshold)
	if err != nil {
		return nil, err
	}

	item.AnnotatedKey = fmt.Sprintf("%s.annotated.png", item.SourceKey)
	if err := uc.storage.Save(ctx, item.AnnotatedKey, bytes.NewReader(out.png)); err != nil {
		return nil, fmt.Errorf("save annotated image: %w", err)
	}
	preview, err := uc.screen.codec.EncodePNG(uc.screen.codec.Thumbnail(out.result.Annotated, previewMaxSide))
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	item.PreviewKey = fmt.Sprintf("%s.preview.png", item.SourceKey)
	if err := uc.storage.Save(ctx, item.PreviewKey, bytes.NewReader(preview)); err != nil {
		return nil, fmt.Errorf("save preview: %w", err)
	}
	return out, nil
}

func (uc *ProcessBatchUseCase) readSource(ctx context.Context, key string) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open source image: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read source image: %w", err)
	}
	return data, nil
}

// recordHistory appends completed items in input order, one at a time.
func (uc *ProcessBatchUseCase) recordHistory(ctx context.Context, job *domain.BatchJob, completed []int) {
	ordered := make([]bool, len(job.Items))
	for _, i := range completed {
		ordered[i] = true
	}
	for i, ok := range ordered {
		if !ok {
			continue
		}
		item := job.Items[i]
		at, err := domain.ParseTimestamp(item.ProcessedAt)
		if err != nil {
			at = uc.now()
		}
		appendHistory(ctx, uc.history, uc.logger, domain.NewHistoryRecord(at, item.Filename, item.Counts))
	}
}

func (uc *ProcessBatchUseCase) markStatus(ctx context.Context, batchID string, status domain.BatchStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, batchID, status, errMessage)
}

func (uc *ProcessBatchUseCase) markFailed(ctx context.Context, batchID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, batchID, domain.BatchStatusFailed, processErr.Error())
}
