package usecase

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

type batchRepoFake struct {
	mu          sync.Mutex
	job         *domain.BatchJob
	getErr      error
	createErr   error
	statusCalls []domain.BatchStatus
	progress    []int
}

func (f *batchRepoFake) Create(_ context.Context, job *domain.BatchJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyJob := *job
	f.job = &copyJob
	return nil
}

func (f *batchRepoFake) GetByID(context.Context, string) (*domain.BatchJob, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.job == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "get batch", errors.New("missing"))
	}
	copyJob := *f.job
	copyJob.Items = append([]domain.BatchItem(nil), f.job.Items...)
	return &copyJob, nil
}

func (f *batchRepoFake) UpdateStatus(_ context.Context, _ string, status domain.BatchStatus, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, status)
	return nil
}

func (f *batchRepoFake) SaveProgress(_ context.Context, _ string, items []domain.BatchItem, processed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, processed)
	if f.job != nil {
		f.job.Items = append([]domain.BatchItem(nil), items...)
		f.job.Processed = processed
	}
	return nil
}

type queueFake struct {
	batchID string
	err     error
}

func (f *queueFake) PublishBatchSubmitted(_ context.Context, batchID string) error {
	if f.err != nil {
		return f.err
	}
	f.batchID = batchID
	return nil
}

func (f *queueFake) SubscribeBatchSubmitted(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func submitFiles(names ...string) []ports.UploadFile {
	files := make([]ports.UploadFile, 0, len(names))
	for _, name := range names {
		files = append(files, ports.UploadFile{Filename: name, Body: bytes.NewReader(grainPNG())})
	}
	return files
}

func TestSubmitBatchSuccess(t *testing.T) {
	repo := &batchRepoFake{}
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewSubmitBatchUseCase(repo, storage, queue, AnalyzeOptions{Thresholds: domain.DefaultThresholds()})

	job, err := uc.Submit(context.Background(), userIdentity(domain.RoleProfessional), nil, submitFiles("a.png", "b.png"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.Status != domain.BatchStatusUploaded || job.Total != 2 || job.Threshold != 0.5 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if queue.batchID != job.ID {
		t.Fatalf("expected published id %s, got %s", job.ID, queue.batchID)
	}
	if got := storage.keys("batches/" + job.ID); len(got) != 2 {
		t.Fatalf("expected 2 stored sources, got %v", got)
	}
}

func TestSubmitBatchErrors(t *testing.T) {
	uc := NewSubmitBatchUseCase(&batchRepoFake{}, newStorageFake(), &queueFake{}, AnalyzeOptions{})
	if _, err := uc.Submit(context.Background(), userIdentity(domain.RoleProfessional), nil, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input on empty batch, got %v", err)
	}

	failing := NewSubmitBatchUseCase(&batchRepoFake{}, newStorageFake(), &queueFake{err: errors.New("nats down")}, AnalyzeOptions{})
	if _, err := failing.Submit(context.Background(), userIdentity(domain.RoleProfessional), nil, submitFiles("a.png")); err == nil {
		t.Fatalf("expected publish error")
	}
}

type batchFixture struct {
	repo     *batchRepoFake
	storage  *storageFake
	detector *detectorFake
	history  *historyFake
	progress []domain.BatchProgress
	uc       *ProcessBatchUseCase
}

func newBatchFixture(t *testing.T, names ...string) *batchFixture {
	t.Helper()
	f := &batchFixture{
		repo:     &batchRepoFake{},
		storage:  newStorageFake(),
		detector: &detectorFake{detections: grainDetections(), failFor: map[string]error{}},
		history:  &historyFake{},
	}
	submit := NewSubmitBatchUseCase(f.repo, f.storage, &queueFake{}, AnalyzeOptions{Thresholds: domain.DefaultThresholds()})
	if _, err := submit.Submit(context.Background(), userIdentity(domain.RoleProfessional), nil, submitFiles(names...)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	var mu sync.Mutex
	f.uc = NewProcessBatchUseCase(
		f.repo, f.storage, f.detector, pngCodec{}, testAggregator(), f.history, nil, 2,
		func(p domain.BatchProgress) {
			mu.Lock()
			defer mu.Unlock()
			f.progress = append(f.progress, p)
		},
		nil,
	)
	return f
}

func TestProcessBatchSuccess(t *testing.T) {
	f := newBatchFixture(t, "a.png", "b.png", "c.png")

	if err := f.uc.ProcessByID(context.Background(), f.repo.job.ID); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(f.repo.statusCalls) != 2 || f.repo.statusCalls[0] != domain.BatchStatusProcessing || f.repo.statusCalls[1] != domain.BatchStatusReady {
		t.Fatalf("unexpected status sequence: %v", f.repo.statusCalls)
	}
	if len(f.progress) != 3 || f.progress[2].Processed != 3 || f.progress[2].Total != 3 {
		t.Fatalf("unexpected progress: %+v", f.progress)
	}
	if len(f.history.records) != 3 {
		t.Fatalf("expected 3 history records, got %d", len(f.history.records))
	}
	for i, want := range []string{"a.png", "b.png", "c.png"} {
		if f.history.records[i].Filename != want {
			t.Fatalf("history must follow input order: %d=%s", i, f.history.records[i].Filename)
		}
	}
	for _, item := range f.repo.job.Items {
		if item.Counts[domain.ClassWT].Viable != 1 || item.AnnotatedKey == "" || item.PreviewKey == "" {
			t.Fatalf("unexpected item: %+v", item)
		}
	}
}

func TestProcessBatchRecordsItemErrors(t *testing.T) {
	f := newBatchFixture(t, "a.png", "bad.png")
	f.detector.failFor["bad.png"] = errors.New("model crashed")

	if err := f.uc.ProcessByID(context.Background(), f.repo.job.ID); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if got := f.repo.statusCalls[len(f.repo.statusCalls)-1]; got != domain.BatchStatusReady {
		t.Fatalf("item errors must not fail the batch, got %s", got)
	}
	if f.repo.job.Items[1].Error == "" {
		t.Fatalf("expected error recorded on failed item")
	}
	if len(f.history.records) != 1 || f.history.records[0].Filename != "a.png" {
		t.Fatalf("only completed items reach history: %+v", f.history.records)
	}
}

func TestProcessBatchSkipsFinishedItems(t *testing.T) {
	f := newBatchFixture(t, "a.png", "b.png")
	f.repo.job.Items[0].ProcessedAt = "2024-05-01 10:00:00"

	if err := f.uc.ProcessByID(context.Background(), f.repo.job.ID); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(f.detector.calls) != 1 || f.detector.calls[0] != "b.png" {
		t.Fatalf("expected only b.png to be screened, got %v", f.detector.calls)
	}
	if f.progress[0].Processed != 2 {
		t.Fatalf("progress must count finished items, got %+v", f.progress[0])
	}
}

func TestProcessBatchCancelled(t *testing.T) {
	f := newBatchFixture(t, "a.png", "b.png")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.uc.ProcessByID(ctx, f.repo.job.ID); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := f.repo.statusCalls[len(f.repo.statusCalls)-1]; got != domain.BatchStatusFailed {
		t.Fatalf("expected failed status, got %s", got)
	}
	if len(f.detector.calls) != 0 || len(f.history.records) != 0 {
		t.Fatalf("cancelled batch must not consume items")
	}
}

func TestProcessBatchMissingJob(t *testing.T) {
	repo := &batchRepoFake{}
	uc := NewProcessBatchUseCase(repo, newStorageFake(), &detectorFake{}, pngCodec{}, testAggregator(), &historyFake{}, nil, 1, nil, nil)

	if err := uc.ProcessByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1] != domain.BatchStatusFailed {
		t.Fatalf("expected processing + failed, got %v", repo.statusCalls)
	}
}
