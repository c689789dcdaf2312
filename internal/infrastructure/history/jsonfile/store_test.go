package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "data", "analysis_data.json"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store
}

func TestStoreMissingFileIsEmpty(t *testing.T) {
	store := newTestStore(t)

	load := store.LoadAll(context.Background())
	if load.Degraded() {
		t.Fatalf("unexpected degraded load: %v", load.Err)
	}
	if len(load.Records) != 0 {
		t.Fatalf("expected empty history, got %d", len(load.Records))
	}
}

func TestStoreAppendRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	counts := domain.NewClassCounts()
	counts.Record(domain.ClassWT, true)
	counts.Record(domain.ClassWT, false)
	first := domain.NewHistoryRecord(time.Now(), "a.png", counts)
	second := domain.NewHistoryRecord(time.Now(), "b.png", domain.NewClassCounts())

	if err := store.Append(ctx, first); err != nil {
		t.Fatalf("Append(first) error = %v", err)
	}
	if err := store.Append(ctx, second); err != nil {
		t.Fatalf("Append(second) error = %v", err)
	}

	load := store.LoadAll(ctx)
	if len(load.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(load.Records))
	}
	if load.Records[0].Filename != "a.png" || load.Records[1].Filename != "b.png" {
		t.Fatalf("unexpected order: %+v", load.Records)
	}
	if load.Records[0].Data[domain.ClassWT] != (domain.Tally{Total: 2, Viable: 1, NonViable: 1}) {
		t.Fatalf("unexpected tally: %+v", load.Records[0].Data[domain.ClassWT])
	}
}

func TestStoreCorruptFileIsDegradedAndPreserved(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	load := store.LoadAll(context.Background())
	if !load.Degraded() || !domain.IsKind(load.Err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected degraded load, got %+v", load)
	}

	err := store.Append(context.Background(), domain.NewHistoryRecord(time.Now(), "a.png", domain.NewClassCounts()))
	if !domain.IsKind(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable on append, got %v", err)
	}
	raw, _ := os.ReadFile(store.path)
	if string(raw) != "{not json" {
		t.Fatalf("corrupt file was overwritten: %q", raw)
	}
}

func TestStoreLoadWindow(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2024, 5, 31, 12, 0, 0, 0, time.Local)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for _, at := range []time.Time{
		now.Add(-40 * 24 * time.Hour),
		now.Add(-8 * 24 * time.Hour),
		now.Add(-7*24*time.Hour - 12*time.Hour),
		now.Add(-7 * 24 * time.Hour),
		now.Add(-time.Hour),
	} {
		if err := store.Append(ctx, domain.NewHistoryRecord(at, "x.png", domain.NewClassCounts())); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := store.Append(ctx, domain.HistoryRecord{Timestamp: "yesterday", Filename: "bad.png"}); err != nil {
		t.Fatalf("Append(bad) error = %v", err)
	}

	week := store.LoadWindow(ctx, domain.LastDays(7))
	if len(week.Records) != 3 {
		t.Fatalf("expected 3 records in week (whole days, inclusive), got %d", len(week.Records))
	}

	all := store.LoadWindow(ctx, domain.AllHistory())
	if len(all.Records) != 6 {
		t.Fatalf("expected all 6 records, got %d", len(all.Records))
	}
}

func TestStoreConcurrentAppends(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append(ctx, domain.NewHistoryRecord(time.Now(), "c.png", domain.NewClassCounts()))
		}()
	}
	wg.Wait()

	if got := len(store.LoadAll(ctx).Records); got != 20 {
		t.Fatalf("expected 20 records, got %d", got)
	}
}

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New("", nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
