package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

func TestHistoryBackup(t *testing.T) {
	storage := newStorageFake()
	uc := NewHistoryBackupUseCase(seededHistory(2), storage)
	uc.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local) }

	key, err := uc.Backup(context.Background())
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if key != "backups/history_20240506_070809.json" {
		t.Fatalf("unexpected key %q", key)
	}
	var records []domain.HistoryRecord
	if err := json.Unmarshal(storage.objects[key], &records); err != nil {
		t.Fatalf("backup is not a JSON array: %v", err)
	}
	if len(records) != 2 || records[1].Filename != "img-01.png" {
		t.Fatalf("unexpected backup content: %+v", records)
	}
}

func TestHistoryBackupEmptyAndDegraded(t *testing.T) {
	storage := newStorageFake()
	key, err := NewHistoryBackupUseCase(&historyFake{}, storage).Backup(context.Background())
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if strings.TrimSpace(string(storage.objects[key])) != "[]" {
		t.Fatalf("expected empty array, got %s", storage.objects[key])
	}

	degraded := &historyFake{loadErr: domain.WrapError(domain.ErrStoreUnavailable, "load", errors.New("io"))}
	if _, err := NewHistoryBackupUseCase(degraded, storage).Backup(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}
