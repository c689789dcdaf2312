package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

type HistoryBackupUseCase struct {
	store   ports.HistoryStore
	storage ports.ObjectStorage
	now     func() time.Time
}

func NewHistoryBackupUseCase(store ports.HistoryStore, storage ports.ObjectStorage) *HistoryBackupUseCase {
	return &HistoryBackupUseCase{store: store, storage: storage, now: time.Now}
}

// Backup writes the full history as a JSON array and returns the storage key.
func (uc *HistoryBackupUseCase) Backup(ctx context.Context) (string, error) {
	load := uc.store.LoadAll(ctx)
	if load.Degraded() {
		return "", fmt.Errorf("load history: %w", load.Err)
	}
	records := load.Records
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}
	key := fmt.Sprintf("backups/history_%s.json", uc.now().Format("20060102_150405"))
	if err := uc.storage.Save(ctx, key, bytes.NewReader(payload)); err != nil {
		return "", fmt.Errorf("save backup: %w", err)
	}
	return key, nil
}
