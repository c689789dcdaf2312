package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

// Store keeps the history log as one JSON array on disk.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

func New(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "history file", errors.New("path is empty"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger, now: time.Now}, nil
}

// Append rewrites the file with rec added at the end. An unreadable existing file
// is left untouched.
func (s *Store) Append(_ context.Context, rec domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "append history", err)
	}
	rec.Data = rec.Data.Normalized()
	records = append(records, rec)

	if err := s.write(records); err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "append history", err)
	}
	return nil
}

func (s *Store) LoadAll(_ context.Context) domain.HistoryLoad {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return s.degraded(err)
	}
	return domain.HistoryLoad{Records: records}
}

// LoadWindow drops records whose timestamp cannot be parsed.
func (s *Store) LoadWindow(ctx context.Context, window domain.Window) domain.HistoryLoad {
	if window.IsAll() {
		return s.LoadAll(ctx)
	}

	s.mu.Lock()
	records, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return s.degraded(err)
	}

	now := s.now()
	filtered := make([]domain.HistoryRecord, 0, len(records))
	for _, rec := range records {
		ts, err := domain.ParseTimestamp(rec.Timestamp)
		if err != nil {
			continue
		}
		if window.Contains(ts, now) {
			filtered = append(filtered, rec)
		}
	}
	return domain.HistoryLoad{Records: filtered}
}

func (s *Store) degraded(err error) domain.HistoryLoad {
	s.logger.Warn("history load degraded", "path", s.path, "error", err)
	return domain.HistoryLoad{Err: domain.WrapError(domain.ErrStoreUnavailable, "load history", err)}
}

func (s *Store) read() ([]domain.HistoryRecord, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.HistoryRecord{}, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}

	records := make([]domain.HistoryRecord, 0)
	if len(raw) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode history file: %w", err)
	}
	for i := range records {
		records[i].Data = records[i].Data.Normalized()
	}
	return records, nil
}

func (s *Store) write(records []domain.HistoryRecord) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history-*")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp history file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
