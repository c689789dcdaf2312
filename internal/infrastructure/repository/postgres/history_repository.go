package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

// HistoryRepository is the database-backed history log. Rows are only ever inserted.
type HistoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewHistoryRepository(db *sql.DB, logger *slog.Logger) *HistoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryRepository{db: db, logger: logger, now: time.Now}
}

func (r *HistoryRepository) Append(ctx context.Context, rec domain.HistoryRecord) error {
	dataJSON, err := json.Marshal(rec.Data.Normalized())
	if err != nil {
		return fmt.Errorf("marshal history data: %w", err)
	}
	recordedAt, err := domain.ParseTimestamp(rec.Timestamp)
	if err != nil {
		recordedAt = r.now()
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO history_records (recorded_at, timestamp_text, filename, data)
VALUES ($1,$2,$3,$4)
`, recordedAt, rec.Timestamp, rec.Filename, dataJSON)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "append history", err)
	}
	return nil
}

func (r *HistoryRepository) LoadAll(ctx context.Context) domain.HistoryLoad {
	return r.load(ctx, nil)
}

// lowerBound restricts recorded_at. The days cutoff is exclusive, since is inclusive.
type lowerBound struct {
	at        time.Time
	inclusive bool
}

// LoadWindow applies the window as a single lower bound on recorded_at.
func (r *HistoryRepository) LoadWindow(ctx context.Context, window domain.Window) domain.HistoryLoad {
	if window.IsAll() {
		return r.load(ctx, nil)
	}
	var bound lowerBound
	if window.Days != nil {
		bound.at = domain.DaysCutoff(*window.Days, r.now())
	}
	if window.Since != nil && (window.Days == nil || window.Since.After(bound.at)) {
		bound = lowerBound{at: *window.Since, inclusive: true}
	}
	return r.load(ctx, &bound)
}

func (r *HistoryRepository) load(ctx context.Context, cutoff *lowerBound) domain.HistoryLoad {
	records, err := r.query(ctx, cutoff)
	if err != nil {
		r.logger.Warn("history load degraded", "error", err)
		return domain.HistoryLoad{Err: domain.WrapError(domain.ErrStoreUnavailable, "load history", err)}
	}
	return domain.HistoryLoad{Records: records}
}

func (r *HistoryRepository) query(ctx context.Context, cutoff *lowerBound) ([]domain.HistoryRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if cutoff == nil {
		rows, err = r.db.QueryContext(ctx, `
SELECT timestamp_text, filename, data
FROM history_records
ORDER BY id
`)
	} else if cutoff.inclusive {
		rows, err = r.db.QueryContext(ctx, `
SELECT timestamp_text, filename, data
FROM history_records
WHERE recorded_at >= $1
ORDER BY id
`, cutoff.at)
	} else {
		rows, err = r.db.QueryContext(ctx, `
SELECT timestamp_text, filename, data
FROM history_records
WHERE recorded_at > $1
ORDER BY id
`, cutoff.at)
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := make([]domain.HistoryRecord, 0)
	for rows.Next() {
		var rec domain.HistoryRecord
		var dataRaw []byte
		if err := rows.Scan(&rec.Timestamp, &rec.Filename, &dataRaw); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if err := json.Unmarshal(dataRaw, &rec.Data); err != nil {
			return nil, fmt.Errorf("unmarshal history data: %w", err)
		}
		rec.Data = rec.Data.Normalized()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}
