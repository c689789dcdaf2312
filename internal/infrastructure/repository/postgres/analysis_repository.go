package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(ctx context.Context, a *domain.Analysis) error {
	countsJSON, err := json.Marshal(a.Counts.Normalized())
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO analyses (
	id, user_id, filename, mime_type, width, height, threshold, counts,
	detection_count, filtered_count, rejected_count, defaulted_count, source_key, annotated_key, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		a.ID, nullableUserID(a.UserID), a.Filename, a.MimeType, a.Width, a.Height, a.Threshold, countsJSON,
		a.DetectionCount, a.FilteredCount, a.RejectedCount, a.DefaultedCount, a.SourceKey, a.AnnotatedKey, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*domain.Analysis, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, filename, mime_type, width, height, threshold, counts,
	detection_count, filtered_count, rejected_count, defaulted_count, source_key, annotated_key, created_at
FROM analyses
WHERE id = $1
`, id)

	var a domain.Analysis
	var userID sql.NullInt64
	var countsRaw []byte
	err := row.Scan(
		&a.ID, &userID, &a.Filename, &a.MimeType, &a.Width, &a.Height, &a.Threshold, &countsRaw,
		&a.DetectionCount, &a.FilteredCount, &a.RejectedCount, &a.DefaultedCount, &a.SourceKey, &a.AnnotatedKey, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get analysis", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}

	if err := json.Unmarshal(countsRaw, &a.Counts); err != nil {
		return nil, fmt.Errorf("unmarshal counts: %w", err)
	}
	a.Counts = a.Counts.Normalized()
	a.UserID = userID.Int64
	return &a, nil
}

func nullableUserID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}
