package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

type BatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) Create(ctx context.Context, job *domain.BatchJob) error {
	itemsJSON, err := marshalItems(job.Items)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO batch_jobs (
	id, user_id, threshold, status, items, processed, total, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		job.ID, nullableUserID(job.UserID), job.Threshold, string(job.Status), itemsJSON,
		job.Processed, job.Total, job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch job: %w", err)
	}
	return nil
}

func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.BatchJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, threshold, status, items, processed, total, error_message, created_at, updated_at
FROM batch_jobs
WHERE id = $1
`, id)

	var job domain.BatchJob
	var userID sql.NullInt64
	var status string
	var itemsRaw []byte
	err := row.Scan(
		&job.ID, &userID, &job.Threshold, &status, &itemsRaw,
		&job.Processed, &job.Total, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get batch job", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan batch job: %w", err)
	}
	if err := json.Unmarshal(itemsRaw, &job.Items); err != nil {
		return nil, fmt.Errorf("unmarshal batch items: %w", err)
	}
	job.UserID = userID.Int64
	job.Status = domain.BatchStatus(status)
	return &job, nil
}

func (r *BatchRepository) UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE batch_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	return ensureAffected(res, "update batch status", id)
}

func (r *BatchRepository) SaveProgress(ctx context.Context, id string, items []domain.BatchItem, processed int) error {
	itemsJSON, err := marshalItems(items)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE batch_jobs
SET items = $2, processed = $3, updated_at = $4
WHERE id = $1
`, id, itemsJSON, processed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save batch progress: %w", err)
	}
	return ensureAffected(res, "save batch progress", id)
}

func marshalItems(items []domain.BatchItem) ([]byte, error) {
	if items == nil {
		items = []domain.BatchItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal batch items: %w", err)
	}
	return raw, nil
}

func ensureAffected(res sql.Result, operation, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if n == 0 {
		return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
