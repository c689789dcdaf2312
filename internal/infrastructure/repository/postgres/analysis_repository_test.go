package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

func newAnalysisRepoWithMock(t *testing.T) (*AnalysisRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return &AnalysisRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestAnalysisRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newAnalysisRepoWithMock(t)
	defer cleanup()

	counts := domain.NewClassCounts()
	counts.Record(domain.ClassWT, true)
	a := &domain.Analysis{
		ID:        "a-1",
		Filename:  "grain.png",
		MimeType:  "image/png",
		Width:     64,
		Height:    48,
		Threshold: 0.5,
		Counts:    counts,
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs("a-1", sql.NullInt64{}, "grain.png", "image/png", 64, 48, 0.5, sqlmock.AnyArg(),
			0, 0, 0, 0, "", "", a.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAnalysisRepositoryGetByID(t *testing.T) {
	repo, mock, cleanup := newAnalysisRepoWithMock(t)
	defer cleanup()

	createdAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "filename", "mime_type", "width", "height", "threshold", "counts",
		"detection_count", "filtered_count", "rejected_count", "defaulted_count", "source_key", "annotated_key", "created_at",
	}).AddRow("a-1", int64(7), "grain.png", "image/png", 64, 48, 0.4,
		[]byte(`{"WT":{"total":2,"viable":1,"non_viable":1}}`),
		3, 1, 0, 0, "analyses/a-1/grain.png", "analyses/a-1/annotated.png", createdAt)

	mock.ExpectQuery("SELECT id, user_id, filename").WithArgs("a-1").WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.UserID != 7 || got.Threshold != 0.4 {
		t.Fatalf("unexpected analysis: %+v", got)
	}
	if got.Counts[domain.ClassWT].Viable != 1 {
		t.Fatalf("expected WT viable=1, got %+v", got.Counts)
	}
	if _, ok := got.Counts[domain.ClassT1C5E5]; !ok {
		t.Fatalf("expected normalized counts, got %+v", got.Counts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAnalysisRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock, cleanup := newAnalysisRepoWithMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, user_id, filename").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAnalysisRepositoryCreateError(t *testing.T) {
	repo, mock, cleanup := newAnalysisRepoWithMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO analyses").WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &domain.Analysis{ID: "a-1", Counts: domain.NewClassCounts()})
	if err == nil {
		t.Fatal("expected insert error")
	}
}
