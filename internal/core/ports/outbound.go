package ports

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

// Detector runs the external object-detection model on an encoded image.
type Detector interface {
	Detect(ctx context.Context, image []byte, filename string) ([]domain.Detection, error)
}

// ImageCodec validates uploads and encodes rendered images.
type ImageCodec interface {
	Decode(data []byte) (image.Image, string, error)
	EncodePNG(img image.Image) ([]byte, error)
	Thumbnail(img image.Image, maxSide int) image.Image
}

// HistoryStore is the append-only log of completed analyses. Reads never fail hard:
// an unreadable store yields a degraded, empty HistoryLoad.
type HistoryStore interface {
	Append(ctx context.Context, record domain.HistoryRecord) error
	LoadAll(ctx context.Context) domain.HistoryLoad
	LoadWindow(ctx context.Context, window domain.Window) domain.HistoryLoad
}

// ObjectStorage stores uploaded and rendered images.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// AnalysisRepository persists single-image analyses.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *domain.Analysis) error
	GetByID(ctx context.Context, id string) (*domain.Analysis, error)
}

// BatchRepository persists and reads batch job state.
type BatchRepository interface {
	Create(ctx context.Context, job *domain.BatchJob) error
	GetByID(ctx context.Context, id string) (*domain.BatchJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, errMessage string) error
	SaveProgress(ctx context.Context, id string, items []domain.BatchItem, processed int) error
}

// MessageQueue publishes/consumes batch submission events.
type MessageQueue interface {
	PublishBatchSubmitted(ctx context.Context, batchID string) error
	SubscribeBatchSubmitted(ctx context.Context, handler func(context.Context, string) error) error
}

type UserField string

const (
	UserFieldUsername UserField = "username"
	UserFieldEmail    UserField = "email"
	UserFieldPhone    UserField = "phone"
)

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	Exists(ctx context.Context, field UserField, value string) (bool, error)
	FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	CountByRole(ctx context.Context, role domain.Role) (int, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context) ([]domain.User, error)
	SetStatus(ctx context.Context, username string, status domain.AccountStatus) error
	Delete(ctx context.Context, username string) error
}

// CaseStore persists the shared case-study board.
type CaseStore interface {
	CreateCase(ctx context.Context, c *domain.CaseStudy) error
	AddImage(ctx context.Context, caseID int64, path string) error
	AddComment(ctx context.Context, comment *domain.CaseComment) error
	Like(ctx context.Context, caseID int64) error
	ListCases(ctx context.Context, filter domain.CaseFilter) ([]domain.CaseStudy, error)
	ListComments(ctx context.Context, caseID int64) ([]domain.CaseComment, error)
}

// ReportExporter renders spreadsheets for download.
type ReportExporter interface {
	HistoryWorkbook(records []domain.HistoryRecord) ([]byte, error)
	ReportWorkbook(doc domain.ReportDocument) ([]byte, error)
	BatchWorkbook(report domain.BatchReport) ([]byte, error)
}

// AnalysisObserver receives pipeline telemetry.
type AnalysisObserver interface {
	ObserveAnalysis(status string, counts domain.ClassCounts, defaulted, rejected int, duration time.Duration)
	ObserveHistoryLoad(degraded bool)
}
