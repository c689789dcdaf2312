package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

// AnalyzeRequest is one uploaded image to screen.
type AnalyzeRequest struct {
	Identity  domain.Identity
	Filename  string
	MimeType  string
	Body      io.Reader
	Threshold *float64
}

// UploadFile is one member of a batch upload.
type UploadFile struct {
	Filename string
	Body     io.Reader
}

// ImageAnalyzer is the inbound contract for single-image screening.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*domain.AnalysisResult, error)
	GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error)
	OpenAnnotated(ctx context.Context, id string) (io.ReadCloser, error)
}

// BatchSubmitter stores a batch and hands it to the worker.
type BatchSubmitter interface {
	Submit(ctx context.Context, identity domain.Identity, threshold *float64, files []UploadFile) (*domain.BatchJob, error)
	GetBatch(ctx context.Context, id string) (*domain.BatchJob, error)
}

// BatchProcessor is the inbound contract for asynchronous batch processing.
type BatchProcessor interface {
	ProcessByID(ctx context.Context, batchID string) error
}

// HistoryQuery serves history, trend and comparison views.
type HistoryQuery interface {
	Recent(ctx context.Context, limit int) domain.HistoryLoad
	Window(ctx context.Context, window domain.Window) domain.HistoryLoad
	Series(ctx context.Context, window domain.Window) (domain.TrendSeries, domain.HistorySummary)
	Compare(ctx context.Context, window domain.Window, control domain.ClassName) (*domain.GroupComparison, error)
	ExportWorkbook(ctx context.Context) ([]byte, error)
}

// ReportService builds exportable reports.
type ReportService interface {
	AnalysisReport(ctx context.Context, analysisID string) (domain.ReportDocument, error)
	AnalysisWorkbook(ctx context.Context, analysisID string) ([]byte, error)
	BatchReport(ctx context.Context, batchID string) (domain.BatchReport, error)
	BatchWorkbook(ctx context.Context, batchID string) ([]byte, error)
}

// AccountService manages registration, login and administration.
type AccountService interface {
	Register(ctx context.Context, reg domain.Registration) (*domain.User, error)
	Login(ctx context.Context, identifier, password string) (*domain.Identity, error)
	Lookup(ctx context.Context, userID int64) (*domain.Identity, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	DisableUser(ctx context.Context, username string) error
	EnableUser(ctx context.Context, username string) error
	DeleteUser(ctx context.Context, username string) error
}

// CaseBoard is the shared case-study board.
type CaseBoard interface {
	Publish(ctx context.Context, author domain.Identity, c domain.CaseStudy) (*domain.CaseStudy, error)
	AttachImage(ctx context.Context, caseID int64, path string) error
	Comment(ctx context.Context, author domain.Identity, caseID int64, content string) (*domain.CaseComment, error)
	Like(ctx context.Context, caseID int64) error
	List(ctx context.Context, filter domain.CaseFilter) ([]domain.CaseStudy, error)
	Comments(ctx context.Context, caseID int64) ([]domain.CaseComment, error)
}

// HistoryBackup snapshots the history log into object storage.
type HistoryBackup interface {
	Backup(ctx context.Context) (string, error)
}
