package domain

import "time"

type BatchStatus string

const (
	BatchStatusUploaded   BatchStatus = "uploaded"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusReady      BatchStatus = "ready"
	BatchStatusFailed     BatchStatus = "failed"
)

type BatchItem struct {
	Filename     string      `json:"filename"`
	SourceKey    string      `json:"source_key"`
	AnnotatedKey string      `json:"annotated_key,omitempty"`
	PreviewKey   string      `json:"preview_key,omitempty"`
	Counts       ClassCounts `json:"counts,omitempty"`
	ProcessedAt  string      `json:"processed_at,omitempty"`
	Error        string      `json:"error,omitempty"`
}

func (i BatchItem) Done() bool { return i.ProcessedAt != "" || i.Error != "" }

// BatchJob tracks a multi-image screening processed by the worker.
type BatchJob struct {
	ID        string      `json:"id"`
	UserID    int64       `json:"user_id,omitempty"`
	Threshold float64     `json:"threshold"`
	Status    BatchStatus `json:"status"`
	Items     []BatchItem `json:"items"`
	Processed int         `json:"processed"`
	Total     int         `json:"total"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// BatchProgress is reported after every processed item.
type BatchProgress struct {
	BatchID   string `json:"batch_id"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Filename  string `json:"filename"`
}
