package domain

import "time"

// Analysis is the persisted outcome of one single-image screening.
type Analysis struct {
	ID             string      `json:"id"`
	UserID         int64       `json:"user_id,omitempty"`
	Filename       string      `json:"filename"`
	MimeType       string      `json:"mime_type"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
	Threshold      float64     `json:"threshold"`
	Counts         ClassCounts `json:"counts"`
	DetectionCount int         `json:"detection_count"`
	FilteredCount  int         `json:"filtered_count"`
	RejectedCount  int         `json:"rejected_count"`
	DefaultedCount int         `json:"defaulted_count"`
	SourceKey      string      `json:"source_key"`
	AnnotatedKey   string      `json:"annotated_key"`
	CreatedAt      time.Time   `json:"created_at"`
}

// DetectionOutcome describes how one kept detection was classified.
type DetectionOutcome struct {
	Detection Detection `json:"detection"`
	Class     ClassName `json:"class"`
	Viable    bool      `json:"viable"`
	Defaulted bool      `json:"defaulted,omitempty"`
	Label     string    `json:"label"`
}

// RejectedDetection is a detection that could not be aggregated.
type RejectedDetection struct {
	Position  int       `json:"position"`
	Detection Detection `json:"detection"`
	Reason    string    `json:"reason"`
}

// AnalysisResult is what a completed screening returns to the caller.
type AnalysisResult struct {
	Analysis     Analysis            `json:"analysis"`
	Outcomes     []DetectionOutcome  `json:"outcomes"`
	Rejected     []RejectedDetection `json:"rejected,omitempty"`
	HistorySaved bool                `json:"history_saved"`
	Mode         string              `json:"mode"`
}
