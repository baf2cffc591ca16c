package models

import "time"

// UploadState is the state of a prediction workflow.
type UploadState string

const (
	StateIdle       UploadState = "idle"
	StateUploading  UploadState = "uploading"
	StateProcessing UploadState = "processing"
	StateSuccess    UploadState = "success"
	StateError      UploadState = "error"
)

// InFlight reports whether a prediction call is outstanding.
func (s UploadState) InFlight() bool {
	return s == StateUploading || s == StateProcessing
}

// Terminal reports whether the run has settled.
func (s UploadState) Terminal() bool {
	return s == StateSuccess || s == StateError
}

// WorkflowRun is a point-in-time snapshot of a workflow.
type WorkflowRun struct {
	ID               string         `json:"id"`
	State            UploadState    `json:"state"`
	File             *FileSelection `json:"file,omitempty"`
	RecordCount      int            `json:"recordCount"`
	Columns          []string       `json:"columns,omitempty"`
	DriftColumns     []string       `json:"driftColumns,omitempty"`
	Error            *APIError      `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	StartedAt        *time.Time     `json:"startedAt,omitempty"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty"`
	ProcessingTimeMs int64          `json:"processingTimeMs,omitempty"`
	Generation       uint64         `json:"generation"`
}
