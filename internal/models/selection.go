package models

import "time"

// FileSelection describes the file currently chosen for a workflow.
type FileSelection struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MIMEType   string    `json:"mimeType,omitempty"`
	Extension  string    `json:"extension,omitempty"` // lower-case, without the dot
	SelectedAt time.Time `json:"selectedAt"`
}
