// Package intake decides whether a candidate file may enter the prediction
// workflow.
package intake

import (
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oncoscope/backend/internal/models"
)

// Accepted declared MIME types.
const (
	MIMECSV  = "text/csv"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEJSON = "application/json"
)

// ErrInvalidFileType is returned for files that are neither CSV, XLSX nor JSON.
var ErrInvalidFileType = errors.New("invalid file type")

var (
	allowedTypes = map[string]struct{}{
		MIMECSV:  {},
		MIMEXLSX: {},
		MIMEJSON: {},
	}
	allowedExtensions = map[string]struct{}{
		"csv":  {},
		"xlsx": {},
		"json": {},
	}
)

// NewSelection builds a FileSelection and derives its extension.
func NewSelection(name string, size int64, mimeType string) *models.FileSelection {
	return &models.FileSelection{
		ID:         uuid.New().String(),
		Name:       name,
		Size:       size,
		MIMEType:   strings.TrimSpace(mimeType),
		Extension:  Extension(name),
		SelectedAt: time.Now(),
	}
}

// Extension returns the lower-case text after the last dot of the base
// name, or "" when there is none.
func Extension(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// Accepts reports whether a file with the given name and declared MIME type
// is admissible. The extension is only consulted when the type does not
// match, since browsers often send an empty or generic type.
func Accepts(name, mimeType string) bool {
	if _, ok := allowedTypes[mediaType(mimeType)]; ok {
		return true
	}
	ext := Extension(name)
	if ext == "" {
		return false
	}
	_, ok := allowedExtensions[ext]
	return ok
}

// Format names the reader for sel: the extension when it is a known one,
// otherwise the format implied by the declared MIME type.
func Format(sel *models.FileSelection) string {
	if _, ok := allowedExtensions[sel.Extension]; ok {
		return sel.Extension
	}
	switch mediaType(sel.MIMEType) {
	case MIMECSV:
		return "csv"
	case MIMEXLSX:
		return "xlsx"
	case MIMEJSON:
		return "json"
	}
	return sel.Extension
}

// Validate returns an error wrapping ErrInvalidFileType and the user-facing
// APIError when sel is not admissible.
func Validate(sel *models.FileSelection) error {
	if sel == nil {
		return fmt.Errorf("%w: no file selected", ErrInvalidFileType)
	}
	if !Accepts(sel.Name, sel.MIMEType) {
		return &RejectionError{Name: sel.Name, MIMEType: sel.MIMEType}
	}
	return nil
}

// RejectionError describes a rejected file.
type RejectionError struct {
	Name     string
	MIMEType string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("invalid file type: %q (%s)", e.Name, e.MIMEType)
}

// Unwrap lets errors.Is match ErrInvalidFileType.
func (e *RejectionError) Unwrap() error { return ErrInvalidFileType }

// APIError returns the notification shown to the user.
func (e *RejectionError) APIError() *models.APIError {
	return models.NewInvalidFileTypeError()
}

func mediaType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(v)
	}
	return mt
}
