package models

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies an APIError.
type ErrorKind string

const (
	KindInvalidFileType   ErrorKind = "invalid-file-type"
	KindNetworkFailure    ErrorKind = "network-failure"
	KindServiceError      ErrorKind = "service-error"
	KindMalformedResponse ErrorKind = "malformed-response"
	KindTimeout           ErrorKind = "timeout"
)

// User-facing details.
const (
	DetailInvalidFileType = "Please upload a CSV, XLSX, or JSON file"
	DetailNetworkFailure  = "Network error or server unavailable"
	DetailUnknown         = "An unknown error occurred"
	DetailTimeout         = "Prediction request timed out"
)

// APIError is the error object shown to the user: a readable cause and an
// HTTP-like status code.
type APIError struct {
	Detail string    `json:"detail" msgpack:"detail"`
	Status int       `json:"status" msgpack:"status"`
	Kind   ErrorKind `json:"-" msgpack:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Detail, e.Status)
}

// NewInvalidFileTypeError is returned by intake validation.
func NewInvalidFileTypeError() *APIError {
	return &APIError{Detail: DetailInvalidFileType, Status: http.StatusBadRequest, Kind: KindInvalidFileType}
}

// NewNetworkError is used when the prediction call could not complete.
func NewNetworkError() *APIError {
	return &APIError{Detail: DetailNetworkFailure, Status: http.StatusInternalServerError, Kind: KindNetworkFailure}
}

// NewServiceError carries the detail returned by the prediction service.
func NewServiceError(detail string, status int) *APIError {
	if detail == "" {
		detail = DetailUnknown
	}
	return &APIError{Detail: detail, Status: status, Kind: KindServiceError}
}

// NewMalformedResponseError is used when a success response cannot be decoded.
func NewMalformedResponseError(cause error) *APIError {
	detail := "Malformed prediction response"
	if cause != nil {
		detail = fmt.Sprintf("%s: %v", detail, cause)
	}
	return &APIError{Detail: detail, Status: http.StatusBadGateway, Kind: KindMalformedResponse}
}

// NewTimeoutError is used when the prediction call exceeds its deadline.
func NewTimeoutError() *APIError {
	return &APIError{Detail: DetailTimeout, Status: http.StatusGatewayTimeout, Kind: KindTimeout}
}
