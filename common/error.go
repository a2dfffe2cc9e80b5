// Package common holds the HTTP error envelope shared by every handler.
package common

import "fmt"

// APIError is the error payload returned by the HTTP surface. Status picks
// the response code and is never serialized; Fields carries per-field
// validation detail when present.
type APIError struct {
	Status  int            `json:"-"`
	Message string         `json:"error"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

// Errf builds an APIError with a formatted message.
func Errf(status int, format string, args ...any) APIError {
	return APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// WithFields returns a copy of the error carrying per-field detail.
func (e APIError) WithFields(fields map[string]any) APIError {
	e.Fields = fields
	return e
}
