package users

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrDenied indicates the principal lacks the required permission.
	// Checked before validation and before any mutation.
	ErrDenied = errors.New("users: access denied")
	// ErrNotFound indicates the target record does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrNotification indicates the record was committed but the credential
	// notification could not be dispatched.
	ErrNotification = errors.New("users: notification dispatch failed")
)

// ValidationError carries per-field reasons for rejected input. The record
// is never partially applied.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "users: validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "users: validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps err into a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
