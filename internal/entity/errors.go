package entity

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ForbiddenError is returned before any outbound call when a proxy host is not allowed.
type ForbiddenError struct {
	Host    string
	Allowed []string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("domain not allowed: %s. allowed: %s", e.Host, strings.Join(e.Allowed, ", "))
}

// UpstreamError carries the status of a failed provider call. StatusCode is the
// provider's own status, 502 for transport failures and 503 while the circuit is open.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error: %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s error: %d", e.Provider, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// ParseError marks a stored blob that no longer parses. It is logged and the record
// skipped, never returned to a caller.
type ParseError struct {
	TileID string
	Field  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s for tile %s", e.Field, e.TileID)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TooLargeError reports a request body over a configured size bound.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("payload exceeds %d bytes", e.Limit)
}
