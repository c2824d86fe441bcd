// Package apperr provides the standardized error taxonomy for the dispatch engine.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Code represents standardized internal error codes.
type Code string

const (
	CodeValidationFailed     Code = "VALIDATION_FAILED"
	CodeTemplateInvalid      Code = "TEMPLATE_INVALID"
	CodeStateConflict        Code = "STATE_CONFLICT"
	CodeAudienceQueryFailed  Code = "AUDIENCE_QUERY_FAILED"
	CodeDeliveryFailed       Code = "DELIVERY_FAILED"
	CodeNotFound             Code = "NOT_FOUND"
	CodeStoreOperationFailed Code = "STORE_OPERATION_FAILED"
	CodeSchedulePast         Code = "SCHEDULE_IN_PAST"
	CodeChannelUnknown       Code = "CHANNEL_UNKNOWN"
)

// Error is a structured application error carried across service boundaries.
type Error struct {
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is makes errors.Is match on code so sentinels can be compared structurally.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func newError(code Code, message, details string, retryable bool) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ValidationFailed creates a non-retryable validation error.
func ValidationFailed(details string) *Error {
	return newError(CodeValidationFailed, "request validation failed", details, false)
}

// TemplateInvalid creates a non-retryable template error (malformed or nested blocks).
func TemplateInvalid(details string) *Error {
	return newError(CodeTemplateInvalid, "template is invalid", details, false)
}

// StateConflict creates a non-retryable lifecycle conflict error.
func StateConflict(details string) *Error {
	return newError(CodeStateConflict, "invalid state transition", details, false)
}

// SchedulePast rejects a scheduled_at that is not strictly in the future.
func SchedulePast(details string) *Error {
	return newError(CodeSchedulePast, "scheduled time must be in the future", details, false)
}

// AudienceQueryFailed creates a retryable audience resolution error.
func AudienceQueryFailed(err error) *Error {
	return newError(CodeAudienceQueryFailed, "audience query failed", err.Error(), true)
}

// DeliveryFailed creates a retryable channel delivery error.
func DeliveryFailed(channel string, err error) *Error {
	return newError(CodeDeliveryFailed, "channel delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

// NotFound creates a non-retryable lookup error.
func NotFound(entity, id string) *Error {
	return newError(CodeNotFound, fmt.Sprintf("%s not found", entity), fmt.Sprintf("id: %s", id), false)
}

// StoreFailed creates a retryable persistence error.
func StoreFailed(op string, err error) *Error {
	return newError(CodeStoreOperationFailed, "store operation failed",
		fmt.Sprintf("op: %s, error: %s", op, err.Error()), true)
}

// ChannelUnknown creates a non-retryable error for an unregistered channel.
func ChannelUnknown(channel string) *Error {
	return newError(CodeChannelUnknown, "unknown channel", channel, false)
}

// IsRetryable reports whether err carries a retryable application error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// CodeOf extracts the application error code, or empty if err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
