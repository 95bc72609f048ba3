// Package errors provides custom error types and error handling utilities for respool.
package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guileen/respool/logger"
)

// Error codes for different types of errors
const (
	ErrCodeUnknown             = "unknown_error"
	ErrCodeInvalidArgument     = "invalid_argument"
	ErrCodeAlreadyClosed       = "already_closed"
	ErrCodeCleanupFailure      = "cleanup_failure"
	ErrCodeNotificationFailure = "notification_failure"
	ErrCodeLimitExceeded       = "limit_exceeded"
)

// Sentinel errors shared across packages
var (
	// ErrManagerClosed is returned for any operation on a shut-down manager
	ErrManagerClosed = errors.New("resource manager is closed")
	// ErrHandleClosed is returned when accessing a resource through a closed handle
	ErrHandleClosed = errors.New("handle is closed")
	// ErrInvalidSize is returned for negative allocation sizes
	ErrInvalidSize = errors.New("invalid allocation size")
	// ErrTooManyResources is returned when the registry hits its record cap
	ErrTooManyResources = errors.New("too many tracked resources")
)

// ResourceError represents a custom error type for the resource layer
type ResourceError struct {
	Code    string
	Message string
	Op      string
	Err     error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements the unwrap interface for error chaining
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target error
func (e *ResourceError) Is(target error) bool {
	if t, ok := target.(*ResourceError); ok {
		return e.Code == t.Code
	}
	return false
}

// Log logs the error with the provided logger
func (e *ResourceError) Log(ctx context.Context, logLevel slog.Level) {
	logFields := []any{
		"error_code", e.Code,
		"operation", e.Op,
		"message", e.Message,
	}

	// Append context values if available
	if ctx != nil {
		contextFields := logger.ExtractContextValues(ctx)
		logFields = append(logFields, contextFields...)
	}

	// Add the underlying error if it exists
	if e.Err != nil {
		logFields = append(logFields, "cause", e.Err.Error())
	}

	switch logLevel {
	case slog.LevelDebug:
		logger.DebugContext(ctx, "Resource error occurred", logFields...)
	case slog.LevelInfo:
		logger.InfoContext(ctx, "Resource error occurred", logFields...)
	case slog.LevelWarn:
		logger.WarnContext(ctx, "Resource error occurred", logFields...)
	default:
		logger.Error("Resource error occurred", logFields...)
	}
}

// New creates a new ResourceError
func New(code, message string) *ResourceError {
	return &ResourceError{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new ResourceError with formatted message
func Errorf(code, format string, args ...interface{}) *ResourceError {
	return &ResourceError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with context
func Wrap(err error, code, op string) *ResourceError {
	return &ResourceError{
		Code:    code,
		Message: err.Error(),
		Op:      op,
		Err:     err,
	}
}

// Wrapf wraps an existing error with formatted context
func Wrapf(err error, code, op, format string, args ...interface{}) *ResourceError {
	return &ResourceError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Op:      op,
		Err:     err,
	}
}

// Common error constructors

func NewInvalidArgument(op, msg string) *ResourceError {
	return &ResourceError{
		Code:    ErrCodeInvalidArgument,
		Message: msg,
		Op:      op,
	}
}

func NewInvalidArgumentf(op, format string, args ...interface{}) *ResourceError {
	return &ResourceError{
		Code:    ErrCodeInvalidArgument,
		Message: fmt.Sprintf(format, args...),
		Op:      op,
	}
}

func NewAlreadyClosed(op, msg string) *ResourceError {
	return &ResourceError{
		Code:    ErrCodeAlreadyClosed,
		Message: msg,
		Op:      op,
	}
}

func NewCleanupFailure(op string, err error) *ResourceError {
	return &ResourceError{
		Code:    ErrCodeCleanupFailure,
		Message: fmt.Sprintf("cleanup failed: %v", err),
		Op:      op,
		Err:     err,
	}
}

func NewNotificationFailure(op string, err error) *ResourceError {
	return &ResourceError{
		Code:    ErrCodeNotificationFailure,
		Message: fmt.Sprintf("release notification failed: %v", err),
		Op:      op,
		Err:     err,
	}
}

func NewLimitExceeded(op, msg string) *ResourceError {
	return &ResourceError{
		Code:    ErrCodeLimitExceeded,
		Message: msg,
		Op:      op,
	}
}

// Code-based classification helpers

func codeOf(err error) string {
	var re *ResourceError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsInvalidArgument reports whether err carries the invalid_argument code
func IsInvalidArgument(err error) bool {
	return codeOf(err) == ErrCodeInvalidArgument
}

// IsAlreadyClosed reports whether err carries the already_closed code or wraps
// one of the closed sentinels
func IsAlreadyClosed(err error) bool {
	if codeOf(err) == ErrCodeAlreadyClosed {
		return true
	}
	return errors.Is(err, ErrManagerClosed) || errors.Is(err, ErrHandleClosed)
}

// IsCleanupFailure reports whether err carries the cleanup_failure code
func IsCleanupFailure(err error) bool {
	return codeOf(err) == ErrCodeCleanupFailure
}

// IsLimitExceeded reports whether err carries the limit_exceeded code
func IsLimitExceeded(err error) bool {
	return codeOf(err) == ErrCodeLimitExceeded
}
