// Package errors provides a single structured error type used across the
// occupation coordinator, the state machines, and the orchestrator. Every
// domain failure surfaces as an *AppError so callers can branch on Type
// without parsing strings, and so logs carry consistent structured fields.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorType is a stable identifier for a class of failure. Transport layers
// (the HTTP surface in internal/httpapi) map it to a status code;
// nothing in the core depends on that mapping.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeAuth         ErrorType = "auth"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeDatabase     ErrorType = "database"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeInternal     ErrorType = "internal"

	// Domain-specific kinds from the occupation/state-machine core.
	ErrorTypeSpoolOccupied     ErrorType = "spool_occupied"
	ErrorTypeForbidden         ErrorType = "forbidden"
	ErrorTypeGone              ErrorType = "gone"
	ErrorTypeDependencies      ErrorType = "dependencies_not_satisfied"
	ErrorTypeAlreadyCompleted  ErrorType = "already_completed"
	ErrorTypeBlocked           ErrorType = "spool_bloqueado"
)

var statusByType = map[ErrorType]int{
	ErrorTypeValidation:       http.StatusBadRequest,
	ErrorTypeAuth:             http.StatusUnauthorized,
	ErrorTypeNotFound:         http.StatusNotFound,
	ErrorTypeConflict:         http.StatusConflict,
	ErrorTypeTimeout:          http.StatusRequestTimeout,
	ErrorTypeRateLimit:        http.StatusTooManyRequests,
	ErrorTypeDatabase:         http.StatusInternalServerError,
	ErrorTypeNetwork:          http.StatusInternalServerError,
	ErrorTypeInternal:         http.StatusInternalServerError,
	ErrorTypeSpoolOccupied:    http.StatusConflict,
	ErrorTypeForbidden:        http.StatusForbidden,
	ErrorTypeGone:             http.StatusGone,
	ErrorTypeDependencies:     http.StatusPreconditionFailed,
	ErrorTypeAlreadyCompleted: http.StatusConflict,
	ErrorTypeBlocked:          http.StatusForbidden,
}

// ErrorMessages holds the fixed, safe-to-expose strings for error types whose
// underlying detail should never leak externally.
var ErrorMessages = struct {
	ResourceNotFound       string
	AuthenticationFailed   string
	OperationTimeout       string
	RateLimitExceeded      string
	ConcurrentModification string
}{
	ResourceNotFound:       "the requested resource was not found",
	AuthenticationFailed:   "authentication failed",
	OperationTimeout:       "the operation timed out",
	RateLimitExceeded:      "rate limit exceeded",
	ConcurrentModification: "the resource was modified concurrently",
}

// AppError is the single error type returned from every core package.
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	StatusCode int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// New creates an AppError with no wrapped cause.
func New(t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusFor(t),
	}
}

// Newf creates an AppError with a formatted message.
func Newf(t ErrorType, format string, args ...any) *AppError {
	return New(t, fmt.Sprintf(format, args...))
}

// Wrap creates an AppError carrying cause as its underlying error.
func Wrap(cause error, t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusFor(t),
		Cause:      cause,
	}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(cause error, t ErrorType, format string, args ...any) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

// WithDetails mutates and returns e with Details set, for fluent construction.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithDetailsf is WithDetails with formatting.
func (e *AppError) WithDetailsf(format string, args ...any) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

func statusFor(t ErrorType) int {
	if code, ok := statusByType[t]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Predefined constructors mirroring the core's most common failure shapes.

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

func NewDatabaseError(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeDatabase, "database operation failed: %s", operation)
}

func NewNotFoundError(resource string) *AppError {
	return Newf(ErrorTypeNotFound, "%s not found", resource)
}

func NewAuthError(message string) *AppError {
	return New(ErrorTypeAuth, message)
}

func NewTimeoutError(operation string) *AppError {
	return Newf(ErrorTypeTimeout, "operation timed out: %s", operation)
}

// NewSpoolOccupiedError names the current holder, per spec.md SpoolOccupied.
func NewSpoolOccupiedError(tag, heldBy string) *AppError {
	return Newf(ErrorTypeSpoolOccupied, "spool %s is occupied by %s", tag, heldBy)
}

// NewForbiddenError reports a caller that is not the occupation holder.
func NewForbiddenError(message string) *AppError {
	return New(ErrorTypeForbidden, message)
}

// NewGoneError reports a lock that expired between verify and write.
func NewGoneError(message string) *AppError {
	return New(ErrorTypeGone, message)
}

// NewDependenciesNotSatisfiedError names the missing prerequisite operation.
func NewDependenciesNotSatisfiedError(message string) *AppError {
	return New(ErrorTypeDependencies, message)
}

// NewAlreadyCompletedError reports a duplicated/late transition attempt.
func NewAlreadyCompletedError(message string) *AppError {
	return New(ErrorTypeAlreadyCompleted, message)
}

// NewBlockedError reports the rework-cycle governor rejecting a TOMAR.
func NewBlockedError(tag string) *AppError {
	return Newf(ErrorTypeBlocked, "spool %s is bloqueado; contact a supervisor", tag)
}

// NewVersionConflictError reports an optimistic-concurrency precondition miss.
func NewVersionConflictError(tag string) *AppError {
	return Newf(ErrorTypeConflict, "version conflict writing spool %s", tag)
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == t
}

// GetType returns err's ErrorType, or ErrorTypeInternal for non-AppError values.
func GetType(err error) ErrorType {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetStatusCode returns err's transport-analog status code.
func GetStatusCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// SafeErrorMessage returns a message safe to expose to an external caller,
// substituting a fixed string for error types whose detail might leak
// internal state (table names, connection strings, stack-adjacent text).
func SafeErrorMessage(err error) string {
	appErr, ok := err.(*AppError)
	if !ok {
		return "An unexpected error occurred"
	}
	switch appErr.Type {
	case ErrorTypeValidation, ErrorTypeSpoolOccupied, ErrorTypeDependencies,
		ErrorTypeAlreadyCompleted, ErrorTypeBlocked, ErrorTypeForbidden, ErrorTypeGone:
		return appErr.Message
	case ErrorTypeNotFound:
		return ErrorMessages.ResourceNotFound
	case ErrorTypeAuth:
		return ErrorMessages.AuthenticationFailed
	case ErrorTypeTimeout:
		return ErrorMessages.OperationTimeout
	case ErrorTypeRateLimit:
		return ErrorMessages.RateLimitExceeded
	case ErrorTypeConflict:
		return ErrorMessages.ConcurrentModification
	default:
		return "An internal error occurred"
	}
}

// LogFields renders err as a structured field map suitable for zap.Any-style
// attachment to a log entry.
func LogFields(err error) map[string]any {
	fields := map[string]any{"error": err.Error()}
	appErr, ok := err.(*AppError)
	if !ok {
		return fields
	}
	fields["error_type"] = string(appErr.Type)
	fields["status_code"] = appErr.StatusCode
	if appErr.Details != "" {
		fields["error_details"] = appErr.Details
	}
	if appErr.Cause != nil {
		fields["underlying_error"] = appErr.Cause.Error()
	}
	return fields
}

// Chain joins non-nil errors with " -> ", returning nil if all are nil and
// the single error unchanged if exactly one is non-nil.
func Chain(errs ...error) error {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}
	msg := nonNil[0].Error()
	for _, e := range nonNil[1:] {
		msg += " -> " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
