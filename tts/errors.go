package tts

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for the narration system.
var (
	// Controller errors
	ErrInvalidState   = errors.New("invalid state for operation")
	ErrNothingToRead  = errors.New("nothing to read")
	ErrControllerShut = errors.New("controller has been closed")

	// Backend errors
	ErrBackendUnavailable = errors.New("speech backend is not available")
	ErrOnDevicePlayback   = errors.New("on-device playback failed")
	ErrRemoteSynthesis    = errors.New("remote synthesis failed")
	ErrRemoteUnreachable  = errors.New("remote synthesis service is unreachable")
	ErrInvalidAudioFormat = errors.New("invalid audio format")

	// Chapter errors
	ErrNoNextChapter = errors.New("no next chapter")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("required configuration missing")
)

// IsRecoverableError checks if an error is recoverable.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, ErrControllerShut),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrMissingConfig),
		errors.Is(err, ErrBackendUnavailable):
		return false
	}

	return true
}

// ErrorSeverity represents the severity of an error.
type ErrorSeverity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning is for warnings that don't prevent operation.
	SeverityWarning
	// SeverityError is for errors that prevent normal operation.
	SeverityError
)

// String returns the string representation of the severity.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// NarrationError provides detailed error information.
type NarrationError struct {
	Err       error          // The underlying error
	Component string         // Component that generated the error
	Action    string         // Action being performed when error occurred
	Severity  ErrorSeverity  // Severity of the error
	Timestamp int64          // Unix timestamp when error occurred
	Context   map[string]any // Additional context
}

// NewNarrationError creates a new error with context.
func NewNarrationError(err error, component, action string) *NarrationError {
	return &NarrationError{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
		Timestamp: time.Now().Unix(),
		Context:   make(map[string]any),
	}
}

// Error implements the error interface.
func (e *NarrationError) Error() string {
	if e.Err == nil {
		return "unknown narration error"
	}
	if e.Component == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *NarrationError) Unwrap() error {
	return e.Err
}

// IsRecoverable checks if the error is recoverable.
func (e *NarrationError) IsRecoverable() bool {
	return IsRecoverableError(e.Err)
}

// WithSeverity sets the error severity.
func (e *NarrationError) WithSeverity(severity ErrorSeverity) *NarrationError {
	e.Severity = severity
	return e
}

// WithContext adds context to the error.
func (e *NarrationError) WithContext(key string, value any) *NarrationError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
