package tts

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestErrorUniqueness tests that every sentinel is distinct.
func TestErrorUniqueness(t *testing.T) {
	all := []error{
		ErrInvalidState, ErrNothingToRead, ErrControllerShut,
		ErrBackendUnavailable, ErrOnDevicePlayback, ErrRemoteSynthesis,
		ErrRemoteUnreachable, ErrInvalidAudioFormat, ErrNoNextChapter,
		ErrInvalidConfig, ErrMissingConfig,
	}

	seen := make(map[string]bool)
	for _, err := range all {
		if seen[err.Error()] {
			t.Errorf("duplicate error message %q", err)
		}
		seen[err.Error()] = true
		for _, other := range all {
			if err != other && errors.Is(err, other) {
				t.Errorf("%v should not match %v", err, other)
			}
		}
	}
}

// TestIsRecoverableError tests error classification.
func TestIsRecoverableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"remote synthesis", ErrRemoteSynthesis, true},
		{"on-device playback", ErrOnDevicePlayback, true},
		{"wrapped remote", fmt.Errorf("sentence 3: %w", ErrRemoteSynthesis), true},
		{"closed controller", ErrControllerShut, false},
		{"invalid config", ErrInvalidConfig, false},
		{"wrapped invalid config", fmt.Errorf("load: %w", ErrInvalidConfig), false},
		{"missing config", ErrMissingConfig, false},
		{"backend unavailable", ErrBackendUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverableError(tt.err); got != tt.want {
				t.Errorf("IsRecoverableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestNarrationError tests the NarrationError type.
func TestNarrationError(t *testing.T) {
	err := NewNarrationError(ErrRemoteSynthesis, "remote", "speak")

	if !strings.Contains(err.Error(), "remote: speak") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrRemoteSynthesis) {
		t.Error("NarrationError should unwrap to its cause")
	}
	if !err.IsRecoverable() {
		t.Error("remote synthesis failures are recoverable")
	}
	if err.Severity != SeverityError {
		t.Errorf("default severity = %v", err.Severity)
	}

	err.WithSeverity(SeverityWarning).WithContext("index", 3)
	if err.Severity != SeverityWarning || err.Context["index"] != 3 {
		t.Errorf("severity=%v context=%v", err.Severity, err.Context)
	}

	var target *NarrationError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &target) || target.Component != "remote" {
		t.Error("errors.As should find the NarrationError")
	}
}

func TestNarrationErrorEdgeCases(t *testing.T) {
	if got := (&NarrationError{}).Error(); got != "unknown narration error" {
		t.Errorf("Error() with nil cause = %q", got)
	}
	if got := (&NarrationError{Err: ErrNothingToRead}).Error(); got != ErrNothingToRead.Error() {
		t.Errorf("Error() without component = %q", got)
	}

	e := &NarrationError{Err: ErrNothingToRead}
	e.WithContext("k", "v")
	if e.Context["k"] != "v" {
		t.Error("WithContext should allocate the map")
	}
}

// TestErrorSeverity tests the severity strings.
func TestErrorSeverity(t *testing.T) {
	tests := map[ErrorSeverity]string{
		SeverityInfo:      "info",
		SeverityWarning:   "warning",
		SeverityError:     "error",
		ErrorSeverity(42): "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}
