package tts

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Sentence is one narrable unit of a chapter.
// Start and End are byte offsets into the text the sentence was segmented
// from, so that text[Start:End] == Text.
type Sentence struct {
	Index     int    // Position in the chapter (0-based)
	Text      string // Trimmed sentence text
	Paragraph int    // Paragraph the sentence belongs to
	Start     int    // Byte offset of the first character
	End       int    // Byte offset one past the last character
}

// Len returns the length of the sentence in bytes.
func (s Sentence) Len() int {
	return s.End - s.Start
}

// BackendKind identifies a speech backend.
type BackendKind int

const (
	// BackendOnDevice speaks through the host speech engine.
	BackendOnDevice BackendKind = iota
	// BackendRemote speaks through a remote synthesis service.
	BackendRemote
)

// String returns the string representation of the backend kind.
func (k BackendKind) String() string {
	switch k {
	case BackendOnDevice:
		return "on-device"
	case BackendRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Backend produces spoken audio for one sentence at a time.
//
// Speak must not block. Exactly one of two things happens per call: onEnd is
// invoked once with nil (success) or an error, or ctx is cancelled first and
// onEnd is never invoked. Cancelling ctx after completion is a no-op.
// onEnd is never invoked from within Speak itself.
type Backend interface {
	Kind() BackendKind
	Speak(ctx context.Context, s Sentence, params VoiceParams, onEnd func(error))
}

// Prefetcher is implemented by backends that can warm synthesis results for
// upcoming sentences. Playback order is unaffected.
type Prefetcher interface {
	Prefetch(ctx context.Context, upcoming []Sentence, params VoiceParams)
}

// Prober reports the cached result of a backend reachability probe.
type Prober interface {
	Reachable() bool
}

// Highlighter keeps the visible text in step with narration.
// Implementations must not call back into the Controller.
type Highlighter interface {
	Decorate(text string, sentences []Sentence)
	SetActive(index int)
	Clear()
}

// VoiceParams configures how a sentence is spoken.
type VoiceParams struct {
	Voice    string  // Engine-specific voice identity
	Rate     float64 // Speaking rate multiplier, 1.0 is normal
	Pitch    float64 // Pitch multiplier, 1.0 is normal
	Volume   float64 // 0.0 to 1.0
	Language string  // BCP 47 language tag, required by remote synthesis
}

// DefaultVoiceParams returns the default voice parameters.
func DefaultVoiceParams() VoiceParams {
	return VoiceParams{
		Rate:     1.0,
		Pitch:    1.0,
		Volume:   1.0,
		Language: "en",
	}
}

// Validate checks that the parameters are within range.
func (p VoiceParams) Validate() error {
	if p.Rate < 0.25 || p.Rate > 4.0 {
		return fmt.Errorf("%w: rate must be between 0.25 and 4.0, got %.2f", ErrInvalidConfig, p.Rate)
	}
	if p.Pitch < 0.25 || p.Pitch > 4.0 {
		return fmt.Errorf("%w: pitch must be between 0.25 and 4.0, got %.2f", ErrInvalidConfig, p.Pitch)
	}
	if p.Volume < 0 || p.Volume > 1 {
		return fmt.Errorf("%w: volume must be between 0.0 and 1.0, got %.2f", ErrInvalidConfig, p.Volume)
	}
	if p.Language != "" {
		if _, err := p.Tag(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Tag parses the language code.
func (p VoiceParams) Tag() (language.Tag, error) {
	if strings.TrimSpace(p.Language) == "" {
		return language.Und, fmt.Errorf("language code is required")
	}
	tag, err := language.Parse(p.Language)
	if err != nil {
		return language.Und, fmt.Errorf("invalid language code %q: %w", p.Language, err)
	}
	return tag, nil
}

// Clamp returns a copy with out-of-range values pulled into range.
func (p VoiceParams) Clamp() VoiceParams {
	p.Rate = clamp(p.Rate, 0.25, 4.0, 1.0)
	p.Pitch = clamp(p.Pitch, 0.25, 4.0, 1.0)
	p.Volume = clamp(p.Volume, 0, 1, 1.0)
	return p
}

func clamp(v, lo, hi, zero float64) float64 {
	switch {
	case v == 0:
		return zero
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
