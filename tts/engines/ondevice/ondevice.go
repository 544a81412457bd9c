// Package ondevice speaks sentences through the host's speech engine.
package ondevice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/engines"
)

// Backend implements tts.Backend on top of a Runner. Utterances never
// overlap: a new one waits until the previous process has exited.
type Backend struct {
	runner Runner
	logger *log.Logger
	mu     sync.Mutex
}

var _ tts.Backend = (*Backend)(nil)

// New creates an on-device backend.
func New(runner Runner, logger *log.Logger) *Backend {
	if logger == nil {
		logger = log.Default().WithPrefix("ondevice")
	}
	return &Backend{runner: runner, logger: logger}
}

// Kind implements tts.Backend.
func (b *Backend) Kind() tts.BackendKind {
	return tts.BackendOnDevice
}

// Speak implements tts.Backend. Cancellation interrupts the speech command;
// the resulting interruption is not reported.
func (b *Backend) Speak(ctx context.Context, s tts.Sentence, p tts.VoiceParams, onEnd func(error)) {
	completion := engines.NewCompletion(ctx, onEnd)

	go func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		err := b.runner.Run(ctx, s.Text, p)
		switch {
		case err == nil:
			completion.Done(nil)
		case errors.Is(err, ErrInterrupted) || completion.Cancelled():
			b.logger.Debug("Utterance interrupted", "index", s.Index)
		default:
			b.logger.Debug("Utterance failed", "index", s.Index, "runner", b.runner.Name(), "err", err)
			completion.Done(fmt.Errorf("%w: %w", tts.ErrOnDevicePlayback, err))
		}
	}()
}

// Name returns the name of the speech command.
func (b *Backend) Name() string {
	return b.runner.Name()
}
