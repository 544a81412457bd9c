// Package mock provides a scriptable speech backend for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/engines"
)

// Call records one Speak invocation.
type Call struct {
	Sentence tts.Sentence
	Params   tts.VoiceParams
}

// Utterance is a pending Speak call that the test completes by hand.
type Utterance struct {
	Call
	ctx        context.Context
	completion *engines.Completion
}

// Finish reports the outcome of the utterance. It returns false if the
// utterance was cancelled or already finished.
func (u *Utterance) Finish(err error) bool {
	return u.completion.Done(err)
}

// Cancelled reports whether the controller cancelled the utterance.
func (u *Utterance) Cancelled() bool {
	return u.ctx.Err() != nil
}

// Backend implements tts.Backend for tests. In manual mode utterances stay
// pending until finished; in auto mode they finish after a delay.
type Backend struct {
	kind tts.BackendKind

	// Control for testing
	auto      bool
	delay     time.Duration
	failures  map[int]error // by sentence index
	failAll   error
	reachable bool

	// State
	mu      sync.Mutex
	calls   []Call
	pending []*Utterance
	notify  chan struct{}

	prefetched []tts.Sentence
}

// New creates a manual mock backend of the given kind.
func New(kind tts.BackendKind) *Backend {
	return &Backend{
		kind:      kind,
		failures:  make(map[int]error),
		reachable: true,
		notify:    make(chan struct{}, 1),
	}
}

// NewAuto creates a mock backend that finishes every utterance after delay.
func NewAuto(kind tts.BackendKind, delay time.Duration) *Backend {
	b := New(kind)
	b.auto = true
	b.delay = delay
	return b
}

// Kind implements tts.Backend.
func (b *Backend) Kind() tts.BackendKind {
	return b.kind
}

// Speak implements tts.Backend.
func (b *Backend) Speak(ctx context.Context, s tts.Sentence, p tts.VoiceParams, onEnd func(error)) {
	u := &Utterance{
		Call:       Call{Sentence: s, Params: p},
		ctx:        ctx,
		completion: engines.NewCompletion(ctx, onEnd),
	}

	b.mu.Lock()
	b.calls = append(b.calls, u.Call)
	err := b.failAll
	if e, ok := b.failures[s.Index]; ok {
		err = e
	}
	auto, delay := b.auto, b.delay
	if !auto {
		b.pending = append(b.pending, u)
	}
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}

	if !auto {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(delay):
			u.Finish(err)
		}
	}()
}

// Prefetch records the sentences it was asked to warm.
func (b *Backend) Prefetch(_ context.Context, upcoming []tts.Sentence, _ tts.VoiceParams) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prefetched = append(b.prefetched, upcoming...)
}

// Reachable implements tts.Prober.
func (b *Backend) Reachable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reachable
}

// SetReachable sets the probe result.
func (b *Backend) SetReachable(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reachable = ok
}

// FailOn makes auto mode fail the sentence at index with err.
func (b *Backend) FailOn(index int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[index] = err
}

// FailAll makes auto mode fail every sentence with err.
func (b *Backend) FailAll(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAll = err
}

// Calls returns all recorded Speak calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount returns the number of Speak calls.
func (b *Backend) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// Prefetched returns the sentences passed to Prefetch.
func (b *Backend) Prefetched() []tts.Sentence {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tts.Sentence(nil), b.prefetched...)
}

// Last returns the most recent pending utterance in manual mode.
func (b *Backend) Last() *Utterance {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	return b.pending[len(b.pending)-1]
}

// Pending returns the pending utterances in manual mode.
func (b *Backend) Pending() []*Utterance {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Utterance(nil), b.pending...)
}

// WaitForCalls blocks until at least n Speak calls were made or the timeout
// expires.
func (b *Backend) WaitForCalls(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if b.CallCount() >= n {
			return true
		}
		select {
		case <-b.notify:
		case <-deadline.C:
			return b.CallCount() >= n
		}
	}
}
