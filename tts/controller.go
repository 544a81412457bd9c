// Package tts provides sentence-synchronized narration for lector.
package tts

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Segmenter splits chapter text into sentences.
type Segmenter func(text string) []Sentence

// Controller owns the playback session: it walks the sentence list, drives
// one backend at a time and fences stale completions.
type Controller struct {
	// Backends
	onDevice Backend
	remote   Backend

	// Collaborators
	segment     Segmenter
	highlighter Highlighter
	bus         *Bus
	logger      *log.Logger

	// State management
	machine *StateMachine
	mu      sync.Mutex

	// Session
	text      string
	sentences []Sentence
	index     int
	token     uint64 // incremented on every effective stop
	utterance uint64 // incremented on every speak and pause
	active    BackendKind
	demoted   bool
	skipped   bool // an unreachable remote has been reported
	params    VoiceParams
	prefetch  int

	// Cancellation
	ctx           context.Context
	cancel        context.CancelFunc
	sessionCancel context.CancelFunc
	sessionCtx    context.Context
	speakCancel   context.CancelFunc

	// Callbacks
	onExhausted func(context.Context)

	closed bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithRemote sets the remote backend. It is used for a session when it
// reports itself reachable.
func WithRemote(b Backend) Option {
	return func(c *Controller) { c.remote = b }
}

// WithHighlighter sets the highlight synchronizer.
func WithHighlighter(h Highlighter) Option {
	return func(c *Controller) { c.highlighter = h }
}

// WithBus sets the bus messages are published on.
func WithBus(b *Bus) Option {
	return func(c *Controller) { c.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithVoiceParams sets the initial voice parameters.
func WithVoiceParams(p VoiceParams) Option {
	return func(c *Controller) { c.params = p.Clamp() }
}

// WithPrefetch sets how many upcoming sentences a prefetching backend warms.
func WithPrefetch(n int) Option {
	return func(c *Controller) { c.prefetch = max(n, 0) }
}

// WithContext sets the parent context of every session.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) { c.ctx = ctx }
}

// NewController creates a controller speaking through onDevice unless a
// reachable remote backend is configured.
func NewController(segment Segmenter, onDevice Backend, opts ...Option) *Controller {
	c := &Controller{
		onDevice: onDevice,
		segment:  segment,
		machine:  NewStateMachine(),
		params:   DefaultVoiceParams(),
		prefetch: 2,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = NewBus()
	}
	if c.logger == nil {
		c.logger = log.Default().WithPrefix("narration")
	}
	c.ctx, c.cancel = context.WithCancel(c.ctx)
	return c
}

// Bus returns the bus the controller publishes on.
func (c *Controller) Bus() *Bus {
	return c.bus
}

// Subscribe registers fn for state, progress and notice messages.
func (c *Controller) Subscribe(fn func(Msg)) (unsubscribe func()) {
	return c.bus.Subscribe(fn)
}

// OnExhausted registers the handler invoked after the last sentence of a
// chapter completes and the session has stopped.
func (c *Controller) OnExhausted(fn func(context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExhausted = fn
}

// SetVoiceParams changes the voice used from the next sentence on.
func (c *Controller) SetVoiceParams(p VoiceParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = p
	return nil
}

// VoiceParams returns the current voice parameters.
func (c *Controller) VoiceParams() VoiceParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Load replaces the chapter text and its sentence list. An active session
// is stopped first.
func (c *Controller) Load(text string) {
	var msgs []Msg

	c.mu.Lock()
	if st := c.machine.Current(); st == StatePlaying || st == StatePaused {
		c.stopLocked(&msgs)
	}
	c.text = text
	c.sentences = c.segment(text)
	c.index = 0
	if c.machine.Current() == StateStopped {
		c.transitionLocked(StateIdle, &msgs)
	}
	n := len(c.sentences)
	c.mu.Unlock()

	c.logger.Debug("Loaded text", "sentences", n, "bytes", len(text))
	c.bus.Publish(msgs...)
}

// Start begins narration from the first sentence. It is valid from the
// idle and stopped states. With no sentences it publishes a "nothing to
// read" notice and returns ErrNothingToRead without changing state.
func (c *Controller) Start() error {
	var msgs []Msg

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerShut
	}
	st := c.machine.Current()
	if st != StateIdle && st != StateStopped {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, st)
	}
	if len(c.sentences) == 0 {
		c.mu.Unlock()
		c.bus.Notify(NoticeNothingToRead, nil)
		return ErrNothingToRead
	}

	c.index = 0
	c.active = c.selectBackendLocked()
	c.demoted = false
	if c.remote != nil && c.active == BackendOnDevice && !c.skipped {
		c.skipped = true
		msgs = append(msgs, NoticeMsg{Kind: NoticeRemoteUnavailable, Err: ErrRemoteUnreachable})
	}
	c.sessionCtx, c.sessionCancel = context.WithCancel(c.ctx)
	c.transitionLocked(StatePlaying, &msgs)
	if c.highlighter != nil {
		c.highlighter.Decorate(c.text, c.sentences)
	}
	c.logger.Debug("Starting narration", "backend", c.active, "sentences", len(c.sentences), "token", c.token)
	c.speakLocked(&msgs)
	c.mu.Unlock()

	c.bus.Publish(msgs...)
	return nil
}

// Pause cancels the current utterance. Resume restarts the same sentence
// from its beginning.
func (c *Controller) Pause() error {
	var msgs []Msg

	c.mu.Lock()
	if st := c.machine.Current(); st != StatePlaying {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidState, st)
	}
	c.utterance++
	if c.speakCancel != nil {
		c.speakCancel()
		c.speakCancel = nil
	}
	c.transitionLocked(StatePaused, &msgs)
	c.mu.Unlock()

	c.bus.Publish(msgs...)
	return nil
}

// Resume speaks the current sentence again from its beginning.
func (c *Controller) Resume() error {
	var msgs []Msg

	c.mu.Lock()
	if st := c.machine.Current(); st != StatePaused {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot resume while %s", ErrInvalidState, st)
	}
	c.transitionLocked(StatePlaying, &msgs)
	c.speakLocked(&msgs)
	c.mu.Unlock()

	c.bus.Publish(msgs...)
	return nil
}

// Toggle starts, pauses or resumes narration depending on the state.
func (c *Controller) Toggle() error {
	c.mu.Lock()
	st := c.machine.Current()
	c.mu.Unlock()

	switch st {
	case StatePlaying:
		return c.Pause()
	case StatePaused:
		return c.Resume()
	default:
		return c.Start()
	}
}

// Stop ends the session. Any completion still in flight is ignored. Calling
// Stop when already stopped does nothing.
func (c *Controller) Stop() {
	var msgs []Msg

	c.mu.Lock()
	c.stopLocked(&msgs)
	c.mu.Unlock()

	c.bus.Publish(msgs...)
}

// Close stops narration and releases the controller.
func (c *Controller) Close() {
	c.Stop()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
}

// Session returns a snapshot of the playback session.
func (c *Controller) Session() PlaybackSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	return PlaybackSession{
		State:     c.machine.Current(),
		Sentences: append([]Sentence(nil), c.sentences...),
		Index:     c.index,
		Token:     c.token,
		Backend:   c.active,
		Demoted:   c.demoted,
	}
}

// State returns the current state.
func (c *Controller) State() StateType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Current()
}

func (c *Controller) stopLocked(msgs *[]Msg) {
	if c.machine.Current() == StateStopped {
		return
	}

	c.token++
	if c.sessionCancel != nil {
		c.sessionCancel()
		c.sessionCancel = nil
	}
	c.speakCancel = nil
	c.index = 0
	if c.highlighter != nil {
		c.highlighter.Clear()
	}
	c.transitionLocked(StateStopped, msgs)
	*msgs = append(*msgs, ProgressMsg{Index: -1, Total: len(c.sentences)})
}

func (c *Controller) selectBackendLocked() BackendKind {
	if c.remote == nil {
		return BackendOnDevice
	}
	if p, ok := c.remote.(Prober); ok && !p.Reachable() {
		return BackendOnDevice
	}
	return BackendRemote
}

func (c *Controller) backendLocked() Backend {
	if c.active == BackendRemote && c.remote != nil {
		return c.remote
	}
	return c.onDevice
}

// speakLocked issues the current sentence to the active backend. The
// completion captures the session token and utterance number it was
// issued under.
func (c *Controller) speakLocked(msgs *[]Msg) {
	if c.speakCancel != nil {
		c.speakCancel()
	}
	c.utterance++
	ctx, cancel := context.WithCancel(c.sessionCtx)
	c.speakCancel = cancel

	token, utterance, index := c.token, c.utterance, c.index
	backend := c.backendLocked()
	kind := backend.Kind()

	if c.highlighter != nil {
		c.highlighter.SetActive(index)
	}
	*msgs = append(*msgs, ProgressMsg{Index: index, Total: len(c.sentences)})

	if p, ok := backend.(Prefetcher); ok && c.prefetch > 0 {
		end := min(index+1+c.prefetch, len(c.sentences))
		if index+1 < end {
			upcoming := append([]Sentence(nil), c.sentences[index+1:end]...)
			p.Prefetch(c.sessionCtx, upcoming, c.params)
		}
	}

	backend.Speak(ctx, c.sentences[index], c.params, func(err error) {
		c.handleEnd(token, utterance, kind, err)
	})
}

func (c *Controller) handleEnd(token, utterance uint64, kind BackendKind, err error) {
	var msgs []Msg

	c.mu.Lock()
	if token != c.token || utterance != c.utterance || c.machine.Current() != StatePlaying {
		c.mu.Unlock()
		c.logger.Debug("Ignoring stale completion", "token", token, "utterance", utterance)
		return
	}

	if err != nil && kind == BackendRemote {
		c.logger.Warn("Remote synthesis failed, using on-device speech", "index", c.index, "err", err)
		c.active = BackendOnDevice
		if !c.demoted {
			c.demoted = true
			msgs = append(msgs, NoticeMsg{Kind: NoticeRemoteUnavailable, Err: err})
		}
		c.speakLocked(&msgs)
		c.mu.Unlock()
		c.bus.Publish(msgs...)
		return
	}

	if err != nil {
		c.logger.Error("Playback failed", "index", c.index, "backend", kind, "err", err)
		msgs = append(msgs, NoticeMsg{Kind: NoticePlaybackError, Err: err})
	}

	if c.index+1 < len(c.sentences) {
		c.index++
		c.speakLocked(&msgs)
		c.mu.Unlock()
		c.bus.Publish(msgs...)
		return
	}

	c.stopLocked(&msgs)
	handler := c.onExhausted
	ctx := c.ctx
	if handler == nil {
		msgs = append(msgs, NoticeMsg{Kind: NoticeReadingCompleted})
	}
	c.mu.Unlock()

	c.bus.Publish(msgs...)
	if handler != nil {
		handler(ctx)
	}
}

func (c *Controller) transitionLocked(to StateType, msgs *[]Msg) bool {
	from := c.machine.Current()
	if !c.machine.Transition(to) {
		c.logger.Warn("Invalid state transition", "from", from, "to", to)
		return false
	}
	*msgs = append(*msgs, StateChangedMsg{From: from, To: to})
	return true
}
