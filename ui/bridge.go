package ui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/internal/queue"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/highlight"
)

// scrollMsg asks the reading view to bring a sentence into view.
type scrollMsg highlight.Marker

// sender is satisfied by *tea.Program.
type sender interface {
	Send(msg tea.Msg)
}

// Bridge carries messages from narration callbacks into the bubbletea
// program. Sends never block the caller, which may be holding controller
// locks, and are delivered in the order they were made.
type Bridge struct {
	queue *queue.Queue[tea.Msg]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBridge creates a bridge. Messages sent before Attach are buffered.
func NewBridge() *Bridge {
	return &Bridge{queue: queue.New[tea.Msg]()}
}

// Attach starts delivering messages to p.
func (b *Bridge) Attach(p sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		if err := b.queue.Drain(ctx, p.Send); err != nil && ctx.Err() == nil {
			log.Debug("Bridge stopped", "err", err)
		}
	}(b.done)
}

// Send queues msg for the program.
func (b *Bridge) Send(msg tea.Msg) {
	if err := b.queue.Push(msg); err != nil {
		log.Debug("Dropping message after close", "msg", msg)
	}
}

// Publish forwards a narration message. It has the signature of a Bus
// subscriber.
func (b *Bridge) Publish(msg tts.Msg) {
	b.Send(msg)
}

// Viewport returns a highlight viewport that scrolls the reading view.
func (b *Bridge) Viewport() highlight.Viewport {
	return highlight.ViewportFunc(func(m highlight.Marker) {
		b.Send(scrollMsg(m))
	})
}

// Close delivers what is already queued and stops the bridge.
func (b *Bridge) Close() {
	b.queue.Close()

	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done != nil {
		<-done
	}
}
