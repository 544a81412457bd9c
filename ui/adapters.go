package ui

import (
	"sync/atomic"

	"github.com/dgnsrekt/lector/internal/library"
	"github.com/dgnsrekt/lector/tts/chapter"
)

// chapterSelectedMsg is sent when the current chapter changes outside of a
// key press.
type chapterSelectedMsg struct {
	ID          string
	Intentional bool
}

// Flags holds the preferences read by chapter auto-advance.
type Flags struct {
	autoAdvance atomic.Bool
	presenting  atomic.Bool
}

var _ chapter.Flags = (*Flags)(nil)

// NewFlags creates flags with the given initial values.
func NewFlags(autoAdvance, presenting bool) *Flags {
	f := &Flags{}
	f.autoAdvance.Store(autoAdvance)
	f.presenting.Store(presenting)
	return f
}

// AutoAdvance reports whether auto-advance is on.
func (f *Flags) AutoAdvance() bool { return f.autoAdvance.Load() }

// Presenting reports whether the presentation view is showing.
func (f *Flags) Presenting() bool { return f.presenting.Load() }

// SetPresenting switches the presentation view flag.
func (f *Flags) SetPresenting(v bool) { f.presenting.Store(v) }

// ToggleAutoAdvance flips auto-advance and returns the new value.
func (f *Flags) ToggleAutoAdvance() bool {
	for {
		old := f.autoAdvance.Load()
		if f.autoAdvance.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Book adapts a library to the chapter coordinator.
type Book struct {
	lib    *library.Library
	bridge *Bridge
}

var (
	_ chapter.Chapters  = (*Book)(nil)
	_ chapter.Navigator = (*Book)(nil)
)

// NewBook wraps lib. Selections are reported to the program through bridge.
func NewBook(lib *library.Library, bridge *Bridge) *Book {
	return &Book{lib: lib, bridge: bridge}
}

// Current returns the selected chapter's ID.
func (b *Book) Current() (string, bool) {
	ch, ok := b.lib.Current()
	return ch.ID, ok
}

// Next returns the ID of the chapter after the given one.
func (b *Book) Next(after string) (string, bool) {
	ch, ok := b.lib.Next(after)
	return ch.ID, ok
}

// Text returns a chapter's plain text.
func (b *Book) Text(id string) (string, error) {
	return b.lib.Text(id)
}

// Select makes id current and tells the program about it.
func (b *Book) Select(id string, intentional bool) error {
	if err := b.lib.Select(id); err != nil {
		return err
	}
	if b.bridge != nil {
		b.bridge.Send(chapterSelectedMsg{ID: id, Intentional: intentional})
	}
	return nil
}
