// Package highlight keeps a visual marker on the sentence being narrated.
package highlight

import (
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/tts"
)

// Marker wraps one sentence's span of the decorated text.
type Marker struct {
	Index int // Sentence index
	Start int // Byte offset into the decorated text
	End   int
}

// Viewport scrolls a marker into view.
type Viewport interface {
	ScrollTo(m Marker)
}

// ViewportFunc adapts a function to the Viewport interface.
type ViewportFunc func(Marker)

// ScrollTo calls f(m).
func (f ViewportFunc) ScrollTo(m Marker) { f(m) }

// Synchronizer maps sentence indices to markers over a text and tracks the
// active one. It implements tts.Highlighter.
type Synchronizer struct {
	mu sync.RWMutex

	text    string
	markers []Marker
	byIndex map[int]int // sentence index -> position in markers
	active  int         // position in markers, -1 when none

	viewport   Viewport
	presenting func() bool

	onChangeCallbacks []func(Marker, bool)
}

var _ tts.Highlighter = (*Synchronizer)(nil)

// New creates a synchronizer. presenting reports whether the full-screen
// presentation view is showing, in which case scrolling is skipped; it may
// be nil.
func New(viewport Viewport, presenting func() bool) *Synchronizer {
	return &Synchronizer{
		byIndex:    make(map[int]int),
		active:     -1,
		viewport:   viewport,
		presenting: presenting,
	}
}

// Decorate wraps each sentence of text in a marker. Markers are placed in
// order and never overlap; a sentence whose range starts before the end of
// the previous marker, or does not match the text, is left undecorated.
func (s *Synchronizer) Decorate(text string, sentences []tts.Sentence) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.text = text
	s.markers = s.markers[:0]
	s.byIndex = make(map[int]int, len(sentences))
	s.active = -1

	prevEnd := 0
	for _, sent := range sentences {
		if sent.Start < prevEnd || sent.End > len(text) || sent.Start >= sent.End ||
			text[sent.Start:sent.End] != sent.Text {
			log.Debug("Skipping sentence without a valid range", "index", sent.Index, "start", sent.Start, "end", sent.End)
			continue
		}
		if _, dup := s.byIndex[sent.Index]; dup {
			continue
		}
		s.byIndex[sent.Index] = len(s.markers)
		s.markers = append(s.markers, Marker{Index: sent.Index, Start: sent.Start, End: sent.End})
		prevEnd = sent.End
	}
}

// SetActive clears the previous active marker and marks the one for index,
// then scrolls it into view unless presentation mode is showing.
func (s *Synchronizer) SetActive(index int) {
	s.mu.Lock()
	pos, ok := s.byIndex[index]
	if !ok {
		s.active = -1
		s.mu.Unlock()
		return
	}
	s.active = pos
	m := s.markers[pos]
	viewport := s.viewport
	presenting := s.presenting
	callbacks := append([]func(Marker, bool){}, s.onChangeCallbacks...)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(m, true)
	}

	if viewport == nil || (presenting != nil && presenting()) {
		return
	}
	viewport.ScrollTo(m)
}

// Clear removes all decoration.
func (s *Synchronizer) Clear() {
	s.mu.Lock()
	s.markers = nil
	s.byIndex = make(map[int]int)
	s.active = -1
	callbacks := append([]func(Marker, bool){}, s.onChangeCallbacks...)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(Marker{Index: -1}, false)
	}
}

// Active returns the active marker.
func (s *Synchronizer) Active() (Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active < 0 {
		return Marker{}, false
	}
	return s.markers[s.active], true
}

// Markers returns a copy of the marker list.
func (s *Synchronizer) Markers() []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Marker(nil), s.markers...)
}

// Text returns the decorated text.
func (s *Synchronizer) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// OnChange registers a callback for active marker changes. The callback
// receives false when decoration is cleared.
func (s *Synchronizer) OnChange(callback func(m Marker, active bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChangeCallbacks = append(s.onChangeCallbacks, callback)
}

// Render returns the decorated text with every marker passed through style.
// Text outside markers is returned unchanged.
func (s *Synchronizer) Render(style func(text string, active bool) string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.markers) == 0 || style == nil {
		return s.text
	}

	var b strings.Builder
	b.Grow(len(s.text))
	prev := 0
	for i, m := range s.markers {
		b.WriteString(s.text[prev:m.Start])
		b.WriteString(style(s.text[m.Start:m.End], i == s.active))
		prev = m.End
	}
	b.WriteString(s.text[prev:])
	return b.String()
}
