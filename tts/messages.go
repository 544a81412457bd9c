package tts

import (
	"slices"
	"sync"
)

// Msg is any message published on a Bus.
type Msg interface{}

// StateChangedMsg indicates the playback state has changed.
type StateChangedMsg struct {
	From StateType
	To   StateType
}

// ProgressMsg reports the sentence being spoken. Index is -1 once the
// session stops.
type ProgressMsg struct {
	Index int // Current sentence index
	Total int // Total number of sentences
}

// Fraction returns progress through the chapter from 0 to 1.
func (m ProgressMsg) Fraction() float64 {
	if m.Total == 0 || m.Index < 0 {
		return 0
	}
	return float64(m.Index+1) / float64(m.Total)
}

// NoticeKind enumerates user-facing notifications.
type NoticeKind int

const (
	// NoticeNothingToRead is sent when narration starts on empty text.
	NoticeNothingToRead NoticeKind = iota
	// NoticeReadingCompleted is sent after the last chapter is narrated.
	NoticeReadingCompleted
	// NoticeChapterFinished is sent when a chapter ends without auto-advance.
	NoticeChapterFinished
	// NoticePlaybackError is sent when a sentence could not be spoken.
	NoticePlaybackError
	// NoticeRemoteUnavailable is sent once when a session falls back to on-device
	// speech, and once per controller when the service is unreachable at start.
	NoticeRemoteUnavailable
	// NoticeLoadingNextChapter is sent before auto-advancing.
	NoticeLoadingNextChapter
	// NoticeRecordingPartial is sent when a recording will not contain narration.
	NoticeRecordingPartial
)

// String returns the notification text.
func (k NoticeKind) String() string {
	switch k {
	case NoticeNothingToRead:
		return "Nothing to read"
	case NoticeReadingCompleted:
		return "Reading completed"
	case NoticeChapterFinished:
		return "Chapter finished"
	case NoticePlaybackError:
		return "Error in playback"
	case NoticeRemoteUnavailable:
		return "Remote voice unavailable, using system voice"
	case NoticeLoadingNextChapter:
		return "Loading next chapter"
	case NoticeRecordingPartial:
		return "Recording without narration: audio capture unavailable"
	default:
		return "unknown"
	}
}

// NoticeMsg is a short user-facing notification.
type NoticeMsg struct {
	Kind NoticeKind
	Err  error // Set for NoticePlaybackError and NoticeRemoteUnavailable
}

// String returns the notification text.
func (m NoticeMsg) String() string {
	return m.Kind.String()
}

// Bus delivers messages to subscribers in publish order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Msg)
}

// NewBus creates an empty message bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Msg))}
}

// Subscribe registers fn for all future messages. The returned function
// removes the subscription.
func (b *Bus) Subscribe(fn func(Msg)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers msgs to every subscriber synchronously.
func (b *Bus) Publish(msgs ...Msg) {
	if len(msgs) == 0 {
		return
	}

	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	fns := make([]func(Msg), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()

	for _, msg := range msgs {
		for _, fn := range fns {
			fn(msg)
		}
	}
}

// Notify publishes a notice.
func (b *Bus) Notify(kind NoticeKind, err error) {
	b.Publish(NoticeMsg{Kind: kind, Err: err})
}
