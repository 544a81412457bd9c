// Package chapter moves narration on to the next chapter when the current
// one runs out of sentences.
package chapter

import (
	"context"
	"errors"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/tts"
)

// MinChapterChars is the default number of non-space characters a chapter
// needs to be selected by auto-advance.
const MinChapterChars = 80

// Chapters resolves chapters in document order.
type Chapters interface {
	Current() (id string, ok bool)
	Next(after string) (id string, ok bool)
	Text(id string) (string, error)
}

// Navigator selects a chapter in the reader. An intentional selection comes
// from narration and must not be treated as the user leaving the page.
type Navigator interface {
	Select(id string, intentional bool) error
}

// Flags exposes the preferences that gate auto-advance.
type Flags interface {
	AutoAdvance() bool
	Presenting() bool
}

// Player is the part of the controller the coordinator drives.
type Player interface {
	Load(text string)
	Start() error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMinChars overrides MinChapterChars.
func WithMinChars(n int) Option {
	return func(c *Coordinator) { c.minChars = max(n, 0) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// Coordinator decides what happens when a chapter has been narrated.
type Coordinator struct {
	chapters Chapters
	nav      Navigator
	flags    Flags
	player   Player
	bus      *tts.Bus
	minChars int
	logger   *log.Logger
}

// New creates a coordinator.
func New(chapters Chapters, nav Navigator, flags Flags, player Player, bus *tts.Bus, opts ...Option) *Coordinator {
	c := &Coordinator{
		chapters: chapters,
		nav:      nav,
		flags:    flags,
		player:   player,
		bus:      bus,
		minChars: MinChapterChars,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Default().WithPrefix("chapter")
	}
	return c
}

// Attach registers the coordinator as the controller's exhausted handler.
func (c *Coordinator) Attach(ctrl *tts.Controller) {
	ctrl.OnExhausted(c.OnChapterExhausted)
}

// OnChapterExhausted runs after the last sentence of a chapter. It advances
// only when auto-advance is on and the presentation view is showing.
func (c *Coordinator) OnChapterExhausted(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if !c.flags.AutoAdvance() || !c.flags.Presenting() {
		c.logger.Debug("Chapter finished", "auto_advance", c.flags.AutoAdvance(), "presenting", c.flags.Presenting())
		c.bus.Notify(tts.NoticeChapterFinished, nil)
		return
	}

	current, ok := c.chapters.Current()
	if !ok {
		c.bus.Notify(tts.NoticeReadingCompleted, nil)
		return
	}

	next, text, err := c.Resolve(current)
	if errors.Is(err, tts.ErrNoNextChapter) {
		c.logger.Info("Reading completed", "last", current)
		c.bus.Notify(tts.NoticeReadingCompleted, nil)
		return
	}
	if err != nil {
		c.logger.Error("Failed to resolve next chapter", "after", current, "err", err)
		c.bus.Notify(tts.NoticePlaybackError, err)
		return
	}

	c.bus.Notify(tts.NoticeLoadingNextChapter, nil)
	c.logger.Info("Advancing to next chapter", "from", current, "to", next)

	if err := c.nav.Select(next, true); err != nil {
		c.logger.Error("Failed to select chapter", "id", next, "err", err)
		c.bus.Notify(tts.NoticePlaybackError, err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	c.player.Load(text)
	if err := c.player.Start(); err != nil && !errors.Is(err, tts.ErrNothingToRead) {
		c.logger.Error("Failed to start next chapter", "id", next, "err", err)
	}
}

// Resolve returns the first chapter after the given one whose text is long
// enough to narrate. Chapters that cannot be read are skipped.
func (c *Coordinator) Resolve(after string) (string, string, error) {
	seen := map[string]bool{after: true}
	for {
		next, ok := c.chapters.Next(after)
		if !ok || seen[next] {
			return "", "", tts.ErrNoNextChapter
		}
		seen[next] = true
		after = next

		text, err := c.chapters.Text(next)
		if err != nil {
			c.logger.Warn("Skipping unreadable chapter", "id", next, "err", err)
			continue
		}
		if n := visibleChars(text); n < c.minChars {
			c.logger.Debug("Skipping short chapter", "id", next, "chars", n)
			continue
		}
		return next, text, nil
	}
}

func visibleChars(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
