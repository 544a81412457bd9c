// Package ui provides the terminal reader for lector.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/internal/library"
	"github.com/dgnsrekt/lector/internal/recording"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/highlight"
	"github.com/dustin/go-humanize"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show notices like "Reading completed"
	recordingTick        = time.Second
	ellipsis             = "…"
)

// Narrator is the part of the narration controller the reader drives.
type Narrator interface {
	Load(text string)
	Toggle() error
	Stop()
	Session() tts.PlaybackSession
}

// Recorder records narration mixed with an ambient track.
type Recorder interface {
	Start(ctx context.Context) (*recording.Session, error)
	Stop() (*recording.Result, error)
	Active() bool
	Progress() (time.Duration, int)
}

// Options wires the reader to its collaborators. Recorder and Bridge are
// optional.
type Options struct {
	Library   *library.Library
	Narrator  Narrator
	Highlight *highlight.Synchronizer
	Recorder  Recorder
	Flags     *Flags
	Bridge    *Bridge

	// Clipboard writes the copied sentence, clipboard.WriteAll by default
	Clipboard func(string) error
}

// NewProgram returns a new Tea program. Messages sent through opts.Bridge
// are delivered to it.
func NewProgram(cfg Config, opts Options) *tea.Program {
	log.Debug(
		"Starting lector",
		"path", cfg.Path,
		"auto_advance", cfg.AutoAdvance,
		"presentation", cfg.Presentation,
	)

	programOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		programOpts = append(programOpts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(newModel(cfg, opts), programOpts...)
	if opts.Bridge != nil {
		opts.Bridge.Attach(p)
	}
	return p
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	statusMessageTimeoutMsg struct{}
	libraryChangedMsg       library.Event
	recordingTickMsg        time.Time
	recordingStartedMsg     struct {
		session *recording.Session
		err     error
	}
	recordingStoppedMsg struct {
		result *recording.Result
		err    error
	}
)

// Common stuff we'll need to access in all views.
type commonModel struct {
	cfg    Config
	width  int
	height int
}

type model struct {
	common   *commonModel
	keys     keyMap
	help     help.Model
	viewport viewport.Model
	progress progress.Model

	lib       *library.Library
	narrator  Narrator
	highlight *highlight.Synchronizer
	recorder  Recorder
	flags     *Flags
	bridge    *Bridge
	copy      func(string) error

	// Chapter on screen
	chapter library.Chapter
	text    string

	// Narration as last reported on the bus
	state   tts.StateType
	index   int
	total   int
	backend tts.BackendKind
	demoted bool

	recording   bool
	recDuration time.Duration
	recBytes    int

	statusMessage      string
	statusMessageTimer *time.Timer
	showHelp           bool
	fatalErr           error

	ctx    context.Context
	cancel context.CancelFunc
}

func newModel(cfg Config, opts Options) model {
	common := &commonModel{cfg: cfg}
	ctx, cancel := context.WithCancel(context.Background())

	m := model{
		common:    common,
		keys:      newKeyMap(),
		help:      help.New(),
		viewport:  viewport.New(0, 0),
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		lib:       opts.Library,
		narrator:  opts.Narrator,
		highlight: opts.Highlight,
		recorder:  opts.Recorder,
		flags:     opts.Flags,
		bridge:    opts.Bridge,
		copy:      opts.Clipboard,
		index:     -1,
		ctx:       ctx,
		cancel:    cancel,
	}
	if m.flags == nil {
		m.flags = NewFlags(cfg.AutoAdvance, cfg.Presentation)
	}
	if m.copy == nil {
		m.copy = clipboard.WriteAll
	}
	if m.highlight == nil {
		m.highlight = highlight.New(nil, m.flags.Presenting)
	}

	if ch, ok := m.lib.Current(); ok {
		if err := m.openChapter(ch, true); err != nil {
			log.Error("unable to open chapter", "chapter", ch.ID, "error", err)
			m.fatalErr = err
		}
	}
	return m
}

func (m model) Init() tea.Cmd {
	if m.bridge == nil {
		return nil
	}
	return watchLibrary(m.ctx, m.lib, m.bridge)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.shutdown()
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.setSize()
		m.renderContent()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.shutdown()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Toggle):
			if err := m.narrator.Toggle(); err != nil && !errors.Is(err, tts.ErrNothingToRead) {
				log.Warn("Toggle failed", "err", err)
				cmds = append(cmds, m.showStatusMessage(err.Error()))
			}

		case key.Matches(msg, m.keys.Stop):
			m.narrator.Stop()

		case key.Matches(msg, m.keys.NextChapter):
			cmds = append(cmds, m.navigate(1))

		case key.Matches(msg, m.keys.PrevChapter):
			cmds = append(cmds, m.navigate(-1))

		case key.Matches(msg, m.keys.Present):
			presenting := !m.flags.Presenting()
			m.flags.SetPresenting(presenting)
			if !presenting {
				if marker, ok := m.highlight.Active(); ok {
					m.scrollTo(marker)
				}
			}

		case key.Matches(msg, m.keys.AutoAdvance):
			if m.flags.ToggleAutoAdvance() {
				cmds = append(cmds, m.showStatusMessage("Auto-advance on"))
			} else {
				cmds = append(cmds, m.showStatusMessage("Auto-advance off"))
			}

		case key.Matches(msg, m.keys.Record):
			cmds = append(cmds, m.toggleRecording())

		case key.Matches(msg, m.keys.Copy):
			cmds = append(cmds, m.copySentence())

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
			m.setSize()

		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	case tts.StateChangedMsg:
		m.state = msg.To
		session := m.narrator.Session()
		m.backend = session.Backend
		m.demoted = session.Demoted
		m.renderContent()

	case tts.ProgressMsg:
		m.index = msg.Index
		m.total = msg.Total
		m.renderContent()
		cmds = append(cmds, m.progress.SetPercent(msg.Fraction()))

	case tts.NoticeMsg:
		if msg.Err != nil {
			log.Debug("Narration notice", "notice", msg.Kind, "err", msg.Err)
		}
		if msg.Kind == tts.NoticeRemoteUnavailable {
			m.demoted = true
		}
		cmds = append(cmds, m.showStatusMessage(msg.String()))

	case scrollMsg:
		if !m.flags.Presenting() {
			m.scrollTo(highlight.Marker(msg))
		}

	case chapterSelectedMsg:
		ch, ok := m.lib.Current()
		if !ok || ch.ID != msg.ID {
			break
		}
		if msg.Intentional {
			// Narration already loaded the chapter; only the view follows.
			if err := m.openChapter(ch, false); err != nil {
				cmds = append(cmds, m.showStatusMessage(err.Error()))
			}
			break
		}
		m.narrator.Stop()
		if err := m.openChapter(ch, true); err != nil {
			cmds = append(cmds, m.showStatusMessage(err.Error()))
		}

	case libraryChangedMsg:
		cmds = append(cmds, m.libraryChanged(library.Event(msg)))

	case recordingStartedMsg:
		if msg.err != nil {
			log.Error("Recording failed", "err", msg.err)
			cmds = append(cmds, m.showStatusMessage("Recording failed: "+msg.err.Error()))
			break
		}
		m.recording = true
		m.recDuration, m.recBytes = 0, 0
		cmds = append(cmds, recordingTickCmd())
		if msg.session.NarrationCaptured {
			cmds = append(cmds, m.showStatusMessage("Recording"))
		}

	case recordingStoppedMsg:
		m.recording = false
		if msg.err != nil {
			log.Error("Recording could not be saved", "err", msg.err)
			cmds = append(cmds, m.showStatusMessage("Recording failed: "+msg.err.Error()))
			break
		}
		cmds = append(cmds, m.showStatusMessage(fmt.Sprintf("Saved %s (%s)",
			msg.result.Path, humanize.Bytes(uint64(msg.result.Bytes)))))

	case recordingTickMsg:
		if !m.recording || m.recorder == nil {
			break
		}
		m.recDuration, m.recBytes = m.recorder.Progress()
		cmds = append(cmds, recordingTickCmd())

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		cmds = append(cmds, cmd)

	case statusMessageTimeoutMsg:
		m.statusMessage = ""

	case errMsg:
		m.fatalErr = msg
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr)
	}
	if m.flags.Presenting() {
		return m.presentationView()
	}
	return m.readingView()
}

// openChapter puts ch on screen. With load set the narrator is given the
// new text as well.
func (m *model) openChapter(ch library.Chapter, load bool) error {
	text, err := m.lib.Text(ch.ID)
	if err != nil {
		return err
	}
	m.chapter = ch
	m.text = text
	m.index = -1
	if load {
		m.narrator.Load(text)
	}
	m.viewport.GotoTop()
	m.renderContent()
	return nil
}

func (m *model) navigate(delta int) tea.Cmd {
	var (
		ch library.Chapter
		ok bool
	)
	if delta > 0 {
		ch, ok = m.lib.Next(m.chapter.ID)
	} else {
		ch, ok = m.lib.Prev(m.chapter.ID)
	}
	if !ok {
		if delta > 0 {
			return m.showStatusMessage("No next chapter")
		}
		return m.showStatusMessage("No previous chapter")
	}

	m.narrator.Stop()
	if err := m.lib.Select(ch.ID); err != nil {
		return m.showStatusMessage(err.Error())
	}
	if err := m.openChapter(ch, true); err != nil {
		return m.showStatusMessage(err.Error())
	}
	return nil
}

func (m *model) libraryChanged(e library.Event) tea.Cmd {
	switch e.Kind {
	case library.ChaptersChanged:
		ch, ok := m.lib.Current()
		if !ok {
			return nil
		}
		if ch.ID != m.chapter.ID {
			m.narrator.Stop()
			if err := m.openChapter(ch, true); err != nil {
				return m.showStatusMessage(err.Error())
			}
		} else {
			m.chapter = ch
		}
		return m.showStatusMessage("Chapters updated")

	case library.CurrentChanged:
		if m.state == tts.StatePlaying || m.state == tts.StatePaused {
			return m.showStatusMessage("Chapter changed on disk")
		}
		if err := m.openChapter(e.Chapter, true); err != nil {
			return m.showStatusMessage(err.Error())
		}
		return m.showStatusMessage("Chapter reloaded")
	}
	return nil
}

func (m *model) toggleRecording() tea.Cmd {
	if m.recorder == nil {
		return m.showStatusMessage("Recording unavailable")
	}
	if m.recording {
		return stopRecordingCmd(m.recorder)
	}
	return startRecordingCmd(m.ctx, m.recorder)
}

func (m *model) copySentence() tea.Cmd {
	marker, ok := m.highlight.Active()
	if !ok {
		return m.showStatusMessage("Nothing to copy")
	}
	text := m.highlight.Text()
	if marker.End > len(text) {
		return nil
	}
	if err := m.copy(text[marker.Start:marker.End]); err != nil {
		log.Warn("Copy failed", "err", err)
		return m.showStatusMessage("Copy failed")
	}
	return m.showStatusMessage("Copied sentence")
}

// Show a notice in the status bar for a few seconds.
func (m *model) showStatusMessage(msg string) tea.Cmd {
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

// shutdown is the page-unload path: narration and any recording stop.
func (m *model) shutdown() {
	m.narrator.Stop()
	if m.recorder != nil && m.recorder.Active() {
		if res, err := m.recorder.Stop(); err != nil {
			log.Error("Recording could not be saved", "err", err)
		} else {
			log.Info("Recording saved on quit", "path", res.Path)
		}
	}
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.cancel()
}

// COMMANDS

func watchLibrary(ctx context.Context, lib *library.Library, bridge *Bridge) tea.Cmd {
	return func() tea.Msg {
		err := lib.Watch(ctx, func(e library.Event) {
			bridge.Send(libraryChangedMsg(e))
		})
		if err != nil {
			log.Warn("Not watching chapters", "err", err)
		}
		return nil
	}
}

func startRecordingCmd(ctx context.Context, r Recorder) tea.Cmd {
	return func() tea.Msg {
		session, err := r.Start(ctx)
		return recordingStartedMsg{session: session, err: err}
	}
}

func stopRecordingCmd(r Recorder) tea.Cmd {
	return func() tea.Msg {
		res, err := r.Stop()
		return recordingStoppedMsg{result: res, err: err}
	}
}

func recordingTickCmd() tea.Cmd {
	return tea.Tick(recordingTick, func(t time.Time) tea.Msg {
		return recordingTickMsg(t)
	})
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

// ETC

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
