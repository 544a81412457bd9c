package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/highlight"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

const (
	statusBarHeight     = 1
	progressBarHeight   = 1
	presentationPadding = 4
	maxPresentWidth     = 72
)

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(lipgloss.Color("#FF5F87")).
			Bold(true).
			Render

	statusBarPositionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarRecordingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFDF5")).
				Background(red).
				Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render

	titleStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Italic(true)

	presentStyle = lipgloss.NewStyle().Bold(true)

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(red).
			Padding(0, 1)
)

func (m *model) setSize() {
	m.viewport.Width = m.common.width
	m.viewport.Height = max(0, m.common.height-statusBarHeight)
	if m.showHelp {
		m.help.Width = m.common.width
		m.viewport.Height = max(0, m.viewport.Height-lipgloss.Height(m.helpView()))
	}
	m.progress.Width = max(0, m.common.width-presentationPadding*2)
}

func (m *model) wrapWidth() int {
	w := m.viewport.Width
	if limit := int(m.common.cfg.MaxWidth); limit > 0 && (w == 0 || limit < w) { //nolint:gosec
		w = limit
	}
	return w
}

// renderContent redraws the chapter text, with the narrated sentence
// highlighted when the highlight is decorating the text on screen.
func (m *model) renderContent() {
	body := m.text
	if m.highlight != nil && m.highlight.Text() == m.text && m.index >= 0 {
		style := m.highlightStyle()
		body = m.highlight.Render(func(s string, active bool) string {
			if !active {
				return s
			}
			// Style line by line so lipgloss does not pad a multi-line block.
			lines := strings.Split(s, "\n")
			for i, l := range lines {
				lines[i] = style.Render(l)
			}
			return strings.Join(lines, "\n")
		})
	}
	if w := m.wrapWidth(); w > 0 {
		body = wordwrap.String(body, w)
	}
	m.viewport.SetContent(body)
}

func (m *model) highlightStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.common.cfg.HighlightColor)).
		Foreground(lipgloss.Color("#1B1B1B"))
}

// scrollTo puts the line holding the start of marker a third of the way
// down the viewport.
func (m *model) scrollTo(marker highlight.Marker) {
	text := m.highlight.Text()
	if marker.Start > len(text) || text != m.text {
		return
	}
	prefix := text[:marker.Start]
	if w := m.wrapWidth(); w > 0 {
		prefix = wordwrap.String(prefix, w)
	}
	line := strings.Count(prefix, "\n")
	m.viewport.SetYOffset(max(0, line-m.viewport.Height/3))
}

// VIEWS

func (m model) readingView() string {
	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")
	m.statusBarView(&b)
	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}
	return b.String()
}

// presentationView shows only the sentence being narrated.
func (m model) presentationView() string {
	width := max(0, m.common.width)
	height := max(0, m.common.height-statusBarHeight-progressBarHeight)

	sentence := m.currentSentence()
	if sentence == "" {
		sentence = m.chapter.Title
	}
	wrap := min(maxPresentWidth, max(1, width-presentationPadding*2))
	body := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render(m.chapter.Title),
		"",
		presentStyle.Render(wordwrap.String(sentence, wrap)),
	)

	pos := lipgloss.Top
	if m.common.cfg.Centered {
		pos = lipgloss.Center
	}

	var b strings.Builder
	fmt.Fprint(&b, lipgloss.Place(width, height, lipgloss.Center, pos, body)+"\n")
	fmt.Fprint(&b, lipgloss.PlaceHorizontal(width, lipgloss.Center, m.progress.View())+"\n")
	m.statusBarView(&b)
	return b.String()
}

func (m model) currentSentence() string {
	marker, ok := m.highlight.Active()
	if !ok {
		return ""
	}
	text := m.highlight.Text()
	if marker.End > len(text) {
		return ""
	}
	return text[marker.Start:marker.End]
}

func (m model) statusBarView(b *strings.Builder) {
	showStatusMessage := m.statusMessage != ""

	logo := logoStyle(" lector ")

	// Sentence position
	position := " -/- "
	if m.total > 0 && m.index >= 0 {
		position = fmt.Sprintf(" %d/%d ", m.index+1, m.total)
	}
	position = statusBarPositionStyle(position)

	// Recording indicator
	var rec string
	if m.recording {
		rec = statusBarRecordingStyle(fmt.Sprintf(" ● REC %s %s ",
			formatDuration(m.recDuration), humanize.Bytes(uint64(m.recBytes)))) //nolint:gosec
	}

	helpNote := statusBarHelpStyle(" ? Help ")

	// Note
	var note string
	if showStatusMessage {
		note = m.statusMessage
	} else {
		note = m.narrationNote()
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(rec)-
			ansi.PrintableRuneWidth(position)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	if showStatusMessage {
		note = statusBarMessageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	// Empty space
	padding := max(0,
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(rec)-
			ansi.PrintableRuneWidth(position)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := strings.Repeat(" ", padding)
	if showStatusMessage {
		emptySpace = statusBarMessageStyle(emptySpace)
	} else {
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	fmt.Fprintf(b, "%s%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		rec,
		position,
		helpNote,
	)
}

// narrationNote describes the chapter and what narration is doing.
func (m model) narrationNote() string {
	parts := []string{m.chapter.Title}

	switch m.state {
	case tts.StatePlaying, tts.StatePaused:
		backend := m.backend.String()
		if m.demoted {
			backend = tts.BackendOnDevice.String()
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", m.state, backend))
	default:
		parts = append(parts, "space to read")
	}

	if m.flags.AutoAdvance() {
		parts = append(parts, "auto")
	}
	return strings.Join(parts, " · ")
}

func (m model) helpView() string {
	s := indent(m.help.View(m.keys), 2)

	// Fill up empty cells with spaces for background coloring
	if m.common.width > 0 {
		lines := strings.Split(s, "\n")
		for i := range lines {
			n := max(m.common.width-ansi.PrintableRuneWidth(lines[i]), 0)
			lines[i] += strings.Repeat(" ", n)
		}
		s = strings.Join(lines, "\n")
	}
	return helpViewStyle(s)
}

func errorView(err error) string {
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		statusBarNoteStyle("press any key to exit"),
	)
	return "\n" + indent(s, 3)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
