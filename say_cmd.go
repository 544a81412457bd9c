package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/dgnsrekt/lector/internal/library"
	"github.com/dgnsrekt/lector/tts"
	"github.com/spf13/cobra"
)

var (
	sayChapter string

	sayCmd = &cobra.Command{
		Use:     "say [BOOK]",
		Short:   "Narrate one chapter without the reader",
		Long:    paragraph(fmt.Sprintf("\n%s one chapter aloud and exit. Progress is printed to stderr.", keyword("Read"))),
		Example: paragraph("lector say ~/books/dracula --chapter harker"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runSay(ctx, bookArg(args), os.Stderr)
		},
	}
)

func init() {
	sayCmd.Flags().StringVarP(&sayChapter, "chapter", "c", "", "chapter to read, matched against titles (default first)")
}

func runSay(ctx context.Context, path string, w io.Writer) error {
	cfg, err := tts.LoadConfigFromViper()
	if err != nil {
		return err //nolint:wrapcheck
	}

	lib, err := library.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open book: %w", err)
	}
	ch, err := pickChapter(lib, sayChapter)
	if err != nil {
		return err
	}
	text, err := lib.Text(ch.ID)
	if err != nil {
		return fmt.Errorf("unable to read chapter: %w", err)
	}

	n, err := newNarration(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer n.Close()

	done := make(chan struct{})
	unsubscribe := n.bus.Subscribe(sayProgress(w, ch.Title, done))
	defer unsubscribe()

	n.ctrl.Load(text)
	if err := n.ctrl.Start(); err != nil {
		return err //nolint:wrapcheck
	}

	select {
	case <-done:
	case <-ctx.Done():
		n.ctrl.Stop()
		fmt.Fprintln(w)
	}
	return nil
}

// pickChapter returns the best match for query, or the first chapter.
func pickChapter(lib *library.Library, query string) (library.Chapter, error) {
	if query == "" {
		ch, ok := lib.Current()
		if !ok {
			return library.Chapter{}, library.ErrEmptyLibrary
		}
		return ch, nil
	}
	matches := lib.Find(query)
	if len(matches) == 0 {
		return library.Chapter{}, fmt.Errorf("%w: %q", library.ErrChapterNotFound, query)
	}
	return matches[0], nil
}

// sayProgress prints narration progress to w and closes done when the
// chapter has been read.
func sayProgress(w io.Writer, title string, done chan struct{}) func(tts.Msg) {
	var once sync.Once
	return func(msg tts.Msg) {
		switch msg := msg.(type) {
		case tts.ProgressMsg:
			fmt.Fprintf(w, "\r%s %d/%d", title, msg.Index+1, msg.Total)
		case tts.NoticeMsg:
			switch msg.Kind {
			case tts.NoticeReadingCompleted:
				fmt.Fprintln(w)
				once.Do(func() { close(done) })
			case tts.NoticePlaybackError, tts.NoticeRemoteUnavailable:
				detail := msg.String()
				if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
					detail += ": " + msg.Err.Error()
				}
				fmt.Fprintf(w, "\n%s\n", detail)
			}
		}
	}
}
