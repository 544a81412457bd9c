package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dgnsrekt/lector/internal/library"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"
)

var chaptersCmd = &cobra.Command{
	Use:     "chapters [BOOK] [QUERY]",
	Short:   "List the chapters of a book",
	Long:    paragraph(fmt.Sprintf("\n%s the chapters of a book in reading order. A query fuzzy-matches chapter titles.", keyword("List"))),
	Example: paragraph("lector chapters ~/books/dracula\nlector chapters ~/books/dracula harker"),
	Args:    cobra.MaximumNArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		var query string
		if len(args) == 2 {
			query = args[1]
		}
		lib, err := library.Open(bookArg(args))
		if err != nil {
			return fmt.Errorf("unable to open book: %w", err)
		}
		return printChapters(os.Stdout, lib.Find(query), terminalWidth())
	},
}

// printChapters writes one chapter per line. Lines are cut at width unless
// width is 0.
func printChapters(w io.Writer, chapters []library.Chapter, width int) error {
	if len(chapters) == 0 {
		_, err := fmt.Fprintln(w, "No chapters found.")
		return err //nolint:wrapcheck
	}
	for _, ch := range chapters {
		line := fmt.Sprintf("%3d  %s  %s", ch.Index+1, ch.Title, faint(ch.ID))
		if width > 0 {
			line = truncate.StringWithTail(line, uint(width), "…") //nolint:gosec
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err //nolint:wrapcheck
		}
	}
	return nil
}
