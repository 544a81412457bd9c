package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/engines/remote"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the synthesis service is reachable",
	Long:  paragraph(fmt.Sprintf("\n%s the health of the synthesis service set in narration.remote.url.", keyword("Check"))),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := tts.LoadConfigFromViper()
		if err != nil {
			return err //nolint:wrapcheck
		}
		return probe(cmd.Context(), os.Stdout, cfg.Remote)
	},
}

var errNoRemote = errors.New("no synthesis service configured, set narration.remote.url")

func probe(ctx context.Context, w io.Writer, cfg tts.RemoteConfig) error {
	if !cfg.Enabled() {
		return errNoRemote
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()

	client := remote.NewClient(cfg.URL, cfg.Timeout)
	start := time.Now()
	if err := client.Health(ctx); err != nil {
		fmt.Fprintf(w, "%s %s\n", client.BaseURL(), faint("unreachable"))
		return fmt.Errorf("%w: %w", tts.ErrRemoteUnreachable, err)
	}
	fmt.Fprintf(w, "%s %s %s\n", client.BaseURL(), keyword("ok"), faint(time.Since(start).Round(time.Millisecond).String()))
	return nil
}
