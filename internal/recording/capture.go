package recording

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/dgnsrekt/lector/internal/audio"
)

// Capturer streams system audio as raw 16-bit signed little-endian PCM.
type Capturer interface {
	Capture(ctx context.Context, f audio.Format) (io.ReadCloser, error)
}

// CommandCapturer records from a PulseAudio or PipeWire client that writes
// PCM to stdout.
type CommandCapturer struct {
	Binary string
	Args   func(f audio.Format) []string
}

// Parec captures the default sink's monitor with parec.
func Parec(binary string) *CommandCapturer {
	if binary == "" {
		binary = "parec"
	}
	return &CommandCapturer{
		Binary: binary,
		Args: func(f audio.Format) []string {
			return []string{
				"--device=@DEFAULT_MONITOR@",
				"--format=s16le",
				"--rate=" + strconv.Itoa(f.SampleRate),
				"--channels=" + strconv.Itoa(f.Channels),
				"--raw",
			}
		},
	}
}

// PwRecord captures the default sink's monitor with pw-record.
func PwRecord(binary string) *CommandCapturer {
	if binary == "" {
		binary = "pw-record"
	}
	return &CommandCapturer{
		Binary: binary,
		Args: func(f audio.Format) []string {
			return []string{
				"--target=@DEFAULT_MONITOR@",
				"--format=s16",
				"--rate=" + strconv.Itoa(f.SampleRate),
				"--channels=" + strconv.Itoa(f.Channels),
				"-",
			}
		},
	}
}

// DetectCapturer returns a capturer for the first client found on PATH, or
// nil when there is none.
func DetectCapturer() Capturer {
	for _, c := range []*CommandCapturer{Parec(""), PwRecord("")} {
		if _, err := exec.LookPath(c.Binary); err == nil {
			return c
		}
	}
	return nil
}

// Capture starts the client. A missing binary or a client that cannot start
// is reported as ErrCaptureDenied.
func (c *CommandCapturer) Capture(ctx context.Context, f audio.Format) (io.ReadCloser, error) {
	path, err := exec.LookPath(c.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureDenied, err)
	}

	cmd := exec.CommandContext(ctx, path, c.Args(f)...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureDenied, err)
	}
	return &processReader{ReadCloser: out, cmd: cmd}, nil
}

type processReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *processReader) Close() error {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	return nil
}
