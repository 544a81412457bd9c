package ondevice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/lector/tts"
)

// ErrInterrupted is returned by a Runner whose context was cancelled while
// speaking. It is benign and never reported as a playback error.
var ErrInterrupted = errors.New("speech interrupted")

// Runner speaks text through a host speech engine and blocks until the
// speech ends.
type Runner interface {
	Name() string
	Run(ctx context.Context, text string, p tts.VoiceParams) error
}

// CommandRunner runs a speech command with the text on stdin.
type CommandRunner struct {
	Binary string
	Args   func(p tts.VoiceParams) []string
	Grace  time.Duration // Time between interrupt and kill on cancel
}

// Name returns the binary name.
func (r *CommandRunner) Name() string {
	return filepath.Base(r.Binary)
}

// Run implements Runner.
func (r *CommandRunner) Run(ctx context.Context, text string, p tts.VoiceParams) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	var args []string
	if r.Args != nil {
		args = r.Args(p)
	}
	cmd := exec.Command(r.Binary, args...) //nolint:gosec

	// stdin is set before start so the text is never raced
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", r.Name(), err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("%s failed: %w, stderr: %s", r.Name(), err, msg)
			}
			return fmt.Errorf("%s failed: %w", r.Name(), err)
		}
		return nil

	case <-ctx.Done():
		// Try graceful shutdown first
		_ = cmd.Process.Signal(os.Interrupt)
		grace := r.Grace
		if grace <= 0 {
			grace = 100 * time.Millisecond
		}
		select {
		case <-done:
		case <-time.After(grace):
			_ = cmd.Process.Kill()
			<-done
		}
		return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}
}

// Espeak returns a runner for espeak-ng or espeak.
func Espeak(binary string) *CommandRunner {
	return &CommandRunner{
		Binary: binary,
		Args: func(p tts.VoiceParams) []string {
			voice := p.Voice
			if voice == "" {
				voice = p.Language
			}
			args := []string{"--stdin"}
			if voice != "" {
				args = append(args, "-v", voice)
			}
			return append(args,
				"-s", strconv.Itoa(scale(175, p.Rate, 80, 450)),
				"-p", strconv.Itoa(scale(50, p.Pitch, 0, 99)),
				"-a", strconv.Itoa(scale(100, p.Volume, 0, 200)),
			)
		},
	}
}

// Say returns a runner for the macOS say command.
func Say(binary string) *CommandRunner {
	return &CommandRunner{
		Binary: binary,
		Args: func(p tts.VoiceParams) []string {
			args := []string{"-f", "-"}
			if p.Voice != "" {
				args = append(args, "-v", p.Voice)
			}
			return append(args, "-r", strconv.Itoa(scale(180, p.Rate, 60, 720)))
		},
	}
}

// DetectRunner picks the speech command for this platform. A non-empty
// binary overrides detection.
func DetectRunner(binary string) (Runner, error) {
	if binary != "" {
		path, err := exec.LookPath(binary)
		if err != nil {
			return nil, fmt.Errorf("%w: %s not found: %w", tts.ErrBackendUnavailable, binary, err)
		}
		if filepath.Base(binary) == "say" {
			return Say(path), nil
		}
		return Espeak(path), nil
	}

	if runtime.GOOS == "darwin" {
		if path, err := exec.LookPath("say"); err == nil {
			return Say(path), nil
		}
	}
	for _, name := range []string{"espeak-ng", "espeak"} {
		if path, err := exec.LookPath(name); err == nil {
			return Espeak(path), nil
		}
	}
	return nil, fmt.Errorf("%w: no speech command found (install espeak-ng)", tts.ErrBackendUnavailable)
}

func scale(base int, factor float64, lo, hi int) int {
	if factor == 0 {
		factor = 1
	}
	v := int(math.Round(float64(base) * factor))
	return max(lo, min(hi, v))
}
