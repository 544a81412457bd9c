package ondevice

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/lector/tts"
)

// fakeRunner blocks until released or cancelled.
type fakeRunner struct {
	mu      sync.Mutex
	texts   []string
	err     error
	release chan struct{}
}

func (r *fakeRunner) Name() string { return "fake" }

func (r *fakeRunner) Run(ctx context.Context, text string, _ tts.VoiceParams) error {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()

	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return ErrInterrupted
		}
	}
	return r.err
}

func speak(t *testing.T, b *Backend, ctx context.Context) chan error {
	t.Helper()
	ch := make(chan error, 1)
	b.Speak(ctx, tts.Sentence{Index: 0, Text: "Hello there."}, tts.DefaultVoiceParams(), func(err error) {
		ch <- err
	})
	return ch
}

func TestSpeakSuccess(t *testing.T) {
	b := New(&fakeRunner{}, nil)
	select {
	case err := <-speak(t, b, context.Background()):
		if err != nil {
			t.Errorf("onEnd got %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestSpeakFailure(t *testing.T) {
	b := New(&fakeRunner{err: errors.New("no audio device")}, nil)
	select {
	case err := <-speak(t, b, context.Background()):
		if !errors.Is(err, tts.ErrOnDevicePlayback) {
			t.Errorf("onEnd got %v, want ErrOnDevicePlayback", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestSpeakInterruptedIsSwallowed(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	b := New(runner, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch := speak(t, b, ctx)

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-ch:
		t.Errorf("onEnd called after cancel with %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCommandRunner(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	tests := []struct {
		name    string
		script  string
		cancel  bool
		wantErr error
		anyErr  bool
	}{
		{name: "success", script: "cat > /dev/null"},
		{name: "failure", script: "exit 3", anyErr: true},
		{name: "interrupted", script: "exec sleep 5", cancel: true, wantErr: ErrInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &CommandRunner{
				Binary: sh,
				Args:   func(tts.VoiceParams) []string { return []string{"-c", tt.script} },
				Grace:  20 * time.Millisecond,
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				time.AfterFunc(20*time.Millisecond, cancel)
			}

			start := time.Now()
			err := r.Run(ctx, "text", tts.DefaultVoiceParams())
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
				}
				if time.Since(start) > 2*time.Second {
					t.Error("cancel did not stop the process promptly")
				}
			case tt.anyErr:
				if err == nil {
					t.Error("Run() expected error")
				}
			default:
				if err != nil {
					t.Errorf("Run() error = %v", err)
				}
			}
		})
	}
}

func TestCommandRunnerWritesTextToStdin(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	const text = "-- Left Munich at 8:35 P.M."
	r := &CommandRunner{
		Binary: sh,
		Args: func(tts.VoiceParams) []string {
			return []string{"-c", `test "$(cat)" = "$0" || { echo "stdin mismatch" >&2; exit 1; }`, text}
		},
	}
	if err := r.Run(context.Background(), text, tts.DefaultVoiceParams()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, arg := range Espeak("espeak-ng").Args(tts.DefaultVoiceParams()) {
		if arg == text || arg == "--" {
			t.Errorf("espeak args carry the text: %q", arg)
		}
	}
}

func TestEspeakArgs(t *testing.T) {
	p := tts.VoiceParams{Voice: "en-us", Rate: 2, Pitch: 1, Volume: 0.5, Language: "en"}
	args := Espeak("espeak-ng").Args(p)
	want := []string{"--stdin", "-v", "en-us", "-s", "350", "-p", "50", "-a", "50"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestSayArgs(t *testing.T) {
	args := Say("say").Args(tts.VoiceParams{Rate: 0.5})
	want := []string{"-f", "-", "-r", "90"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}
