package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/lector/tts"
)

// TestManualFinish tests completing an utterance by hand.
func TestManualFinish(t *testing.T) {
	b := New(tts.BackendOnDevice)
	done := make(chan error, 1)

	b.Speak(context.Background(), tts.Sentence{Index: 0, Text: "Hi."}, tts.DefaultVoiceParams(), func(err error) {
		done <- err
	})

	u := b.Last()
	if u == nil {
		t.Fatal("expected a pending utterance")
	}
	if !u.Finish(nil) {
		t.Fatal("Finish should deliver")
	}
	if err := <-done; err != nil {
		t.Errorf("onEnd got %v, want nil", err)
	}
	if u.Finish(nil) {
		t.Error("second Finish should not deliver")
	}
}

// TestCancelledUtteranceIsSilent tests that cancellation suppresses onEnd.
func TestCancelledUtteranceIsSilent(t *testing.T) {
	b := New(tts.BackendRemote)
	ctx, cancel := context.WithCancel(context.Background())
	called := false

	b.Speak(ctx, tts.Sentence{Text: "Hi."}, tts.DefaultVoiceParams(), func(error) { called = true })
	cancel()

	u := b.Last()
	if !u.Cancelled() {
		t.Error("expected utterance to be cancelled")
	}
	if u.Finish(nil) || called {
		t.Error("cancelled utterance must not complete")
	}
}

// TestAutoMode tests scripted completion and failure.
func TestAutoMode(t *testing.T) {
	b := NewAuto(tts.BackendRemote, time.Millisecond)
	boom := errors.New("boom")
	b.FailOn(1, boom)

	results := make(chan error, 2)
	for i := range 2 {
		b.Speak(context.Background(), tts.Sentence{Index: i}, tts.DefaultVoiceParams(), func(err error) {
			results <- err
		})
	}

	var failures int
	for range 2 {
		select {
		case err := <-results:
			if errors.Is(err, boom) {
				failures++
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for completion")
		}
	}
	if failures != 1 {
		t.Errorf("got %d failures, want 1", failures)
	}
	if b.CallCount() != 2 {
		t.Errorf("CallCount() = %d, want 2", b.CallCount())
	}
}

// TestWaitForCalls tests waiting on Speak calls.
func TestWaitForCalls(t *testing.T) {
	b := New(tts.BackendOnDevice)
	go func() {
		time.Sleep(5 * time.Millisecond)
		b.Speak(context.Background(), tts.Sentence{}, tts.DefaultVoiceParams(), func(error) {})
	}()

	if !b.WaitForCalls(1, time.Second) {
		t.Fatal("WaitForCalls timed out")
	}
	if b.WaitForCalls(2, 10*time.Millisecond) {
		t.Error("WaitForCalls(2) should time out")
	}
}
