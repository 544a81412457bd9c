// Package recording mixes narration captured from the system audio output
// with an optional ambient track and saves the result as a WAV file.
package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/internal/audio"
	"github.com/dustin/go-humanize"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/wav"
	"github.com/google/uuid"
)

// Static errors.
var (
	ErrCaptureDenied    = errors.New("system audio capture denied")
	ErrNoSources        = errors.New("no audio sources to record")
	ErrNotRecording     = errors.New("not recording")
	ErrAlreadyRecording = errors.New("already recording")
)

// DefaultAmbientVolume is the ambient track level used when none is configured.
const DefaultAmbientVolume = 0.3

// Config configures a Recorder.
type Config struct {
	Format        audio.Format
	OutputDir     string
	Ambient       string  // Path to a WAV or MP3 file, optional
	AmbientVolume float64 // 0 (muted) to 1
	Capturer      Capturer
	Tick          time.Duration // Pump interval
	Logger        *log.Logger

	// OnWarning is called when recording continues without narration.
	OnWarning func(error)
}

// Session describes an active recording.
type Session struct {
	ID                string
	Started           time.Time
	NarrationCaptured bool
	AmbientIncluded   bool
}

// Result describes a finished recording.
type Result struct {
	Path              string
	Duration          time.Duration
	Bytes             int64
	NarrationCaptured bool
}

// Recorder owns at most one recording at a time.
type Recorder struct {
	cfg    Config
	logger *log.Logger

	mu       sync.Mutex
	session  *Session
	chunks   [][]byte
	recorded int
	cancel   context.CancelFunc
	done     chan struct{}
	closers  []io.Closer
}

// New creates a recorder.
func New(cfg Config) *Recorder {
	if cfg.Format.SampleRate == 0 {
		cfg.Format = audio.Format{SampleRate: 44100, Channels: 2}
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 50 * time.Millisecond
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("recording")
	}
	return &Recorder{cfg: cfg, logger: logger}
}

// Start builds the mixed graph and begins recording. Without a capture
// stream it records the ambient track only and reports a warning; without
// either it fails with ErrNoSources.
func (r *Recorder) Start(ctx context.Context) (*Session, error) {
	session, warnings, err := r.start(ctx)
	for _, w := range warnings {
		r.warn(w)
	}
	return session, err
}

func (r *Recorder) start(ctx context.Context) (*Session, []error, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		return nil, nil, ErrAlreadyRecording
	}

	ctx, cancel := context.WithCancel(ctx)
	format := r.cfg.Format.Beep()
	session := &Session{ID: uuid.NewString(), Started: time.Now()}

	var sources []beep.Streamer
	var closers []io.Closer
	var warnings []error

	if r.cfg.Ambient != "" {
		s, c, err := r.openAmbient(format)
		if err != nil {
			r.logger.Warn("Ambient track unavailable", "path", r.cfg.Ambient, "err", err)
		} else {
			sources = append(sources, s)
			closers = append(closers, c)
			session.AmbientIncluded = true
		}
	}

	if r.cfg.Capturer != nil {
		rc, err := r.cfg.Capturer.Capture(ctx, r.cfg.Format)
		if err != nil {
			warnings = append(warnings, err)
		} else {
			limit := format.Width() * format.SampleRate.N(2*time.Second)
			sources = append(sources, newLiveSource(rc, format, limit))
			closers = append(closers, rc)
			session.NarrationCaptured = true
		}
	} else {
		warnings = append(warnings, fmt.Errorf("%w: no capture client", ErrCaptureDenied))
	}

	if len(sources) == 0 {
		cancel()
		return nil, nil, ErrNoSources
	}

	r.session = session
	r.chunks = nil
	r.recorded = 0
	r.cancel = cancel
	r.closers = closers
	r.done = make(chan struct{})

	go r.pump(ctx, beep.Mix(sources...), r.done)

	r.logger.Info("Recording started",
		"id", session.ID,
		"narration", session.NarrationCaptured,
		"ambient", session.AmbientIncluded,
	)
	copied := *session
	return &copied, warnings, nil
}

// Stop ends the recording and writes it to the output directory.
func (r *Recorder) Stop() (*Result, error) {
	r.mu.Lock()
	if r.session == nil {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	session, cancel, done, closers := r.session, r.cancel, r.done, r.closers
	r.mu.Unlock()

	cancel()
	<-done
	for _, c := range closers {
		_ = c.Close()
	}

	r.mu.Lock()
	chunks := r.chunks
	r.session, r.chunks, r.closers, r.recorded = nil, nil, nil, 0
	r.mu.Unlock()

	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	pcm := make([]byte, 0, size)
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}

	path, written, err := r.write(session, pcm)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Path:              path,
		Duration:          r.cfg.Format.Duration(len(pcm)),
		Bytes:             written,
		NarrationCaptured: session.NarrationCaptured,
	}
	r.logger.Info("Recording saved",
		"path", path,
		"size", humanize.Bytes(uint64(written)),
		"duration", res.Duration.Round(time.Millisecond),
	)
	return res, nil
}

// Active reports whether a recording is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// Progress returns the recorded duration and PCM size so far.
func (r *Recorder) Progress() (time.Duration, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.Format.Duration(r.recorded), r.recorded
}

// Close stops an active recording, if any.
func (r *Recorder) Close() error {
	if !r.Active() {
		return nil
	}
	_, err := r.Stop()
	return err
}

func (r *Recorder) pump(ctx context.Context, mixer beep.Streamer, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n := r.cfg.Format.Beep().SampleRate.N(now.Sub(last))
			last = now
			if n <= 0 {
				continue
			}
			chunk := audio.Encode(beep.Take(n, mixer), r.cfg.Format)

			r.mu.Lock()
			r.chunks = append(r.chunks, chunk)
			r.recorded += len(chunk)
			r.mu.Unlock()
		}
	}
}

func (r *Recorder) openAmbient(format beep.Format) (beep.Streamer, io.Closer, error) {
	data, err := os.ReadFile(r.cfg.Ambient)
	if err != nil {
		return nil, nil, err
	}
	stream, src, err := audio.Open(data, "")
	if err != nil {
		return nil, nil, err
	}

	var s beep.Streamer = beep.Loop(-1, stream)
	if src.SampleRate != format.SampleRate {
		s = beep.Resample(4, src.SampleRate, format.SampleRate, s)
	}
	v := r.cfg.AmbientVolume
	s = &effects.Volume{
		Streamer: s,
		Base:     2,
		Volume:   math.Log2(math.Max(v, 1e-3)),
		Silent:   v <= 0,
	}
	return s, stream, nil
}

func (r *Recorder) write(session *Session, pcm []byte) (string, int64, error) {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	name := fmt.Sprintf("lector-%s-%s.wav", session.Started.Format("20060102-150405"), session.ID)
	path := filepath.Join(r.cfg.OutputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create recording: %w", err)
	}
	format := r.cfg.Format.Beep()
	if err := wav.Encode(f, &pcmStreamer{data: pcm, format: format}, format); err != nil {
		f.Close()
		return "", 0, fmt.Errorf("failed to encode recording: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		return "", 0, err
	}
	return path, info.Size(), nil
}

func (r *Recorder) warn(err error) {
	r.logger.Warn("Recording without narration", "err", err)
	if r.cfg.OnWarning != nil {
		r.cfg.OnWarning(err)
	}
}
