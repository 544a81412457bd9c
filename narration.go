package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/internal/audio"
	"github.com/dgnsrekt/lector/internal/cache"
	"github.com/dgnsrekt/lector/internal/recording"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/engines/ondevice"
	"github.com/dgnsrekt/lector/tts/engines/remote"
	"github.com/dgnsrekt/lector/tts/sentence"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// narration holds the controller and the backends behind it.
type narration struct {
	cfg  tts.Config
	bus  *tts.Bus
	ctrl *tts.Controller

	onDevice *ondevice.Backend
	remote   *remote.Backend
	player   *audio.Player
	cache    *cache.Tiered
}

// newNarration builds the controller for cfg. On-device speech is required
// unless a synthesis service is configured. A service that fails the startup
// probe is not used.
func newNarration(ctx context.Context, cfg tts.Config, hl tts.Highlighter) (*narration, error) {
	n := &narration{cfg: cfg, bus: tts.NewBus()}

	runner, err := ondevice.DetectRunner(synthesizerBinary(cfg))
	if err != nil {
		if !cfg.Remote.Enabled() {
			return nil, err //nolint:wrapcheck
		}
		log.Warn("On-device speech unavailable", "err", err)
		runner = missingRunner{err: err}
	}
	n.onDevice = ondevice.New(runner, nil)

	opts := []tts.Option{
		tts.WithBus(n.bus),
		tts.WithVoiceParams(cfg.VoiceParams()),
		tts.WithPrefetch(cfg.Prefetch),
		tts.WithContext(ctx),
	}
	if hl != nil {
		opts = append(opts, tts.WithHighlighter(hl))
	}

	if cfg.Remote.Enabled() {
		if err := n.openRemote(ctx); err != nil {
			n.Close()
			return nil, err
		}
		opts = append(opts, tts.WithRemote(n.remote))
	}

	n.ctrl = tts.NewController(sentence.Segment, n.onDevice, opts...)
	return n, nil
}

func (n *narration) openRemote(ctx context.Context) error {
	pc := audio.DefaultPlayerConfig()
	pc.SampleRate = n.cfg.Audio.SampleRate
	pc.Channels = n.cfg.Audio.Channels
	pc.BufferSize = max(pc.BufferSize, int(float64(pc.SampleRate*pc.Channels*pc.BitDepth/8)*n.cfg.Audio.Buffer.Seconds()))

	player, err := audio.NewPlayer(pc)
	if err != nil {
		return fmt.Errorf("unable to open audio device: %w", err)
	}
	n.player = player

	dir, err := homedir.Expand(n.cfg.Cache.Dir)
	if err != nil {
		return fmt.Errorf("unable to expand cache dir: %w", err)
	}
	store, err := cache.New(cache.Config{
		MemoryBytes: int64(n.cfg.Cache.MemoryMB) << 20,
		DiskDir:     dir,
		DiskBytes:   int64(n.cfg.Cache.DiskMB) << 20,
		Level:       n.cfg.Cache.Level,
	})
	if err != nil {
		return fmt.Errorf("unable to create clip cache: %w", err)
	}
	n.cache = store

	n.remote = remote.New(remote.NewClient(n.cfg.Remote.URL, n.cfg.Remote.Timeout), player, remote.Options{
		Format:            pc.Format(),
		ProbeTimeout:      n.cfg.Remote.ProbeTimeout,
		RequestsPerMinute: n.cfg.Remote.RequestsPerMinute,
		Cache:             store,
	})
	_ = n.remote.Probe(ctx) // failures are logged by the backend
	return nil
}

// Close stops narration and releases the audio device and the cache.
func (n *narration) Close() {
	if n.ctrl != nil {
		n.ctrl.Close()
	}
	if n.player != nil {
		if err := n.player.Close(); err != nil {
			log.Debug("Closing player", "err", err)
		}
	}
	if n.cache != nil {
		if err := n.cache.Close(); err != nil {
			log.Debug("Closing cache", "err", err)
		}
	}
}

// newRecorder configures a recorder from the recording.* keys. Recordings
// that lose the narration stream are reported on bus.
func newRecorder(bus *tts.Bus) (*recording.Recorder, error) {
	dir, err := homedir.Expand(viper.GetString("recording.dir"))
	if err != nil {
		return nil, fmt.Errorf("unable to expand recording dir: %w", err)
	}
	ambient, err := homedir.Expand(viper.GetString("recording.ambient"))
	if err != nil {
		return nil, fmt.Errorf("unable to expand ambient track: %w", err)
	}

	return recording.New(recording.Config{
		Format:        audio.Format{SampleRate: 44100, Channels: 2},
		OutputDir:     dir,
		Ambient:       ambient,
		AmbientVolume: viper.GetFloat64("recording.ambient_volume"),
		Capturer:      recording.DetectCapturer(),
		OnWarning: func(err error) {
			bus.Notify(tts.NoticeRecordingPartial, err)
		},
	}), nil
}

func synthesizerBinary(cfg tts.Config) string {
	if cfg.SynthesizerPath != "" {
		if p, err := homedir.Expand(cfg.SynthesizerPath); err == nil {
			return p
		}
		return cfg.SynthesizerPath
	}
	if cfg.Synthesizer == tts.SynthesizerAuto {
		return ""
	}
	return cfg.Synthesizer
}

// missingRunner stands in for a speech command that is not installed.
type missingRunner struct{ err error }

func (missingRunner) Name() string { return "none" }

func (r missingRunner) Run(ctx context.Context, _ string, _ tts.VoiceParams) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ondevice.ErrInterrupted, err)
	}
	return r.err
}
