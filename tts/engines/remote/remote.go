// Package remote speaks sentences with audio from an HTTP synthesis service.
package remote

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/internal/audio"
	"github.com/dgnsrekt/lector/internal/cache"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/engines"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Player plays PCM in the backend's format and blocks until done.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
}

type volumeSetter interface {
	SetVolume(float64)
}

// Options configures a remote backend.
type Options struct {
	Format            audio.Format  // PCM format the player expects
	ProbeTimeout      time.Duration // Bound on the health probe
	RequestsPerMinute int           // 0 disables throttling
	PrefetchWorkers   int
	Cache             cache.Store // nil disables caching and prefetch
	Logger            *log.Logger
}

// DefaultOptions returns options for a mono 44.1kHz player.
func DefaultOptions() Options {
	return Options{
		Format:          audio.Format{SampleRate: 44100, Channels: 1},
		ProbeTimeout:    3 * time.Second,
		PrefetchWorkers: 2,
	}
}

// Backend implements tts.Backend, tts.Prober and tts.Prefetcher.
type Backend struct {
	client  *Client
	player  Player
	cache   cache.Store
	format  audio.Format
	limiter *rate.Limiter
	group   singleflight.Group
	workers int
	logger  *log.Logger

	probeTimeout time.Duration
	reachable    atomic.Bool
	probed       atomic.Bool
}

var (
	_ tts.Backend    = (*Backend)(nil)
	_ tts.Prober     = (*Backend)(nil)
	_ tts.Prefetcher = (*Backend)(nil)
)

// New creates a remote backend. It reports itself unreachable until Probe
// succeeds.
func New(client *Client, player Player, opts Options) *Backend {
	def := DefaultOptions()
	if opts.Format.SampleRate == 0 {
		opts.Format = def.Format
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = def.ProbeTimeout
	}
	if opts.PrefetchWorkers <= 0 {
		opts.PrefetchWorkers = def.PrefetchWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.Default().WithPrefix("remote")
	}

	b := &Backend{
		client:       client,
		player:       player,
		cache:        opts.Cache,
		format:       opts.Format,
		workers:      opts.PrefetchWorkers,
		logger:       opts.Logger,
		probeTimeout: opts.ProbeTimeout,
	}
	if opts.RequestsPerMinute > 0 {
		b.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), opts.PrefetchWorkers+1)
	}
	return b
}

// Kind implements tts.Backend.
func (b *Backend) Kind() tts.BackendKind {
	return tts.BackendRemote
}

// Probe checks the service health once, bounded by the probe timeout, and
// caches the result for Reachable.
func (b *Backend) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.probeTimeout)
	defer cancel()

	start := time.Now()
	err := b.client.Health(ctx)
	b.reachable.Store(err == nil)
	b.probed.Store(true)

	if err != nil {
		b.logger.Warn("Synthesis service unreachable", "url", b.client.BaseURL(), "err", err)
		return fmt.Errorf("%w: %w", tts.ErrRemoteUnreachable, err)
	}
	b.logger.Info("Synthesis service reachable", "url", b.client.BaseURL(), "latency", time.Since(start).Round(time.Millisecond))
	return nil
}

// Reachable implements tts.Prober.
func (b *Backend) Reachable() bool {
	return b.reachable.Load()
}

// Probed reports whether Probe has run.
func (b *Backend) Probed() bool {
	return b.probed.Load()
}

// Speak implements tts.Backend. Any failure is reported through onEnd so the
// caller can fall back to another backend.
func (b *Backend) Speak(ctx context.Context, s tts.Sentence, p tts.VoiceParams, onEnd func(error)) {
	completion := engines.NewCompletion(ctx, onEnd)

	go func() {
		pcm, err := b.fetch(ctx, s.Text, p)
		if err == nil {
			if v, ok := b.player.(volumeSetter); ok {
				v.SetVolume(p.Volume)
			}
			err = b.player.Play(ctx, pcm)
		}

		if completion.Cancelled() {
			b.logger.Debug("Utterance cancelled", "index", s.Index)
			return
		}
		if err != nil {
			completion.Done(fmt.Errorf("%w: %w", tts.ErrRemoteSynthesis, err))
			return
		}
		completion.Done(nil)
	}()
}

// Prefetch synthesizes upcoming sentences into the cache in the background.
func (b *Backend) Prefetch(ctx context.Context, upcoming []tts.Sentence, p tts.VoiceParams) {
	if b.cache == nil || len(upcoming) == 0 {
		return
	}

	go func() {
		var g errgroup.Group
		g.SetLimit(b.workers)
		for _, s := range upcoming {
			g.Go(func() error {
				if _, err := b.fetch(ctx, s.Text, p); err != nil && ctx.Err() == nil {
					b.logger.Debug("Prefetch failed", "index", s.Index, "err", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// fetch returns PCM for text from the cache, an in-flight request for the
// same clip, or a new request.
func (b *Backend) fetch(ctx context.Context, text string, p tts.VoiceParams) ([]byte, error) {
	key := cache.Key(text, p.Voice, p.Language, p.Rate)
	if b.cache != nil {
		if pcm, ok := b.cache.Get(key); ok {
			return pcm, nil
		}
	}

	// The request is shared by every caller waiting on key, so it must
	// outlive any single caller. The client timeout bounds it.
	ch := b.group.DoChan(key, func() (any, error) {
		return b.synthesize(context.WithoutCancel(ctx), key, text, p)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]byte), nil
	}
}

func (b *Backend) synthesize(ctx context.Context, key, text string, p tts.VoiceParams) ([]byte, error) {
	tag, err := p.Tag()
	if err != nil {
		return nil, err
	}

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	clip, err := b.client.Synthesize(ctx, Request{
		Text:     text,
		Language: tag.String(),
		Voice:    p.Voice,
		Rate:     p.Rate,
	})
	if err != nil {
		return nil, err
	}

	pcm, err := audio.Decode(clip.Data, clip.ContentType, b.format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tts.ErrInvalidAudioFormat, err)
	}

	if b.cache != nil {
		if err := b.cache.Put(key, pcm); err != nil && !errors.Is(err, cache.ErrItemTooLarge) {
			b.logger.Debug("Failed to cache clip", "err", err)
		}
	}
	return pcm, nil
}
