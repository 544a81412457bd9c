package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// ErrPlayerClosed is returned by Play after Close.
var ErrPlayerClosed = errors.New("player is closed")

// Player plays 16-bit little-endian PCM clips through oto. Only one clip
// plays at a time; Play blocks until the clip drains or ctx is cancelled.
type Player struct {
	context *oto.Context

	// Keeps the clip's data referenced while oto reads from it
	active *oto.Player

	volume atomic.Uint64 // float64 bits
	closed atomic.Bool

	mu     sync.Mutex // serializes Play
	config PlayerConfig
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int // 44100 or 48000 Hz only
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // 16 bits per sample
	BufferSize int // Buffer size in bytes
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		Channels:   1,
		BitDepth:   16,
		BufferSize: 4096,
	}
}

// Format returns the PCM format clips must be in.
func (c PlayerConfig) Format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// NewPlayer opens the audio device. oto allows one context per process, so
// a program should create a single Player.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   bufferDuration(config),
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	p := &Player{context: ctx, config: config}
	p.SetVolume(1.0)
	return p, nil
}

// validateConfig validates the player configuration.
func validateConfig(config PlayerConfig) error {
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", config.BitDepth)
	}
	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	return nil
}

func bufferDuration(config PlayerConfig) time.Duration {
	bytesPerSecond := config.SampleRate * config.Channels * config.BitDepth / 8
	return time.Duration(config.BufferSize) * time.Second / time.Duration(bytesPerSecond)
}

// Play plays pcm and blocks until it has been heard or ctx is cancelled.
func (p *Player) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return errors.New("audio data is empty")
	}
	if p.closed.Load() {
		return ErrPlayerClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	player := p.context.NewPlayer(bytes.NewReader(pcm))
	player.SetVolume(p.Volume())
	p.active = player
	defer func() {
		p.active = nil
		_ = player.Close()
	}()

	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
			if p.closed.Load() {
				player.Pause()
				return ErrPlayerClosed
			}
			if !player.IsPlaying() {
				return player.Err()
			}
		}
	}
}

// SetVolume sets the playback volume from 0.0 to 1.0. It applies to the
// next clip.
func (p *Player) SetVolume(volume float64) {
	volume = math.Max(0, math.Min(1, volume))
	p.volume.Store(math.Float64bits(volume))
}

// Volume returns the playback volume.
func (p *Player) Volume() float64 {
	return math.Float64frombits(p.volume.Load())
}

// Config returns the player configuration.
func (p *Player) Config() PlayerConfig {
	return p.config
}

// Close stops any clip in progress. The oto context stays alive for the
// rest of the process.
func (p *Player) Close() error {
	p.closed.Store(true)
	return nil
}
