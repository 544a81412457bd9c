package tts

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Synthesizer names accepted by Config.Synthesizer.
const (
	SynthesizerAuto   = "auto"
	SynthesizerEspeak = "espeak-ng"
	SynthesizerSay    = "say"
)

// Config contains all narration options.
type Config struct {
	// Voice settings
	Voice    string  `yaml:"voice" env:"LECTOR_VOICE"`
	Language string  `yaml:"language" env:"LECTOR_LANGUAGE" envDefault:"en"`
	Rate     float64 `yaml:"rate" env:"LECTOR_RATE" envDefault:"1.0"`
	Pitch    float64 `yaml:"pitch" env:"LECTOR_PITCH" envDefault:"1.0"`
	Volume   float64 `yaml:"volume" env:"LECTOR_VOLUME" envDefault:"1.0"`

	// On-device synthesis
	Synthesizer     string `yaml:"synthesizer" env:"LECTOR_SYNTHESIZER" envDefault:"auto"`
	SynthesizerPath string `yaml:"synthesizer_path" env:"LECTOR_SYNTHESIZER_PATH"`

	// Playback settings
	AutoAdvance bool `yaml:"auto_advance" env:"LECTOR_AUTO_ADVANCE" envDefault:"true"`
	Prefetch    int  `yaml:"prefetch" env:"LECTOR_PREFETCH" envDefault:"2"`

	Remote RemoteConfig `yaml:"remote"`
	Audio  AudioConfig  `yaml:"audio"`
	Cache  CacheConfig  `yaml:"cache"`
}

// RemoteConfig configures the HTTP synthesis service. An empty URL disables
// remote synthesis.
type RemoteConfig struct {
	URL               string        `yaml:"url" env:"LECTOR_REMOTE_URL"`
	Timeout           time.Duration `yaml:"timeout" env:"LECTOR_REMOTE_TIMEOUT" envDefault:"30s"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout" env:"LECTOR_REMOTE_PROBE_TIMEOUT" envDefault:"3s"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"LECTOR_REMOTE_REQUESTS_PER_MINUTE" envDefault:"0"`
}

// AudioConfig configures the output device.
type AudioConfig struct {
	SampleRate int           `yaml:"sample_rate" env:"LECTOR_SAMPLE_RATE" envDefault:"44100"`
	Channels   int           `yaml:"channels" env:"LECTOR_CHANNELS" envDefault:"1"`
	Buffer     time.Duration `yaml:"buffer" env:"LECTOR_AUDIO_BUFFER" envDefault:"100ms"`
}

// CacheConfig configures the synthesized clip cache. An empty Dir keeps clips
// in memory only.
type CacheConfig struct {
	MemoryMB int    `yaml:"memory_mb" env:"LECTOR_CACHE_MEMORY_MB" envDefault:"64"`
	Dir      string `yaml:"dir" env:"LECTOR_CACHE_DIR"`
	DiskMB   int    `yaml:"disk_mb" env:"LECTOR_CACHE_DISK_MB" envDefault:"512"`
	Level    int    `yaml:"level" env:"LECTOR_CACHE_LEVEL" envDefault:"3"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Language: "en",
		Rate:     1.0,
		Pitch:    1.0,
		Volume:   1.0,

		Synthesizer: SynthesizerAuto,

		AutoAdvance: true,
		Prefetch:    2,

		Remote: RemoteConfig{
			Timeout:      30 * time.Second,
			ProbeTimeout: 3 * time.Second,
		},
		Audio: AudioConfig{
			SampleRate: 44100,
			Channels:   1,
			Buffer:     100 * time.Millisecond,
		},
		Cache: CacheConfig{
			MemoryMB: 64,
			DiskMB:   512,
			Level:    3,
		},
	}
}

// LoadConfigFromEnv parses LECTOR_* environment variables on top of the
// envDefault values.
func LoadConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration and normalizes enum fields.
func (c *Config) Validate() error {
	if err := c.VoiceParams().Validate(); err != nil {
		return err
	}

	c.Synthesizer = strings.ToLower(strings.TrimSpace(c.Synthesizer))
	valid := []string{SynthesizerAuto, SynthesizerEspeak, SynthesizerSay}
	if !slices.Contains(valid, c.Synthesizer) {
		return fmt.Errorf("%w: synthesizer %q must be one of %v", ErrInvalidConfig, c.Synthesizer, valid)
	}

	if c.Prefetch < 0 || c.Prefetch > 10 {
		return fmt.Errorf("%w: prefetch must be between 0 and 10, got %d", ErrInvalidConfig, c.Prefetch)
	}

	if err := c.Remote.Validate(); err != nil {
		return fmt.Errorf("remote config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	return nil
}

// Validate checks the remote service settings.
func (c *RemoteConfig) Validate() error {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: url %q must be an http(s) URL", ErrInvalidConfig, c.URL)
		}
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("%w: timeout must be at least 1 second, got %v", ErrInvalidConfig, c.Timeout)
	}
	if c.ProbeTimeout <= 0 || c.ProbeTimeout > c.Timeout {
		return fmt.Errorf("%w: probe_timeout must be positive and at most timeout, got %v", ErrInvalidConfig, c.ProbeTimeout)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("%w: requests_per_minute cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Enabled reports whether a remote service is configured.
func (c RemoteConfig) Enabled() bool {
	return c.URL != ""
}

// Validate checks the output device settings.
func (c *AudioConfig) Validate() error {
	if c.SampleRate != 44100 && c.SampleRate != 48000 {
		return fmt.Errorf("%w: sample_rate must be 44100 or 48000, got %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.Channels < 1 || c.Channels > 2 {
		return fmt.Errorf("%w: channels must be 1 or 2, got %d", ErrInvalidConfig, c.Channels)
	}
	if c.Buffer <= 0 {
		return fmt.Errorf("%w: buffer must be positive", ErrInvalidConfig)
	}
	return nil
}

// Validate checks the cache settings.
func (c *CacheConfig) Validate() error {
	if c.MemoryMB < 1 {
		return fmt.Errorf("%w: memory_mb must be at least 1, got %d", ErrInvalidConfig, c.MemoryMB)
	}
	if c.Dir != "" && c.DiskMB < 1 {
		return fmt.Errorf("%w: disk_mb must be at least 1 when dir is set", ErrInvalidConfig)
	}
	if c.Level < 1 || c.Level > 22 {
		return fmt.Errorf("%w: level must be between 1 and 22, got %d", ErrInvalidConfig, c.Level)
	}
	return nil
}

// VoiceParams returns the voice settings as parameters for a backend.
func (c *Config) VoiceParams() VoiceParams {
	return VoiceParams{
		Voice:    c.Voice,
		Rate:     c.Rate,
		Pitch:    c.Pitch,
		Volume:   c.Volume,
		Language: c.Language,
	}
}
