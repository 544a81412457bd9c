package tts

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// TestDefaultConfig tests that default configuration is valid.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}

	if cfg.Remote.Enabled() {
		t.Error("Remote synthesis should be disabled by default")
	}

	if !cfg.AutoAdvance {
		t.Error("Auto-advance should be enabled by default")
	}
}

// TestConfigValidation tests configuration validation.
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name:    "rate too high",
			modify:  func(c *Config) { c.Rate = 5 },
			wantErr: true,
			errMsg:  "rate must be between",
		},
		{
			name:    "volume too high",
			modify:  func(c *Config) { c.Volume = 1.5 },
			wantErr: true,
			errMsg:  "volume must be between",
		},
		{
			name:    "bad language",
			modify:  func(c *Config) { c.Language = "not a language" },
			wantErr: true,
		},
		{
			name:   "synthesizer is normalized",
			modify: func(c *Config) { c.Synthesizer = " Espeak-NG " },
		},
		{
			name:    "unknown synthesizer",
			modify:  func(c *Config) { c.Synthesizer = "festival" },
			wantErr: true,
			errMsg:  "synthesizer",
		},
		{
			name:    "prefetch too large",
			modify:  func(c *Config) { c.Prefetch = 50 },
			wantErr: true,
			errMsg:  "prefetch",
		},
		{
			name:   "remote url",
			modify: func(c *Config) { c.Remote.URL = "http://localhost:8000" },
		},
		{
			name:    "remote url without scheme",
			modify:  func(c *Config) { c.Remote.URL = "localhost:8000" },
			wantErr: true,
			errMsg:  "remote config",
		},
		{
			name:    "probe timeout above request timeout",
			modify:  func(c *Config) { c.Remote.ProbeTimeout = time.Minute },
			wantErr: true,
			errMsg:  "probe_timeout",
		},
		{
			name:    "unsupported sample rate",
			modify:  func(c *Config) { c.Audio.SampleRate = 22050 },
			wantErr: true,
			errMsg:  "sample_rate",
		},
		{
			name:    "too many channels",
			modify:  func(c *Config) { c.Audio.Channels = 6 },
			wantErr: true,
			errMsg:  "channels",
		},
		{
			name:    "disk cache without capacity",
			modify:  func(c *Config) { c.Cache.Dir = "/tmp/x"; c.Cache.DiskMB = 0 },
			wantErr: true,
			errMsg:  "disk_mb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error should wrap ErrInvalidConfig: %v", err)
			}
			if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestConfigNormalizesSynthesizer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Synthesizer = " SAY "
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Synthesizer != SynthesizerSay {
		t.Errorf("Synthesizer = %q, want %q", cfg.Synthesizer, SynthesizerSay)
	}
}

func TestConfigVoiceParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Voice = "en-gb"
	cfg.Rate = 1.25

	p := cfg.VoiceParams()
	if p.Voice != "en-gb" || p.Rate != 1.25 || p.Language != "en" {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LECTOR_RATE", "1.5")
	t.Setenv("LECTOR_REMOTE_URL", "https://tts.example.com")
	t.Setenv("LECTOR_REMOTE_PROBE_TIMEOUT", "2s")
	t.Setenv("LECTOR_CACHE_MEMORY_MB", "16")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rate != 1.5 {
		t.Errorf("Rate = %v, want 1.5", cfg.Rate)
	}
	if cfg.Remote.URL != "https://tts.example.com" {
		t.Errorf("Remote.URL = %q", cfg.Remote.URL)
	}
	if cfg.Remote.ProbeTimeout != 2*time.Second {
		t.Errorf("Remote.ProbeTimeout = %v", cfg.Remote.ProbeTimeout)
	}
	if cfg.Remote.Timeout != 30*time.Second {
		t.Errorf("Remote.Timeout should keep its default, got %v", cfg.Remote.Timeout)
	}
	if cfg.Cache.MemoryMB != 16 {
		t.Errorf("Cache.MemoryMB = %d", cfg.Cache.MemoryMB)
	}
	if cfg.Language != "en" {
		t.Errorf("Language = %q, want default en", cfg.Language)
	}
}

func TestLoadConfigFromEnvInvalid(t *testing.T) {
	t.Setenv("LECTOR_PREFETCH", "not-a-number")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadConfigFromEnv() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadConfigFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("narration.voice", "en-us")
	viper.Set("narration.rate", 0.75)
	viper.Set("narration.auto_advance", false)
	viper.Set("narration.remote.url", "http://localhost:8000")
	viper.Set("narration.remote.timeout", "45s")
	viper.Set("narration.audio.sample_rate", 48000)
	viper.Set("narration.cache.dir", "/tmp/lector-cache")

	cfg, err := LoadConfigFromViper()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Voice != "en-us" {
		t.Errorf("Voice = %q", cfg.Voice)
	}
	if cfg.Rate != 0.75 {
		t.Errorf("Rate = %v", cfg.Rate)
	}
	if cfg.AutoAdvance {
		t.Error("AutoAdvance should be false")
	}
	if cfg.Remote.Timeout != 45*time.Second {
		t.Errorf("Remote.Timeout = %v", cfg.Remote.Timeout)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("Audio.SampleRate = %d", cfg.Audio.SampleRate)
	}
	if cfg.Cache.Dir != "/tmp/lector-cache" {
		t.Errorf("Cache.Dir = %q", cfg.Cache.Dir)
	}
}

func TestLoadConfigFromViperInvalid(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("narration.synthesizer", "festival")
	if _, err := LoadConfigFromViper(); err == nil {
		t.Error("expected error for unknown synthesizer")
	}
}

func TestSetDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetDefaults()

	if got := viper.GetString("narration.language"); got != "en" {
		t.Errorf("narration.language = %q", got)
	}
	if got := viper.GetDuration("narration.remote.probe_timeout"); got != 3*time.Second {
		t.Errorf("narration.remote.probe_timeout = %v", got)
	}

	cfg, err := LoadConfigFromViper()
	if err != nil {
		t.Fatalf("defaults should load: %v", err)
	}
	if cfg.Prefetch != 2 {
		t.Errorf("Prefetch = %d", cfg.Prefetch)
	}
}
