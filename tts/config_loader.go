package tts

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads narration configuration from Viper's
// narration.* keys on top of the defaults.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	// Voice settings
	setString(&cfg.Voice, "narration.voice")
	setString(&cfg.Language, "narration.language")
	setFloat(&cfg.Rate, "narration.rate")
	setFloat(&cfg.Pitch, "narration.pitch")
	setFloat(&cfg.Volume, "narration.volume")

	// On-device synthesis
	setString(&cfg.Synthesizer, "narration.synthesizer")
	setString(&cfg.SynthesizerPath, "narration.synthesizer_path")

	// Playback settings
	if viper.IsSet("narration.auto_advance") {
		cfg.AutoAdvance = viper.GetBool("narration.auto_advance")
	}
	setInt(&cfg.Prefetch, "narration.prefetch")

	// Remote service
	setString(&cfg.Remote.URL, "narration.remote.url")
	if viper.IsSet("narration.remote.timeout") {
		cfg.Remote.Timeout = viper.GetDuration("narration.remote.timeout")
	}
	if viper.IsSet("narration.remote.probe_timeout") {
		cfg.Remote.ProbeTimeout = viper.GetDuration("narration.remote.probe_timeout")
	}
	setInt(&cfg.Remote.RequestsPerMinute, "narration.remote.requests_per_minute")

	// Output device
	setInt(&cfg.Audio.SampleRate, "narration.audio.sample_rate")
	setInt(&cfg.Audio.Channels, "narration.audio.channels")
	if viper.IsSet("narration.audio.buffer") {
		cfg.Audio.Buffer = viper.GetDuration("narration.audio.buffer")
	}

	// Clip cache
	setInt(&cfg.Cache.MemoryMB, "narration.cache.memory_mb")
	setString(&cfg.Cache.Dir, "narration.cache.dir")
	setInt(&cfg.Cache.DiskMB, "narration.cache.disk_mb")
	setInt(&cfg.Cache.Level, "narration.cache.level")

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid narration configuration: %w", err)
	}
	return cfg, nil
}

func setString(dst *string, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetString(key)
	}
}

func setInt(dst *int, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

func setFloat(dst *float64, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetFloat64(key)
	}
}

// SetDefaults sets default values in Viper for narration configuration.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("narration.language", defaults.Language)
	viper.SetDefault("narration.rate", defaults.Rate)
	viper.SetDefault("narration.pitch", defaults.Pitch)
	viper.SetDefault("narration.volume", defaults.Volume)
	viper.SetDefault("narration.synthesizer", defaults.Synthesizer)
	viper.SetDefault("narration.auto_advance", defaults.AutoAdvance)
	viper.SetDefault("narration.prefetch", defaults.Prefetch)

	viper.SetDefault("narration.remote.timeout", defaults.Remote.Timeout.String())
	viper.SetDefault("narration.remote.probe_timeout", defaults.Remote.ProbeTimeout.String())
	viper.SetDefault("narration.remote.requests_per_minute", defaults.Remote.RequestsPerMinute)

	viper.SetDefault("narration.audio.sample_rate", defaults.Audio.SampleRate)
	viper.SetDefault("narration.audio.channels", defaults.Audio.Channels)
	viper.SetDefault("narration.audio.buffer", defaults.Audio.Buffer.String())

	viper.SetDefault("narration.cache.memory_mb", defaults.Cache.MemoryMB)
	viper.SetDefault("narration.cache.disk_mb", defaults.Cache.DiskMB)
	viper.SetDefault("narration.cache.level", defaults.Cache.Level)
}
