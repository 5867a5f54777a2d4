package sound

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
	if cfg.CheckpointFactor != 8192 {
		t.Errorf("CheckpointFactor = %d, want 8192", cfg.CheckpointFactor)
	}
	if cfg.LongOneShotBytes != 50000 {
		t.Errorf("LongOneShotBytes = %d, want 50000", cfg.LongOneShotBytes)
	}
}

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
			name:   "backend is case insensitive",
			modify: func(c *Config) { c.Backend = "NULL" },
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Backend = "alsa" },
			wantErr: true,
			errMsg:  "unknown backend",
		},
		{
			name:    "invalid sample rate",
			modify:  func(c *Config) { c.SampleRate = 12345 },
			wantErr: true,
			errMsg:  "invalid sample rate",
		},
		{
			name:    "buffer too small",
			modify:  func(c *Config) { c.BufferSize = 1 },
			wantErr: true,
			errMsg:  "buffer size",
		},
		{
			name:    "negative voices",
			modify:  func(c *Config) { c.MaxVoices = -1 },
			wantErr: true,
			errMsg:  "max voices",
		},
		{
			name:    "master gain too high",
			modify:  func(c *Config) { c.MasterGain = 3 },
			wantErr: true,
			errMsg:  "master gain",
		},
		{
			name:    "zero headroom",
			modify:  func(c *Config) { c.Headroom = 0 },
			wantErr: true,
			errMsg:  "headroom",
		},
		{
			name:    "zero checkpoint factor",
			modify:  func(c *Config) { c.CheckpointFactor = 0 },
			wantErr: true,
			errMsg:  "checkpoint factor",
		},
		{
			name:    "zero tick interval",
			modify:  func(c *Config) { c.TickInterval = 0 },
			wantErr: true,
			errMsg:  "tick interval",
		},
		{
			name:    "zero full cycle",
			modify:  func(c *Config) { c.FullUpdateCycle = 0 },
			wantErr: true,
			errMsg:  "full update cycle",
		},
		{
			name:    "empty external suffix",
			modify:  func(c *Config) { c.ExternalSuffix = "" },
			wantErr: true,
			errMsg:  "external suffix",
		},
		{
			name:    "decode cache compression",
			modify:  func(c *Config) { c.DecodeCache.CompressionLevel = 40 },
			wantErr: true,
			errMsg:  "compression level",
		},
		{
			name: "disabled decode cache is not checked",
			modify: func(c *Config) {
				c.DecodeCache.Enabled = false
				c.DecodeCache.MaxSize = 0
			},
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
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not mention %q", err, tt.errMsg)
			}
		})
	}
}

func TestLoadConfigFromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("sound.backend", "null")
	viper.Set("sound.sample_rate", 48000)
	viper.Set("sound.max_voices", 8)
	viper.Set("sound.tick_interval", "20ms")
	viper.Set("sound.decode_cache.compression_level", 9)

	cfg, err := LoadConfigFromViper()
	if err != nil {
		t.Fatalf("LoadConfigFromViper() error = %v", err)
	}
	if cfg.Backend != "null" || cfg.SampleRate != 48000 || cfg.MaxVoices != 8 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.TickInterval != 20*time.Millisecond {
		t.Errorf("TickInterval = %v, want 20ms", cfg.TickInterval)
	}
	if cfg.DecodeCache.CompressionLevel != 9 || !cfg.DecodeCache.Enabled {
		t.Errorf("DecodeCache = %+v", cfg.DecodeCache)
	}
	// untouched keys keep their defaults
	if cfg.FullUpdateCycle != 4 || cfg.Headroom != 1 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigEnvOverlay(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("sound.max_voices", 8)
	viper.Set("sound.master_gain", 0.5)

	t.Setenv("SOUNDSOURCE_MAX_VOICES", "4")
	t.Setenv("SOUNDSOURCE_TICK_INTERVAL", "10ms")
	t.Setenv("SOUNDSOURCE_DECODE_CACHE_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.MaxVoices != 4 {
		t.Errorf("MaxVoices = %d, want the environment to win", cfg.MaxVoices)
	}
	if cfg.MasterGain != 0.5 {
		t.Errorf("MasterGain = %v, want the viper value", cfg.MasterGain)
	}
	if cfg.TickInterval != 10*time.Millisecond || cfg.DecodeCache.Enabled {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("SOUNDSOURCE_SAMPLE_RATE", "loud")
	if _, err := LoadConfig(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadConfig() with a bad variable error = %v, want ErrInvalidConfig", err)
	}
}

func TestPlayModeParse(t *testing.T) {
	tests := []struct {
		in   string
		want PlayMode
	}{
		{"oneshot", OneShot},
		{"OneShot", OneShot},
		{"half-shot", HalfShot},
		{"loop", Loop},
		{"loop_release", LoopRelease},
		{"Release", Release},
		{"release with jump", ReleaseWithJump},
	}
	for _, tt := range tests {
		got, err := ParsePlayMode(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParsePlayMode(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}

	if _, err := ParsePlayMode("fortissimo"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParsePlayMode(fortissimo) error = %v", err)
	}

	for _, m := range PlayModes() {
		if back, err := ParsePlayMode(m.String()); err != nil || back != m {
			t.Errorf("%v does not round trip", m)
		}
	}
	if PlayMode(42).String() != "unknown" || PlayState(42).String() != "unknown" {
		t.Error("out of range values should print unknown")
	}
}

func TestSoundError(t *testing.T) {
	cause := errors.New("boom")
	err := NewSoundError(ErrorCodeVoiceExhausted, "cannot allocate voice", cause).WithContext("voices", 3)

	if !errors.Is(err, cause) {
		t.Error("cause not unwrapped")
	}
	if !strings.Contains(err.Error(), "VOICE_EXHAUSTED") || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !err.IsRetryable() || err.IsFatal() {
		t.Error("voice exhaustion should be retryable and not fatal")
	}
	fields := err.logFields()
	if len(fields) != 4 || fields[1] != "VOICE_EXHAUSTED" {
		t.Errorf("logFields() = %v", fields)
	}
}
