package sound

import (
	"fmt"
	"strings"
	"time"

	"github.com/trainsim/soundsource/internal/asset"
)

// Backend names accepted in Config.Backend.
const (
	BackendOto  = "oto"
	BackendNull = "null"
)

// Config contains all sound engine configuration options.
type Config struct {
	// Device settings
	Backend    string `yaml:"backend" env:"BACKEND"`
	SampleRate int    `yaml:"sample_rate" env:"SAMPLE_RATE"`
	BufferSize int    `yaml:"buffer_size" env:"BUFFER_SIZE"` // milliseconds
	MaxVoices  int    `yaml:"max_voices" env:"MAX_VOICES"`

	// Gain settings
	MasterGain float64 `yaml:"master_gain" env:"MASTER_GAIN"`
	Headroom   float64 `yaml:"headroom" env:"HEADROOM"`

	// Queue settings
	CheckpointFactor int `yaml:"checkpoint_factor" env:"CHECKPOINT_FACTOR"`
	LongOneShotBytes int `yaml:"long_oneshot_bytes" env:"LONG_ONESHOT_BYTES"`

	// Process settings
	TickInterval    time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`
	FullUpdateCycle int           `yaml:"full_update_cycle" env:"FULL_UPDATE_CYCLE"`

	// Asset settings
	AssetRoot      string `yaml:"asset_root" env:"ASSET_ROOT"`
	ExternalSuffix string `yaml:"external_suffix" env:"EXTERNAL_SUFFIX"`
	WatchAssets    bool   `yaml:"watch_assets" env:"WATCH_ASSETS"`

	DecodeCache DecodeCacheConfig `yaml:"decode_cache" envPrefix:"DECODE_CACHE_"`
}

// DecodeCacheConfig controls the on-disk cache of decoded PCM.
type DecodeCacheConfig struct {
	Enabled          bool   `yaml:"enabled" env:"ENABLED"`
	Dir              string `yaml:"dir" env:"DIR"`
	MaxSize          int64  `yaml:"max_size" env:"MAX_SIZE"`
	CompressionLevel int    `yaml:"compression_level" env:"COMPRESSION_LEVEL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendOto,
		SampleRate: 44100,
		BufferSize: 100,
		MaxVoices:  32,

		MasterGain: 1.0,
		Headroom:   1.0,

		CheckpointFactor: asset.DefaultCheckFactor,
		LongOneShotBytes: DefaultLongOneShot,

		TickInterval:    50 * time.Millisecond,
		FullUpdateCycle: 4,

		AssetRoot:      ".",
		ExternalSuffix: asset.DefaultExternalSuffix,
		WatchAssets:    false,

		DecodeCache: DecodeCacheConfig{
			Enabled:          true,
			MaxSize:          256 * 1024 * 1024,
			CompressionLevel: 3,
		},
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendOto, BackendNull:
	default:
		return fmt.Errorf("%w: unknown backend %q (must be %s or %s)", ErrInvalidConfig, c.Backend, BackendOto, BackendNull)
	}

	switch c.SampleRate {
	case 8000, 11025, 16000, 22050, 32000, 44100, 48000:
	default:
		return fmt.Errorf("%w: invalid sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.BufferSize < 10 || c.BufferSize > 1000 {
		return fmt.Errorf("%w: buffer size must be between 10 and 1000 ms, got %d", ErrInvalidConfig, c.BufferSize)
	}
	if c.MaxVoices < 0 {
		return fmt.Errorf("%w: max voices must not be negative", ErrInvalidConfig)
	}

	if c.MasterGain < 0 || c.MasterGain > 2 {
		return fmt.Errorf("%w: master gain must be between 0 and 2, got %.2f", ErrInvalidConfig, c.MasterGain)
	}
	if c.Headroom <= 0 || c.Headroom > 1 {
		return fmt.Errorf("%w: headroom must be in (0, 1], got %.2f", ErrInvalidConfig, c.Headroom)
	}

	if c.CheckpointFactor <= 0 {
		return fmt.Errorf("%w: checkpoint factor must be positive", ErrInvalidConfig)
	}
	if c.LongOneShotBytes < 0 {
		return fmt.Errorf("%w: long one-shot length must not be negative", ErrInvalidConfig)
	}

	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", ErrInvalidConfig)
	}
	if c.FullUpdateCycle < 1 {
		return fmt.Errorf("%w: full update cycle must be at least 1", ErrInvalidConfig)
	}

	if c.ExternalSuffix == "" {
		return fmt.Errorf("%w: external suffix must not be empty", ErrInvalidConfig)
	}

	if c.DecodeCache.Enabled {
		if c.DecodeCache.MaxSize <= 0 {
			return fmt.Errorf("%w: decode cache size must be positive", ErrInvalidConfig)
		}
		if c.DecodeCache.CompressionLevel < 0 || c.DecodeCache.CompressionLevel > 22 {
			return fmt.Errorf("%w: decode cache compression level must be between 0 and 22", ErrInvalidConfig)
		}
	}

	return nil
}
