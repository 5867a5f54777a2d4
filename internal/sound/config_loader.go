package sound

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by LoadConfig.
const EnvPrefix = "SOUNDSOURCE_"

// LoadConfig reads the sound section from Viper, then overlays SOUNDSOURCE_*
// environment variables, and validates the result.
func LoadConfig() (Config, error) {
	cfg := loadFromViper()

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("%w: environment: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadConfigFromViper loads the sound configuration from Viper only.
func LoadConfigFromViper() (Config, error) {
	cfg := loadFromViper()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFromViper() Config {
	cfg := DefaultConfig()

	// Device settings
	if viper.IsSet("sound.backend") {
		cfg.Backend = viper.GetString("sound.backend")
	}
	if viper.IsSet("sound.sample_rate") {
		cfg.SampleRate = viper.GetInt("sound.sample_rate")
	}
	if viper.IsSet("sound.buffer_size") {
		cfg.BufferSize = viper.GetInt("sound.buffer_size")
	}
	if viper.IsSet("sound.max_voices") {
		cfg.MaxVoices = viper.GetInt("sound.max_voices")
	}

	// Gain settings
	if viper.IsSet("sound.master_gain") {
		cfg.MasterGain = viper.GetFloat64("sound.master_gain")
	}
	if viper.IsSet("sound.headroom") {
		cfg.Headroom = viper.GetFloat64("sound.headroom")
	}

	// Queue settings
	if viper.IsSet("sound.checkpoint_factor") {
		cfg.CheckpointFactor = viper.GetInt("sound.checkpoint_factor")
	}
	if viper.IsSet("sound.long_oneshot_bytes") {
		cfg.LongOneShotBytes = viper.GetInt("sound.long_oneshot_bytes")
	}

	// Process settings
	if viper.IsSet("sound.tick_interval") {
		if d, err := time.ParseDuration(viper.GetString("sound.tick_interval")); err == nil {
			cfg.TickInterval = d
		}
	}
	if viper.IsSet("sound.full_update_cycle") {
		cfg.FullUpdateCycle = viper.GetInt("sound.full_update_cycle")
	}

	// Asset settings
	if viper.IsSet("sound.asset_root") {
		cfg.AssetRoot = viper.GetString("sound.asset_root")
	}
	if viper.IsSet("sound.external_suffix") {
		cfg.ExternalSuffix = viper.GetString("sound.external_suffix")
	}
	if viper.IsSet("sound.watch_assets") {
		cfg.WatchAssets = viper.GetBool("sound.watch_assets")
	}

	cfg.DecodeCache = loadDecodeCacheConfig(cfg.DecodeCache)
	return cfg
}

func loadDecodeCacheConfig(cfg DecodeCacheConfig) DecodeCacheConfig {
	if viper.IsSet("sound.decode_cache.enabled") {
		cfg.Enabled = viper.GetBool("sound.decode_cache.enabled")
	}
	if viper.IsSet("sound.decode_cache.dir") {
		cfg.Dir = viper.GetString("sound.decode_cache.dir")
	}
	if viper.IsSet("sound.decode_cache.max_size") {
		cfg.MaxSize = viper.GetInt64("sound.decode_cache.max_size")
	}
	if viper.IsSet("sound.decode_cache.compression_level") {
		cfg.CompressionLevel = viper.GetInt("sound.decode_cache.compression_level")
	}
	return cfg
}

// SetDefaults sets default values in Viper for the sound configuration.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("sound.backend", defaults.Backend)
	viper.SetDefault("sound.sample_rate", defaults.SampleRate)
	viper.SetDefault("sound.buffer_size", defaults.BufferSize)
	viper.SetDefault("sound.max_voices", defaults.MaxVoices)

	viper.SetDefault("sound.master_gain", defaults.MasterGain)
	viper.SetDefault("sound.headroom", defaults.Headroom)

	viper.SetDefault("sound.checkpoint_factor", defaults.CheckpointFactor)
	viper.SetDefault("sound.long_oneshot_bytes", defaults.LongOneShotBytes)

	viper.SetDefault("sound.tick_interval", defaults.TickInterval.String())
	viper.SetDefault("sound.full_update_cycle", defaults.FullUpdateCycle)

	viper.SetDefault("sound.asset_root", defaults.AssetRoot)
	viper.SetDefault("sound.external_suffix", defaults.ExternalSuffix)
	viper.SetDefault("sound.watch_assets", defaults.WatchAssets)

	viper.SetDefault("sound.decode_cache.enabled", defaults.DecodeCache.Enabled)
	viper.SetDefault("sound.decode_cache.max_size", defaults.DecodeCache.MaxSize)
	viper.SetDefault("sound.decode_cache.compression_level", defaults.DecodeCache.CompressionLevel)
}
