package ui

import "time"

// Config contains monitor-specific configuration.
type Config struct {
	// How often the monitor reads a new snapshot.
	Refresh time.Duration `env:"SOUNDSOURCE_MONITOR_REFRESH" envDefault:"100ms"`
	// Volume and pitch change per key press.
	VolumeStep float64 `env:"SOUNDSOURCE_MONITOR_VOLUME_STEP" envDefault:"0.1"`
	PitchStep  float64 `env:"SOUNDSOURCE_MONITOR_PITCH_STEP"  envDefault:"0.1"`

	// Shown in the status bar.
	AssetRoot string
}
