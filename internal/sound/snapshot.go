package sound

import (
	"github.com/trainsim/soundsource/internal/asset"
)

// SourceSnapshot is a point-in-time view of one source for debugging.
type SourceSnapshot struct {
	ID         int
	Voice      int // 0 when no hardware voice is held
	Name       string
	Mode       PlayMode
	State      PlayState
	QueueLen   int
	Playing    bool
	SampleRate int
	Volume     float64
	Pitch      float64
	Active     bool
	HardActive bool // a voice is held
	WantsVoice bool // a voice is requested
}

// HasVoice reports whether the source held a voice.
func (s SourceSnapshot) HasVoice() bool { return s.Voice != 0 }

// Idle reports whether the source has nothing left to play.
func (s SourceSnapshot) Idle() bool {
	return !s.Playing && (s.QueueLen == 0 || s.State == NOP)
}

// SubsystemSnapshot is a point-in-time view of the whole engine.
type SubsystemSnapshot struct {
	Open       bool
	Muted      bool
	MasterGain float64
	Voices     int
	MaxVoices  int
	Sources    []SourceSnapshot
	Assets     asset.CacheStats
}
