package sound

import (
	"fmt"
	"strings"
)

// PlayMode says how a cue is played through its segments.
type PlayMode int

const (
	// OneShot plays every segment once.
	OneShot PlayMode = iota
	// HalfShot plays the intro and the loop segment once.
	HalfShot
	// Loop repeats every segment until released.
	Loop
	// LoopRelease plays the intro, then repeats the loop segment until released.
	LoopRelease
	// Release ends a loop after its current pass.
	Release
	// ReleaseWithJump ends a loop through its release segment.
	ReleaseWithJump
)

var modeNames = map[PlayMode]string{
	OneShot:         "oneshot",
	HalfShot:        "halfshot",
	Loop:            "loop",
	LoopRelease:     "looprelease",
	Release:         "release",
	ReleaseWithJump: "releasewithjump",
}

// String returns the string representation of the mode.
func (m PlayMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// IsRelease reports whether the mode ends a running loop.
func (m PlayMode) IsRelease() bool {
	return m == Release || m == ReleaseWithJump
}

// IsLoop reports whether the mode keeps playing until released.
func (m PlayMode) IsLoop() bool {
	return m == Loop || m == LoopRelease
}

// ParsePlayMode parses a mode name, ignoring case, dashes and underscores.
func ParsePlayMode(s string) (PlayMode, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	for m, name := range modeNames {
		if name == norm {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// PlayModes lists every mode in declaration order.
func PlayModes() []PlayMode {
	return []PlayMode{OneShot, HalfShot, Loop, LoopRelease, Release, ReleaseWithJump}
}

// PlayState is the lifecycle stage of a queued command.
type PlayState int

const (
	// NOP marks an idle or finished slot.
	NOP PlayState = iota
	// New is a queued command that has not started.
	New
	// Playing has its segments submitted to the voice.
	Playing
	// Stopping waits for the voice queue to drain.
	Stopping
)

// String returns the string representation of the state.
func (s PlayState) String() string {
	switch s {
	case NOP:
		return "nop"
	case New:
		return "new"
	case Playing:
		return "playing"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}
