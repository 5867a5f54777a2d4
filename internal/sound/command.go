package sound

import (
	"github.com/trainsim/soundsource/internal/asset"
	"github.com/trainsim/soundsource/internal/backend"
)

// Output is what a command drives: the voice input queue, its playback
// offset and the transport. backend.Voice satisfies it.
type Output interface {
	asset.Sink
	Play()
}

// Observation is what the voice reported this tick.
type Observation struct {
	// Current is the buffer being played; 0 means the voice ran dry.
	Current backend.BufferID
	// Consumed is set when at least one buffer finished since the last tick.
	Consumed bool
	// Pitch is the playback speed in effect.
	Pitch float64
}

// Command is one queued play request.
type Command struct {
	Asset *asset.Asset
	Mode  PlayMode
	State PlayState

	// checkpoint latches a checkpoint crossing so it acts only once
	checkpoint bool
	pitch      float64
}

// Name returns the asset name, or "" for an empty slot.
func (c *Command) Name() string {
	if c.Asset == nil {
		return ""
	}
	return c.Asset.Name()
}

// InitItemPlay submits the first segments for the command's mode. It is
// called once, when the command reaches the tail of the queue as New.
func (c *Command) InitItemPlay(out Output) {
	c.checkpoint = false
	if c.Asset == nil || !c.Asset.Valid() {
		c.State = NOP
		return
	}

	switch c.Mode {
	case OneShot, Loop:
		c.Asset.QueueAll(out)
		c.State = Playing
	case LoopRelease, HalfShot:
		if c.Asset.Single() {
			c.Asset.QueueAll(out)
		} else {
			c.Asset.Queue12(out)
		}
		c.State = Playing
	default:
		// a release with nothing to release
		c.State = NOP
	}
}

// Update advances the command by one tick and returns its new state.
func (c *Command) Update(out Output, obs Observation) PlayState {
	if c.State == NOP {
		return NOP
	}
	if c.State == Stopping && obs.Current == 0 {
		c.State = NOP
		c.checkpoint = false
		return NOP
	}

	c.pitch = obs.Pitch
	if obs.Consumed {
		c.checkpoint = false
	}
	a := c.Asset
	cur := obs.Current

	switch c.Mode {
	case Loop:
		if cur == 0 {
			a.QueueAll(out)
			out.Play()
			break
		}
		if c.crossed(out, cur) && a.IsLast(cur) {
			a.QueueAll(out)
		}

	case LoopRelease:
		if cur == 0 {
			a.Queue2(out)
			out.Play()
			break
		}
		if c.crossed(out, cur) && a.IsSecond(cur) {
			a.Queue2(out)
		}

	case Release:
		if cur == 0 {
			c.State = NOP
			break
		}
		if !c.crossed(out, cur) {
			break
		}
		if (a.Single() && a.IsLast(cur)) || (!a.Single() && a.IsSecond(cur)) {
			c.State = NOP
		}

	case ReleaseWithJump:
		if cur == 0 {
			c.State = NOP
			break
		}
		if !c.crossed(out, cur) {
			break
		}
		if a.IsSecond(cur) {
			a.Queue3(out)
		}
		if a.IsLast(cur) {
			c.State = NOP
		}

	case OneShot:
		if cur == 0 {
			c.State = NOP
			break
		}
		if c.crossed(out, cur) && a.IsLast(cur) {
			c.State = NOP
		}

	case HalfShot:
		if cur == 0 {
			c.State = NOP
			break
		}
		if obs.Consumed && (a.Single() || a.IsSecond(cur)) {
			c.State = NOP
		}
	}

	if c.State == NOP {
		c.checkpoint = false
	}
	return c.State
}

// crossed reports a checkpoint the first tick playback enters the window.
func (c *Command) crossed(out Output, cur backend.BufferID) bool {
	if !c.Asset.IsCheckpoint(out, cur, c.pitch) {
		c.checkpoint = false
		return false
	}
	if c.checkpoint {
		return false
	}
	c.checkpoint = true
	return true
}

// collapse folds a new request into a pending command of the same source.
// It returns the merged mode and whether a rule applied.
func collapse(existing, requested PlayMode, sameName bool) (PlayMode, bool) {
	switch existing {
	case Loop:
		if requested.IsRelease() {
			return OneShot, true
		}
	case LoopRelease:
		switch requested {
		case Release:
			return HalfShot, true
		case ReleaseWithJump:
			return OneShot, true
		}
	case HalfShot:
		if sameName && (requested == LoopRelease || requested == Loop || requested == OneShot) {
			return requested, true
		}
	case OneShot:
		if sameName && (requested == LoopRelease || requested == Loop || requested == HalfShot) {
			return requested, true
		}
	}
	return existing, false
}
