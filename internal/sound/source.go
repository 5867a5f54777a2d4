package sound

import (
	"math"
	"sync"

	"github.com/trainsim/soundsource/internal/asset"
	"github.com/trainsim/soundsource/internal/backend"
)

// Roll-off factors passed to the voice.
const (
	slowRolloff     = 0.4
	defaultRolloff  = 10.0
	rolloffDistance = 350.0
	// a distance factor of 10000 marks "no custom distance"
	unsetDistance = 10000.0
)

// SourceOptions describes how a source is heard.
type SourceOptions struct {
	// Environment sources follow the listener; their position is ignored.
	Environment bool
	// SlowRolloff makes the sound carry further.
	SlowRolloff bool
	// DistanceFactor is the distance the sound should carry, in meters.
	DistanceFactor float64
}

func (o SourceOptions) rolloff() float64 {
	if o.SlowRolloff {
		return slowRolloff
	}
	if o.DistanceFactor == 0 || o.DistanceFactor == unsetDistance {
		return defaultRolloff
	}
	return rolloffDistance / o.DistanceFactor
}

// Source plays the cues of one emitter through at most one voice.
type Source struct {
	sys  *Subsystem
	id   int
	opts SourceOptions

	mu    sync.Mutex
	voice backend.Voice
	queue CommandQueue

	// wantVoice is set while a voice is requested; Update allocates it lazily
	// and keeps retrying while the budget is exhausted.
	wantVoice  bool
	active     bool
	closed     bool
	volume     float64
	pitch      float64
	sampleRate int
	position   [3]float64
	velocity   [3]float64
}

func newSource(sys *Subsystem, id int, opts SourceOptions) *Source {
	return &Source{
		sys:    sys,
		id:     id,
		opts:   opts,
		active: true,
		volume: 1,
		pitch:  1,
	}
}

// ID returns the source id, unique within its subsystem.
func (s *Source) ID() int { return s.id }

// Queue requests a cue. Requests are merged with the pending command where
// possible. Without a voice, requested or not, only the latest request is
// kept and a release empties the queue.
func (s *Source) Queue(name string, mode PlayMode, external bool) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.voice == nil {
		if mode.IsRelease() {
			s.queue.Clear()
			return
		}
		s.queue.Reset(s.sys.asset(name, external), mode)
		return
	}

	a := s.sys.asset(name, external)
	mode = effectiveMode(a, mode)
	if s.queue.Merge(name, mode) {
		return
	}
	if s.queue.Full() {
		serr := NewSoundError(ErrorCodeQueueOverflow, "command queue full", nil).
			WithContext("source", s.id).
			WithContext("name", name).
			WithContext("mode", mode.String())
		logger.Warn(serr.Message, serr.logFields()...)
		s.queue.HardClean(false, s.sys.cfg.LongOneShotBytes)
	}
	s.queue.Push(a, mode)
}

// Update runs one tick: allocate a voice if one is wanted, start pending
// commands, drive the current one and keep the voice queue fed.
func (s *Source) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.voice == nil {
		if !s.wantVoice {
			return
		}
		s.activate()
		if s.voice == nil {
			return
		}
	}

	s.checkQueue()

	processed := s.voice.Processed()
	s.voice.Unqueue(processed)
	cur := s.voice.Current()

	if tail := s.queue.Tail(); tail.State != NOP {
		tail.Update(s.voice, Observation{
			Current:  cur,
			Consumed: processed > 0,
			Pitch:    s.pitch,
		})
	}
	s.checkQueue()
	s.checkVolumeAndState()
}

func (s *Source) activate() {
	v, err := s.sys.allocVoice()
	if err != nil {
		return
	}
	s.voice = v
	v.SetGain(s.gain())
	v.SetPitch(s.pitch)
	v.SetRolloff(s.opts.rolloff())
	v.SetPosition(s.emitPosition())
	v.SetVelocity(s.velocity[0], s.velocity[1], s.velocity[2])
	logger.Debug("voice allocated", "source", s.id, "voice", v.ID())
}

// checkQueue starts the tail command when it is new and folds a release
// waiting right behind a running command into it.
func (s *Source) checkQueue() {
	for {
		s.queue.SkipNOP()
		cur := s.queue.Tail()

		switch cur.State {
		case New:
			cur.InitItemPlay(s.voice)
			if cur.State == NOP {
				// an unstarted release or an invalid asset; look further
				continue
			}
			s.sampleRate = cur.Asset.Format().SampleRate
			if !s.voice.IsPlaying() {
				s.voice.Play()
			}
			return

		case Playing, Stopping:
			next := s.queue.Next()
			if next == nil || next.State != New || !next.Mode.IsRelease() {
				return
			}
			switch cur.Mode {
			case Loop:
				// every loop pass already queues the release segment
				cur.Mode = Release
			case LoopRelease:
				cur.Mode = next.Mode
			case OneShot, HalfShot:
				cur.State = Stopping
			}
			next.State = NOP
			return

		default:
			return
		}
	}
}

// checkVolumeAndState stops a fading release outright once it is inaudible.
func (s *Source) checkVolumeAndState() {
	if s.voice == nil || s.volume != 0 {
		return
	}
	tail := s.queue.Tail()
	if tail.State == NOP || !tail.Mode.IsRelease() {
		return
	}
	tail.State = NOP
	s.halt()
}

// halt stops output and drops everything the voice still holds.
func (s *Source) halt() {
	s.voice.Stop()
	s.voice.Unqueue(s.voice.Processed())
	s.queue.SkipNOP()
}

// Stop halts playback at once and empties the queue.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voice != nil {
		s.voice.Stop()
		s.voice.Unqueue(s.voice.Processed())
	}
	s.queue.Clear()
}

// HardActive reports whether the source holds a voice.
func (s *Source) HardActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice != nil
}

// WantsVoice reports whether a voice is requested, held or not.
func (s *Source) WantsVoice() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wantVoice
}

// SetHardActive requests a voice, or gives it back. A voice is allocated by
// the next Update. Giving it back keeps at most one command to resume later.
func (s *Source) SetHardActive(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if on {
		s.wantVoice = true
		return
	}
	if s.voice != nil {
		s.halt()
		s.sys.freeVoice(s.voice)
		logger.Debug("voice released", "source", s.id, "voice", s.voice.ID())
		s.voice = nil
	}
	s.wantVoice = false
	s.queue.HardClean(true, s.sys.cfg.LongOneShotBytes)
}

// Active reports whether the source is meant to be audible.
func (s *Source) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive mutes or unmutes the source without giving up its voice.
func (s *Source) SetActive(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = on
	s.applyGain()
}

// Volume returns the source volume.
func (s *Source) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume sets the source volume. Negative values are clamped to 0.
func (s *Source) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	s.volume = v
	s.applyGain()
	s.checkVolumeAndState()
}

func (s *Source) gain() float64 {
	if !s.active {
		return 0
	}
	return s.volume * s.sys.cfg.Headroom
}

func (s *Source) applyGain() {
	if s.voice != nil {
		s.voice.SetGain(s.gain())
	}
}

// PlaybackSpeed returns the pitch multiplier.
func (s *Source) PlaybackSpeed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pitch
}

// SetPlaybackSpeed sets the pitch multiplier. NaN, infinite and non-positive
// values are rejected and the previous speed is kept.
func (s *Source) SetPlaybackSpeed(speed float64) error {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		return NewSoundError(ErrorCodeInvalidPitch, "rejected playback speed", ErrInvalidPitch).
			WithContext("source", s.id).
			WithContext("speed", speed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pitch = speed
	if s.voice != nil {
		s.voice.SetPitch(speed)
	}
	return nil
}

// SetPosition moves the source.
func (s *Source) SetPosition(x, y, z float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = [3]float64{x, y, z}
	if s.voice != nil {
		s.voice.SetPosition(s.emitPosition())
	}
}

// SetVelocity sets the source velocity.
func (s *Source) SetVelocity(x, y, z float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.velocity = [3]float64{x, y, z}
	if s.voice != nil {
		s.voice.SetVelocity(x, y, z)
	}
}

func (s *Source) emitPosition() (float64, float64, float64) {
	if s.opts.Environment {
		return 0, 0, 0
	}
	return s.position[0], s.position[1], s.position[2]
}

// Snapshot returns the current state of the source.
func (s *Source) Snapshot() SourceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SourceSnapshot{
		ID:         s.id,
		QueueLen:   s.queue.Len(),
		SampleRate: s.sampleRate,
		Volume:     s.volume,
		Pitch:      s.pitch,
		Active:     s.active,
		WantsVoice: s.wantVoice,
	}
	if s.voice != nil {
		snap.HardActive = true
		snap.Voice = s.voice.ID()
		snap.Playing = s.voice.IsPlaying()
	}
	tail := s.queue.Tail()
	if !s.queue.Empty() {
		snap.Name = tail.Name()
		snap.Mode = tail.Mode
		snap.State = tail.State
	}
	return snap
}

// uses reports whether a pending or running command refers to a, or the
// voice still holds one of its buffers.
func (s *Source) uses(a *asset.Asset) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.queue.Commands() {
		if c.State != NOP && c.Asset == a {
			return true
		}
	}
	if s.voice == nil {
		return false
	}
	for _, id := range s.voice.Queued() {
		if a.Owns(id) {
			return true
		}
	}
	return false
}

// Commands returns a copy of the pending commands, oldest first.
func (s *Source) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Commands()
}

// Close stops the source, returns its voice and drops its backend reference.
func (s *Source) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.voice != nil {
		s.halt()
		s.sys.freeVoice(s.voice)
		s.voice = nil
	}
	s.queue.Clear()
	s.wantVoice = false
	s.mu.Unlock()

	s.sys.release(s)
}
