package sound

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trainsim/soundsource/internal/asset"
	"github.com/trainsim/soundsource/internal/backend"
	"github.com/trainsim/soundsource/internal/logging"
)

var logger = logging.New("sound")

// NewBackend creates the device backend named in cfg.
func NewBackend(cfg Config) (backend.Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendOto:
		return backend.NewOto(backend.OtoConfig{
			SampleRate: cfg.SampleRate,
			BufferSize: time.Duration(cfg.BufferSize) * time.Millisecond,
			MaxVoices:  cfg.MaxVoices,
		}), nil
	case BackendNull:
		return backend.NewFake(cfg.MaxVoices), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

// Subsystem owns the audio backend, the shared asset cache and the voice
// budget. Sources hold a reference to it; the backend is opened with the
// first source and shut down when the last one closes.
type Subsystem struct {
	cfg     Config
	backend backend.Backend
	assets  *asset.Cache

	mu        sync.Mutex
	open      bool
	closed    bool
	refs      int
	muted     bool
	voices    int
	exhausted bool
	nextID    int
	sources   map[int]*Source
}

// NewSubsystem creates a subsystem. The backend is not opened until the first
// source is created or MuteAll/UnMuteAll is called.
func NewSubsystem(cfg Config, b backend.Backend, dec asset.Decoder) (*Subsystem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewSoundError(ErrorCodeInvalidConfig, "cannot start sound subsystem", err)
	}
	return &Subsystem{
		cfg:     cfg,
		backend: b,
		assets: asset.NewCache(b, dec,
			asset.WithCheckFactor(cfg.CheckpointFactor),
			asset.WithExternalSuffix(cfg.ExternalSuffix)),
		sources: make(map[int]*Source),
	}, nil
}

// Config returns the configuration the subsystem was created with.
func (s *Subsystem) Config() Config { return s.cfg }

// Assets returns the shared asset cache.
func (s *Subsystem) Assets() *asset.Cache { return s.assets }

// NewSource creates a source and takes a backend reference for it.
func (s *Subsystem) NewSource(opts SourceOptions) (*Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	s.refs++
	s.nextID++
	src := newSource(s, s.nextID, opts)
	s.sources[src.id] = src
	return src, nil
}

// release drops the reference taken by NewSource.
func (s *Subsystem) release(src *Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[src.id]; !ok {
		return
	}
	delete(s.sources, src.id)
	s.refs--
	if s.refs == 0 {
		s.shutdown()
	}
}

// ensureOpen opens the backend and applies the master gain. Callers hold s.mu.
func (s *Subsystem) ensureOpen() error {
	if s.open {
		return nil
	}
	if err := s.backend.Open(); err != nil {
		return NewSoundError(ErrorCodeBackendFailure, "cannot open audio device", err).
			WithContext("backend", s.cfg.Backend)
	}
	s.open = true
	s.backend.SetMasterGain(s.masterGain())
	logger.Debug("audio device open", "backend", s.cfg.Backend, "master_gain", s.masterGain())
	return nil
}

// shutdown frees every asset and closes the backend. Callers hold s.mu.
func (s *Subsystem) shutdown() {
	if !s.open {
		return
	}
	s.assets.DisposeAll()
	if err := s.backend.Close(); err != nil {
		logger.Warn("closing audio device", "err", err)
	}
	s.open = false
	s.voices = 0
	s.exhausted = false
	logger.Debug("audio device closed")
}

func (s *Subsystem) masterGain() float64 {
	if s.muted {
		return 0
	}
	return s.cfg.MasterGain
}

// MuteAll silences every voice through the master gain. Per-source volumes
// are left untouched.
func (s *Subsystem) MuteAll() error {
	return s.setMuted(true)
}

// UnMuteAll restores the configured master gain.
func (s *Subsystem) UnMuteAll() error {
	return s.setMuted(false)
}

func (s *Subsystem) setMuted(muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.muted == muted {
		return nil
	}
	s.muted = muted
	s.backend.SetMasterGain(s.masterGain())
	logger.Debug("master gain changed", "muted", muted, "gain", s.masterGain())
	return nil
}

// Muted reports whether MuteAll is in effect.
func (s *Subsystem) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// allocVoice takes a voice from the budget. Exhaustion is logged once until
// an allocation succeeds again.
func (s *Subsystem) allocVoice() (backend.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, backend.ErrNotOpen
	}

	var (
		v   backend.Voice
		err error
	)
	if s.cfg.MaxVoices > 0 && s.voices >= s.cfg.MaxVoices {
		err = ErrVoicesExhausted
	} else {
		v, err = s.backend.AllocVoice()
		if errors.Is(err, backend.ErrNoVoice) {
			err = fmt.Errorf("%w: %w", ErrVoicesExhausted, err)
		}
	}

	if err != nil {
		if !s.exhausted {
			s.exhausted = true
			serr := NewSoundError(ErrorCodeVoiceExhausted, "cannot allocate voice", err).
				WithContext("voices", s.voices).
				WithContext("max_voices", s.cfg.MaxVoices)
			logger.Warn(serr.Message, append(serr.logFields(), "err", err)...)
		}
		return nil, err
	}

	s.voices++
	if s.exhausted {
		s.exhausted = false
		logger.Info("voices available again", "voices", s.voices)
	}
	return v, nil
}

func (s *Subsystem) freeVoice(v backend.Voice) {
	v.Release()
	s.mu.Lock()
	if s.voices > 0 {
		s.voices--
	}
	s.mu.Unlock()
}

// asset returns the cached asset for name. Decode failures are logged and
// yield an invalid asset, which plays as silence.
func (s *Subsystem) asset(name string, external bool) *asset.Asset {
	a, err := s.assets.Get(name, external)
	if err != nil {
		serr := NewSoundError(ErrorCodeAssetDecode, "cannot load sound", err).
			WithContext("name", name).
			WithContext("external", external)
		logger.Warn(serr.Message, append(serr.logFields(), "err", err)...)
	}
	return a
}

// PruneAssets frees the buffers of reloaded sounds that no source still
// plays or has queued. It returns how many assets were freed.
func (s *Subsystem) PruneAssets() int {
	s.mu.Lock()
	sources := make([]*Source, 0, len(s.sources))
	for _, src := range s.sources {
		sources = append(sources, src)
	}
	s.mu.Unlock()

	return s.assets.DisposeRetired(func(a *asset.Asset) bool {
		for _, src := range sources {
			if src.uses(a) {
				return true
			}
		}
		return false
	})
}

// ActiveCount returns the number of voices currently held by sources.
func (s *Subsystem) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voices
}

// Snapshot returns the state of the subsystem and every live source.
func (s *Subsystem) Snapshot() SubsystemSnapshot {
	s.mu.Lock()
	snap := SubsystemSnapshot{
		Open:      s.open,
		Muted:     s.muted,
		Voices:    s.voices,
		MaxVoices: s.cfg.MaxVoices,
	}
	if s.open {
		snap.MasterGain = s.backend.MasterGain()
	}
	sources := make([]*Source, 0, len(s.sources))
	for _, src := range s.sources {
		sources = append(sources, src)
	}
	s.mu.Unlock()

	sort.Slice(sources, func(i, j int) bool { return sources[i].id < sources[j].id })
	snap.Sources = make([]SourceSnapshot, 0, len(sources))
	for _, src := range sources {
		snap.Sources = append(snap.Sources, src.Snapshot())
	}
	snap.Assets = s.assets.Stats()
	return snap
}

// Close closes every remaining source and shuts the backend down. The
// subsystem cannot be used afterwards.
func (s *Subsystem) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sources := make([]*Source, 0, len(s.sources))
	for _, src := range s.sources {
		sources = append(sources, src)
	}
	s.mu.Unlock()

	for _, src := range sources {
		src.Close()
	}

	s.mu.Lock()
	s.shutdown()
	s.mu.Unlock()
	return nil
}
