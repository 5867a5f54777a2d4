package backend

import (
	"sync"
)

// Fake is a deterministic in-memory Backend. Nothing plays until Advance is
// called, which makes buffer consumption fully controllable from tests and
// from headless runs (--backend null).
type Fake struct {
	mu sync.Mutex

	open   bool
	opens  int
	closes int

	// OpenErr, when set, is returned by Open.
	OpenErr error

	buffers map[BufferID]fakeBuffer
	nextBuf BufferID

	maxVoices int
	voices    []*FakeVoice
	nextVoice int

	master float64
}

type fakeBuffer struct {
	size   int
	format Format
}

// NewFake creates a fake backend with at most maxVoices concurrent voices.
// A non-positive maxVoices means unlimited.
func NewFake(maxVoices int) *Fake {
	return &Fake{
		buffers:   make(map[BufferID]fakeBuffer),
		maxVoices: maxVoices,
		master:    1.0,
	}
}

func (f *Fake) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return f.OpenErr
	}
	if !f.open {
		f.open = true
		f.opens++
	}
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return nil
	}
	for _, v := range f.voices {
		v.released = true
	}
	f.voices = nil
	f.buffers = make(map[BufferID]fakeBuffer)
	f.open = false
	f.closes++
	return nil
}

func (f *Fake) CreateBuffer(pcm []byte, format Format) (BufferID, error) {
	if err := format.Validate(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return 0, ErrNotOpen
	}
	f.nextBuf++
	f.buffers[f.nextBuf] = fakeBuffer{size: len(pcm), format: format}
	return f.nextBuf, nil
}

func (f *Fake) DeleteBuffer(id BufferID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.buffers, id)
}

func (f *Fake) AllocVoice() (Voice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return nil, ErrNotOpen
	}
	if f.maxVoices > 0 && len(f.voices) >= f.maxVoices {
		return nil, ErrNoVoice
	}
	f.nextVoice++
	v := &FakeVoice{
		backend: f,
		id:      f.nextVoice,
		gain:    1.0,
		pitch:   1.0,
		rolloff: 1.0,
	}
	f.voices = append(f.voices, v)
	return v, nil
}

func (f *Fake) SetMasterGain(gain float64) {
	f.mu.Lock()
	f.master = gain
	f.mu.Unlock()
}

func (f *Fake) MasterGain() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.master
}

// IsOpen reports whether the fake device is open.
func (f *Fake) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Opens returns how many times the device went from closed to open.
func (f *Fake) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// Closes returns how many times the device was shut down.
func (f *Fake) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// Buffers returns the number of live buffers.
func (f *Fake) Buffers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buffers)
}

// Voices returns the currently allocated voices.
func (f *Fake) Voices() []*FakeVoice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeVoice, len(f.voices))
	copy(out, f.voices)
	return out
}

// BufferSize returns the byte length of a buffer, or 0 if unknown.
func (f *Fake) BufferSize(id BufferID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffers[id].size
}

// Advance plays n bytes on every playing voice.
func (f *Fake) Advance(n int) {
	for _, v := range f.Voices() {
		v.Advance(n)
	}
}

// EffectiveGain returns master gain times the voice gain.
func (f *Fake) EffectiveGain(v *FakeVoice) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.master * v.gain
}

func (f *Fake) releaseVoice(v *FakeVoice) {
	for i, cur := range f.voices {
		if cur == v {
			f.voices = append(f.voices[:i], f.voices[i+1:]...)
			break
		}
	}
	v.released = true
}

// FakeVoice is the Voice handed out by Fake.
type FakeVoice struct {
	backend *Fake
	id      int

	queue     []BufferID
	processed int
	offset    int
	playing   bool

	gain     float64
	pitch    float64
	rolloff  float64
	position [3]float64
	velocity [3]float64

	// enqueue log, never trimmed
	enqueued []BufferID
	plays    int
	stops    int
	released bool
}

func (v *FakeVoice) ID() int { return v.id }

func (v *FakeVoice) Enqueue(ids ...BufferID) {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	v.queue = append(v.queue, ids...)
	v.enqueued = append(v.enqueued, ids...)
}

func (v *FakeVoice) Unqueue(n int) {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	if n > v.processed {
		n = v.processed
	}
	if n <= 0 {
		return
	}
	v.queue = append(v.queue[:0], v.queue[n:]...)
	v.processed -= n
}

func (v *FakeVoice) Processed() int {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	return v.processed
}

func (v *FakeVoice) Current() BufferID {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	if v.processed >= len(v.queue) {
		return 0
	}
	return v.queue[v.processed]
}

func (v *FakeVoice) ByteOffset() int {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	return v.offset
}

func (v *FakeVoice) Play() {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	v.plays++
	if v.processed < len(v.queue) {
		v.playing = true
	}
}

func (v *FakeVoice) Stop() {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	v.stops++
	v.processed = len(v.queue)
	v.offset = 0
	v.playing = false
}

func (v *FakeVoice) IsPlaying() bool {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	return v.playing
}

func (v *FakeVoice) SetGain(gain float64) {
	v.backend.mu.Lock()
	v.gain = gain
	v.backend.mu.Unlock()
}

func (v *FakeVoice) SetPitch(pitch float64) {
	v.backend.mu.Lock()
	v.pitch = pitch
	v.backend.mu.Unlock()
}

func (v *FakeVoice) SetRolloff(factor float64) {
	v.backend.mu.Lock()
	v.rolloff = factor
	v.backend.mu.Unlock()
}

func (v *FakeVoice) SetPosition(x, y, z float64) {
	v.backend.mu.Lock()
	v.position = [3]float64{x, y, z}
	v.backend.mu.Unlock()
}

func (v *FakeVoice) SetVelocity(x, y, z float64) {
	v.backend.mu.Lock()
	v.velocity = [3]float64{x, y, z}
	v.backend.mu.Unlock()
}

func (v *FakeVoice) Release() {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	v.backend.releaseVoice(v)
}

// Advance consumes n bytes of queued audio. A voice that runs out of
// buffers stops on its own.
func (v *FakeVoice) Advance(n int) {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	for n > 0 && v.playing {
		if v.processed >= len(v.queue) {
			v.playing = false
			break
		}
		size := v.backend.buffers[v.queue[v.processed]].size
		left := size - v.offset
		if n < left {
			v.offset += n
			return
		}
		n -= left
		v.offset = 0
		v.processed++
	}
	if v.processed >= len(v.queue) {
		v.playing = false
	}
}

// Queued returns the buffers still in the input queue, processed ones included.
func (v *FakeVoice) Queued() []BufferID {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	out := make([]BufferID, len(v.queue))
	copy(out, v.queue)
	return out
}

// Enqueued returns every buffer ever enqueued on the voice, in order.
func (v *FakeVoice) Enqueued() []BufferID {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	out := make([]BufferID, len(v.enqueued))
	copy(out, v.enqueued)
	return out
}

// Gain returns the voice gain without the master gain applied.
func (v *FakeVoice) Gain() float64 {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	return v.gain
}

func (v *FakeVoice) Pitch() float64 {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	return v.pitch
}

func (v *FakeVoice) Rolloff() float64 {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	return v.rolloff
}

func (v *FakeVoice) Position() [3]float64 {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	return v.position
}

// Plays returns the number of Play calls.
func (v *FakeVoice) Plays() int {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	return v.plays
}

// Stops returns the number of Stop calls.
func (v *FakeVoice) Stops() int {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	return v.stops
}

// Released reports whether the voice went back to the backend.
func (v *FakeVoice) Released() bool {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	return v.released
}
