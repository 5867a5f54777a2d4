//go:build !nocgo
// +build !nocgo

package backend

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/trainsim/soundsource/internal/logging"
)

var logger = logging.New("backend")

// oto allows a single context per process, so it is created once and
// suspended/resumed across Open and Close.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoRate int
)

const (
	otoChannels   = 2
	otoSampleSize = 2
)

// OtoConfig configures the oto device.
type OtoConfig struct {
	SampleRate int           // device sample rate, 44100 or 48000
	BufferSize time.Duration // device buffer length
	MaxVoices  int           // concurrent voices, 0 for unlimited
}

// Oto is a Backend playing through github.com/ebitengine/oto/v3.
// Each voice is an oto.Player pulling converted PCM from its own queue.
type Oto struct {
	cfg OtoConfig

	mu        sync.Mutex
	open      bool
	buffers   map[BufferID]*otoBuffer
	nextBuf   BufferID
	voices    map[int]*otoVoice
	nextVoice int
	master    float64
}

type otoBuffer struct {
	pcm    []byte
	format Format
}

// NewOto creates an oto backend. The device is opened lazily by Open.
func NewOto(cfg OtoConfig) *Oto {
	return &Oto{
		cfg:     cfg,
		buffers: make(map[BufferID]*otoBuffer),
		voices:  make(map[int]*otoVoice),
		master:  1.0,
	}
}

func (o *Oto) Open() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.open {
		return nil
	}

	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   o.cfg.SampleRate,
			ChannelCount: otoChannels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   o.cfg.BufferSize,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
		otoRate = o.cfg.SampleRate
		logger.Debug("oto context ready", "sample_rate", otoRate)
	})
	if otoErr != nil {
		return otoErr
	}
	if err := otoCtx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}
	o.open = true
	return nil
}

func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.open {
		return nil
	}
	for id, v := range o.voices {
		v.close()
		delete(o.voices, id)
	}
	o.buffers = make(map[BufferID]*otoBuffer)
	o.open = false
	if err := otoCtx.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend oto context: %w", err)
	}
	return nil
}

func (o *Oto) CreateBuffer(pcm []byte, format Format) (BufferID, error) {
	if err := format.Validate(); err != nil {
		return 0, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.open {
		return 0, ErrNotOpen
	}
	o.nextBuf++
	// Keep a private copy alive for the player goroutine.
	data := make([]byte, len(pcm))
	copy(data, pcm)
	o.buffers[o.nextBuf] = &otoBuffer{pcm: data, format: format}
	return o.nextBuf, nil
}

func (o *Oto) DeleteBuffer(id BufferID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.buffers, id)
}

func (o *Oto) AllocVoice() (Voice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.open {
		return nil, ErrNotOpen
	}
	if o.cfg.MaxVoices > 0 && len(o.voices) >= o.cfg.MaxVoices {
		return nil, ErrNoVoice
	}
	o.nextVoice++
	v := &otoVoice{
		backend: o,
		id:      o.nextVoice,
		gain:    1.0,
		pitch:   1.0,
	}
	v.player = otoCtx.NewPlayer(v)
	v.player.SetVolume(o.master)
	v.player.Play()
	o.voices[v.id] = v
	return v, nil
}

func (o *Oto) SetMasterGain(gain float64) {
	o.mu.Lock()
	o.master = gain
	voices := make([]*otoVoice, 0, len(o.voices))
	for _, v := range o.voices {
		voices = append(voices, v)
	}
	o.mu.Unlock()

	for _, v := range voices {
		v.applyVolume(gain)
	}
}

func (o *Oto) MasterGain() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.master
}

func (o *Oto) buffer(id BufferID) *otoBuffer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buffers[id]
}

// otoVoice implements Voice and io.Reader. The player reads from it
// continuously; when nothing is queued or the voice is stopped it yields
// silence so the player never hits EOF.
type otoVoice struct {
	backend *Oto
	id      int
	player  *oto.Player

	mu        sync.Mutex
	queue     []*otoBuffer
	ids       []BufferID
	processed int
	frame     float64 // read position in source frames
	playing   bool
	gain      float64
	pitch     float64
	closed    bool
}

func (v *otoVoice) ID() int { return v.id }

func (v *otoVoice) Enqueue(ids ...BufferID) {
	for _, id := range ids {
		b := v.backend.buffer(id)
		if b == nil {
			logger.Warn("enqueue of unknown buffer", "voice", v.id, "buffer", id)
			continue
		}
		v.mu.Lock()
		v.queue = append(v.queue, b)
		v.ids = append(v.ids, id)
		v.mu.Unlock()
	}
}

func (v *otoVoice) Unqueue(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n > v.processed {
		n = v.processed
	}
	if n <= 0 {
		return
	}
	v.queue = append(v.queue[:0], v.queue[n:]...)
	v.ids = append(v.ids[:0], v.ids[n:]...)
	v.processed -= n
}

func (v *otoVoice) Processed() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.processed
}

func (v *otoVoice) Queued() []BufferID {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]BufferID, len(v.ids))
	copy(out, v.ids)
	return out
}

func (v *otoVoice) Current() BufferID {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.processed >= len(v.ids) {
		return 0
	}
	return v.ids[v.processed]
}

func (v *otoVoice) ByteOffset() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.processed >= len(v.queue) {
		return 0
	}
	return int(v.frame) * v.queue[v.processed].format.FrameSize()
}

func (v *otoVoice) Play() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.processed < len(v.queue) {
		v.playing = true
	}
}

func (v *otoVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.processed = len(v.queue)
	v.frame = 0
	v.playing = false
}

func (v *otoVoice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

func (v *otoVoice) SetGain(gain float64) {
	v.mu.Lock()
	v.gain = gain
	v.mu.Unlock()
	v.applyVolume(v.backend.MasterGain())
}

func (v *otoVoice) SetPitch(pitch float64) {
	v.mu.Lock()
	v.pitch = clampPitch(pitch)
	v.mu.Unlock()
}

// Spatial parameters have no effect on a stereo oto stream.
func (v *otoVoice) SetRolloff(float64)          {}
func (v *otoVoice) SetPosition(x, y, z float64) {}
func (v *otoVoice) SetVelocity(x, y, z float64) {}

func (v *otoVoice) Release() {
	v.backend.mu.Lock()
	delete(v.backend.voices, v.id)
	v.backend.mu.Unlock()
	v.close()
}

func (v *otoVoice) applyVolume(master float64) {
	v.mu.Lock()
	gain := v.gain
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return
	}
	vol := gain * master
	if vol > 1 {
		vol = 1
	}
	v.player.SetVolume(vol)
}

func (v *otoVoice) close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.playing = false
	v.mu.Unlock()
	v.player.Pause()
	if err := v.player.Close(); err != nil {
		logger.Debug("closing oto player", "voice", v.id, "err", err)
	}
}

// Read fills p with 16-bit stereo frames at the device rate.
func (v *otoVoice) Read(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	frameBytes := otoChannels * otoSampleSize
	n := len(p) / frameBytes * frameBytes
	for off := 0; off < n; off += frameBytes {
		l, r := v.nextFrame()
		binary.LittleEndian.PutUint16(p[off:], uint16(l))
		binary.LittleEndian.PutUint16(p[off+2:], uint16(r))
	}
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// nextFrame returns one output frame and advances the read position.
// Callers hold v.mu.
func (v *otoVoice) nextFrame() (int16, int16) {
	for v.playing {
		if v.processed >= len(v.queue) {
			v.playing = false
			break
		}
		b := v.queue[v.processed]
		fs := b.format.FrameSize()
		frames := len(b.pcm) / fs
		idx := int(v.frame)
		if idx >= frames {
			v.frame -= float64(frames)
			if v.frame < 0 {
				v.frame = 0
			}
			v.processed++
			continue
		}
		l, r := sampleAt(b, idx*fs)
		v.frame += float64(b.format.SampleRate) / float64(otoRate) * v.pitch
		return l, r
	}
	return 0, 0
}

func sampleAt(b *otoBuffer, off int) (int16, int16) {
	read := func(o int) int16 {
		if b.format.BitsPerSample == 8 {
			return int16(int(b.pcm[o])-128) << 8
		}
		return int16(binary.LittleEndian.Uint16(b.pcm[o:]))
	}
	l := read(off)
	if b.format.Channels == 1 {
		return l, l
	}
	return l, read(off + b.format.BitsPerSample/8)
}

// clampPitch keeps pathological pitch values from stalling the stream.
func clampPitch(p float64) float64 {
	if math.IsNaN(p) || p <= 0 {
		return 1
	}
	return math.Min(p, 8)
}
