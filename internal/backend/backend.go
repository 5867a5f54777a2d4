package backend

import (
	"errors"
	"fmt"
)

// Common errors for backend operations
var (
	// ErrNoVoice is returned when every hardware voice is already allocated
	ErrNoVoice = errors.New("no hardware voice available")

	// ErrNotOpen is returned when the device has not been opened
	ErrNotOpen = errors.New("audio backend is not open")

	// ErrUnknownBuffer is returned for buffer ids the backend never created
	ErrUnknownBuffer = errors.New("unknown buffer")

	// ErrInvalidFormat is returned for PCM layouts the backend cannot play
	ErrInvalidFormat = errors.New("unsupported PCM format")

	// ErrUnavailable is returned when the backend was built without device support
	ErrUnavailable = errors.New("audio backend not available in this build")
)

// BufferID identifies a PCM buffer owned by the backend. Zero means "no buffer".
type BufferID uint32

// Format describes the PCM layout of a buffer.
type Format struct {
	SampleRate    int
	BitsPerSample int
	Channels      int
}

// FrameSize returns the number of bytes per sample frame.
func (f Format) FrameSize() int {
	return f.BitsPerSample / 8 * f.Channels
}

// Validate checks that the format is playable.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.BitsPerSample != 8 && f.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d bits per sample", ErrInvalidFormat, f.BitsPerSample)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("%w: %d channels", ErrInvalidFormat, f.Channels)
	}
	return nil
}

// Backend is the device-level audio API.
// All methods are non-blocking.
type Backend interface {
	// Open initializes the device. Opening an open backend is a no-op.
	Open() error

	// Close releases every voice and buffer and shuts the device down.
	Close() error

	// CreateBuffer uploads PCM data and returns its id.
	CreateBuffer(pcm []byte, format Format) (BufferID, error)

	// DeleteBuffer releases a buffer. Unknown ids are ignored.
	DeleteBuffer(id BufferID)

	// AllocVoice reserves a hardware voice, or returns ErrNoVoice.
	AllocVoice() (Voice, error)

	// SetMasterGain applies a gain multiplier to every voice.
	SetMasterGain(gain float64)

	// MasterGain returns the current master gain.
	MasterGain() float64
}

// Voice is one hardware playback channel with a small buffer input queue.
type Voice interface {
	// ID returns a stable identifier for logging and snapshots.
	ID() int

	// Enqueue appends buffers to the voice input queue.
	Enqueue(ids ...BufferID)

	// Unqueue removes up to n processed buffers from the head of the queue.
	Unqueue(n int)

	// Processed returns how many queued buffers have been fully played.
	Processed() int

	// Queued returns the buffers still in the input queue, processed ones included.
	Queued() []BufferID

	// Current returns the buffer being played, or 0 when the queue ran empty.
	Current() BufferID

	// ByteOffset returns the playback offset within the current buffer.
	ByteOffset() int

	// Play starts playback if the voice is stopped.
	Play()

	// Stop halts output and marks every queued buffer processed.
	Stop()

	// IsPlaying reports whether the voice is producing output.
	IsPlaying() bool

	SetGain(gain float64)
	SetPitch(pitch float64)
	SetRolloff(factor float64)
	SetPosition(x, y, z float64)
	SetVelocity(x, y, z float64)

	// Release returns the voice to the backend. The voice must not be used afterwards.
	Release()
}
