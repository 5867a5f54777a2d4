package asset

import (
	"errors"
	"fmt"

	"github.com/trainsim/soundsource/internal/backend"
	"github.com/trainsim/soundsource/internal/logging"
)

var logger = logging.New("asset")

// ErrDecode is wrapped by every failure to turn a file into PCM segments.
var ErrDecode = errors.New("asset decode failed")

// MaxSegments is the number of ordered segments an asset can hold:
// intro, loop and release.
const MaxSegments = 3

// DefaultCheckFactor is the checkpoint window in bytes per channel at pitch 1.
const DefaultCheckFactor = 8192

// Decoded is raw PCM split into up to three segments. Empty segments are absent.
type Decoded struct {
	Segments [MaxSegments][]byte
	Format   backend.Format
}

// Decoder turns a named file into decoded PCM.
type Decoder interface {
	Decode(name string, external bool) (*Decoded, error)
}

// Sink is the part of a voice the asset needs to submit segments and
// measure playback progress.
type Sink interface {
	Enqueue(ids ...backend.BufferID)
	ByteOffset() int
}

// Segment is one uploaded PCM buffer.
type Segment struct {
	ID     backend.BufferID
	Length int // bytes
}

// Asset is an immutable sound clip made of up to three backend buffers.
// An invalid asset has no buffers and every operation on it is a no-op.
type Asset struct {
	name     string
	external bool

	segments    [MaxSegments]Segment
	format      backend.Format
	checkFactor int

	valid  bool
	single bool
}

// Load decodes name and uploads its segments to b. On failure it returns an
// invalid asset together with the error; the asset is still safe to use.
func Load(b backend.Backend, dec Decoder, name string, external bool, checkFactor int) (*Asset, error) {
	a := &Asset{name: name, external: external, checkFactor: checkFactor}
	if a.checkFactor <= 0 {
		a.checkFactor = DefaultCheckFactor
	}

	d, err := dec.Decode(name, external)
	if err != nil {
		return a, fmt.Errorf("%w: %s: %w", ErrDecode, name, err)
	}
	if err := d.Format.Validate(); err != nil {
		return a, fmt.Errorf("%w: %s: %w", ErrDecode, name, err)
	}

	for i, pcm := range d.Segments {
		if len(pcm) == 0 {
			continue
		}
		id, err := b.CreateBuffer(pcm, d.Format)
		if err != nil {
			a.dispose(b)
			return a, fmt.Errorf("%w: %s: upload segment %d: %w", ErrDecode, name, i, err)
		}
		a.segments[i] = Segment{ID: id, Length: len(pcm)}
	}
	if a.segments[0].ID == 0 && a.segments[1].ID == 0 && a.segments[2].ID == 0 {
		return a, fmt.Errorf("%w: %s: no audio data", ErrDecode, name)
	}

	a.format = d.Format
	a.valid = true
	a.single = a.segments[1].ID == 0 && a.segments[2].ID == 0
	return a, nil
}

// Name returns the file name the asset was loaded from.
func (a *Asset) Name() string { return a.name }

// External reports whether the asset was loaded as an external (mono) sound.
func (a *Asset) External() bool { return a.external }

// Valid reports whether decoding succeeded.
func (a *Asset) Valid() bool { return a.valid }

// Single reports whether only the first segment is present.
func (a *Asset) Single() bool { return a.single }

// Format returns the PCM layout shared by all segments.
func (a *Asset) Format() backend.Format { return a.format }

// Segment returns segment i. Absent segments have a zero ID.
func (a *Asset) Segment(i int) Segment {
	if i < 0 || i >= MaxSegments {
		return Segment{}
	}
	return a.segments[i]
}

// Length returns the playable length in bytes: the first segment for a
// single asset, the sum of all segments otherwise.
func (a *Asset) Length() int {
	if a.single {
		return a.segments[0].Length
	}
	return a.segments[0].Length + a.segments[1].Length + a.segments[2].Length
}

// Owns reports whether id is one of this asset's buffers.
func (a *Asset) Owns(id backend.BufferID) bool {
	if id == 0 {
		return false
	}
	return id == a.segments[0].ID || id == a.segments[1].ID || id == a.segments[2].ID
}

// IsLast reports whether id is the last present segment. Always true for a
// single-segment asset.
func (a *Asset) IsLast(id backend.BufferID) bool {
	if a.single {
		return true
	}
	for i := MaxSegments - 1; i >= 0; i-- {
		if a.segments[i].ID != 0 {
			return id == a.segments[i].ID
		}
	}
	return false
}

// IsSecond reports whether id is the loop segment, or the first segment when
// there is no loop segment.
func (a *Asset) IsSecond(id backend.BufferID) bool {
	if a.segments[1].ID == 0 {
		return id != 0 && id == a.segments[0].ID
	}
	return id == a.segments[1].ID
}

// QueueAll submits every present segment in order.
func (a *Asset) QueueAll(s Sink) { a.queue(s, 0, 1, 2) }

// Queue12 submits the intro and loop segments.
func (a *Asset) Queue12(s Sink) { a.queue(s, 0, 1) }

// Queue2 submits the loop segment.
func (a *Asset) Queue2(s Sink) { a.queue(s, 1) }

// Queue3 submits the release segment.
func (a *Asset) Queue3(s Sink) { a.queue(s, 2) }

func (a *Asset) queue(s Sink, idx ...int) {
	if !a.valid {
		return
	}
	ids := make([]backend.BufferID, 0, len(idx))
	for _, i := range idx {
		if a.segments[i].ID != 0 {
			ids = append(ids, a.segments[i].ID)
		}
	}
	if len(ids) > 0 {
		s.Enqueue(ids...)
	}
}

// IsCheckpoint reports whether playback of buffer id is close enough to its
// end that the next segment must be queued. Segments shorter than the window
// are always at their checkpoint.
func (a *Asset) IsCheckpoint(s Sink, id backend.BufferID, pitch float64) bool {
	if !a.valid || id == 0 {
		return false
	}
	length := -1
	for _, seg := range a.segments {
		if seg.ID == id {
			length = seg.Length
			break
		}
	}
	if length < 0 {
		return false
	}

	threshold := int(float64(a.checkFactor*a.format.Channels) * pitch)
	if length < threshold {
		return true
	}
	pos := s.ByteOffset()
	return pos >= length-threshold && pos < length
}

// dispose deletes the backend buffers. The asset becomes invalid.
func (a *Asset) dispose(b backend.Backend) {
	for i := range a.segments {
		if a.segments[i].ID != 0 {
			b.DeleteBuffer(a.segments[i].ID)
		}
		a.segments[i] = Segment{}
	}
	a.valid = false
	a.single = false
}
