// Package wav decodes RIFF/WAVE files into the segmented PCM the playback
// engine plays. Cue points split the sample data into intro, loop and
// release segments.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/trainsim/soundsource/internal/asset"
	"github.com/trainsim/soundsource/internal/backend"
	"github.com/trainsim/soundsource/internal/logging"
)

var logger = logging.New("wav")

// Errors returned by Parse.
var (
	ErrNotWave     = errors.New("not a RIFF/WAVE file")
	ErrNoFormat    = errors.New("missing fmt chunk")
	ErrNoData      = errors.New("missing or empty data chunk")
	ErrUnsupported = errors.New("unsupported wave encoding")
	ErrTruncated   = errors.New("truncated chunk")
)

const (
	formatPCM        = 0x0001
	formatExtensible = 0xFFFE

	noCue = ^uint32(0)
)

// Info describes a parsed file, before segmentation.
type Info struct {
	Format   backend.Format
	DataSize int
	FirstCue uint32 // sample frame, noCue when absent
	LastCue  uint32
	Cues     int
}

// HasLoop reports whether the file carries a usable pair of cue points.
func (i Info) HasLoop() bool {
	return i.FirstCue != noCue && i.LastCue != noCue
}

// Parse decodes a complete WAVE file. When mono is set, stereo data is
// reduced to its left channel.
func Parse(name string, data []byte, mono bool) (*asset.Decoded, Info, error) {
	info, pcm, err := parseChunks(data)
	if err != nil {
		return nil, info, err
	}

	if mono && info.Format.Channels == 2 {
		pcm = toMono(pcm, info.Format.BitsPerSample)
		info.Format.Channels = 1
	}
	info.DataSize = len(pcm)

	out := &asset.Decoded{Format: info.Format}
	if !info.HasLoop() {
		out.Segments[0] = pcm
		return out, info, nil
	}

	frame := uint64(info.Format.FrameSize())
	pos1 := uint64(info.FirstCue) * frame
	pos2 := uint64(info.LastCue) * frame
	if pos1 > uint64(len(pcm)) || pos2 > uint64(len(pcm)) {
		logger.Warn("invalid cue data, falling back to single buffer",
			"name", name, "length", len(pcm), "cue1", pos1, "cue2", pos2,
			"bits", info.Format.BitsPerSample, "channels", info.Format.Channels)
		info.FirstCue, info.LastCue = noCue, noCue
		out.Segments[0] = pcm
		return out, info, nil
	}

	out.Segments[0] = nonEmpty(pcm[:pos1])
	out.Segments[1] = nonEmpty(pcm[pos1:pos2])
	out.Segments[2] = nonEmpty(pcm[pos2:])
	return out, info, nil
}

func nonEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func parseChunks(data []byte) (Info, []byte, error) {
	info := Info{FirstCue: noCue, LastCue: noCue}

	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return info, nil, ErrNotWave
	}

	var (
		pcm     []byte
		haveFmt bool
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if size < 0 || end > len(data) {
			if id != "data" {
				return info, nil, fmt.Errorf("%w: %q", ErrTruncated, id)
			}
			// short data chunk: use what is there
			end = len(data)
		}
		chunk := data[body:end]

		switch id {
		case "fmt ":
			f, err := parseFormat(chunk)
			if err != nil {
				return info, nil, err
			}
			info.Format = f
			haveFmt = true
		case "data":
			pcm = chunk
		case "cue ":
			parseCues(chunk, &info)
		}

		off = end
		if size&1 == 1 {
			off++
		}
	}

	if !haveFmt {
		return info, nil, ErrNoFormat
	}
	if len(pcm) == 0 {
		return info, nil, ErrNoData
	}
	if fs := info.Format.FrameSize(); len(pcm)%fs != 0 {
		pcm = pcm[:len(pcm)-len(pcm)%fs]
	}
	if info.FirstCue != noCue && info.LastCue != noCue && info.FirstCue > info.LastCue {
		info.FirstCue, info.LastCue = info.LastCue, info.FirstCue
	}
	return info, pcm, nil
}

func parseFormat(b []byte) (backend.Format, error) {
	if len(b) < 16 {
		return backend.Format{}, fmt.Errorf("%w: fmt chunk of %d bytes", ErrTruncated, len(b))
	}
	tag := binary.LittleEndian.Uint16(b[0:2])
	f := backend.Format{
		Channels:      int(binary.LittleEndian.Uint16(b[2:4])),
		SampleRate:    int(binary.LittleEndian.Uint32(b[4:8])),
		BitsPerSample: int(binary.LittleEndian.Uint16(b[14:16])),
	}

	switch tag {
	case formatPCM:
	case formatExtensible:
		// cbSize(2) validBits(2) channelMask(4) then the sub-format GUID
		if len(b) < 26 || binary.LittleEndian.Uint16(b[24:26]) != formatPCM {
			return f, fmt.Errorf("%w: extensible non-PCM sub-format", ErrUnsupported)
		}
	default:
		return f, fmt.Errorf("%w: format tag 0x%04x", ErrUnsupported, tag)
	}

	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	return f, nil
}

// parseCues keeps the first and last cue point, as sample frames.
func parseCues(b []byte, info *Info) {
	if len(b) < 4 {
		return
	}
	n := int(binary.LittleEndian.Uint32(b[0:4]))
	for i := 0; i < n; i++ {
		p := 4 + i*24
		if p+24 > len(b) {
			break
		}
		// dwChunkStart + dwBlockStart + dwSampleOffset
		pos := binary.LittleEndian.Uint32(b[p+12:]) +
			binary.LittleEndian.Uint32(b[p+16:]) +
			binary.LittleEndian.Uint32(b[p+20:])
		if info.FirstCue == noCue {
			info.FirstCue = pos
		} else {
			info.LastCue = pos
		}
		info.Cues++
	}
}

// toMono keeps the left channel of interleaved stereo.
func toMono(pcm []byte, bits int) []byte {
	sample := bits / 8
	frames := len(pcm) / (2 * sample)
	out := make([]byte, frames*sample)
	for i := 0; i < frames; i++ {
		copy(out[i*sample:(i+1)*sample], pcm[i*2*sample:])
	}
	return out
}
