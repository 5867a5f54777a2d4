package sound

import (
	"bytes"
	"fmt"
	"os"
	"testing"

	"github.com/trainsim/soundsource/internal/asset"
	"github.com/trainsim/soundsource/internal/backend"
)

// segment length used by most test sounds; larger than the checkpoint window
// of a mono 16-bit sound at pitch 1 (8192 bytes)
const segLen = 20000

var mono16 = backend.Format{SampleRate: 22050, BitsPerSample: 16, Channels: 1}

type testDecoder map[string]*asset.Decoded

func (d testDecoder) Decode(name string, external bool) (*asset.Decoded, error) {
	if dec, ok := d[name]; ok {
		return dec, nil
	}
	return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
}

func decoded(lens ...int) *asset.Decoded {
	d := &asset.Decoded{Format: mono16}
	for i, n := range lens {
		if n > 0 {
			d.Segments[i] = make([]byte, n)
		}
	}
	return d
}

func testSounds() testDecoder {
	return testDecoder{
		"horn.wav":   decoded(segLen),
		"ding.wav":   decoded(segLen),
		"short.wav":  decoded(1000),
		"bell.wav":   decoded(60000),
		"engine.wav": decoded(segLen, segLen, segLen),
		"hiss.wav":   decoded(segLen, segLen),
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendNull
	cfg.MaxVoices = 0
	return cfg
}

func newTestSubsystem(t *testing.T, cfg Config) (*Subsystem, *backend.Fake) {
	t.Helper()
	fake := backend.NewFake(0)
	sys, err := NewSubsystem(cfg, fake, testSounds())
	if err != nil {
		t.Fatalf("NewSubsystem() error = %v", err)
	}
	t.Cleanup(func() { _ = sys.Close() })
	return sys, fake
}

func newTestSource(t *testing.T, sys *Subsystem) *Source {
	t.Helper()
	src, err := sys.NewSource(SourceOptions{})
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	return src
}

// loadAsset uploads a test sound into an open fake backend.
func loadAsset(t *testing.T, fake *backend.Fake, name string) *asset.Asset {
	t.Helper()
	if err := fake.Open(); err != nil {
		t.Fatal(err)
	}
	a, err := asset.Load(fake, testSounds(), name, false, asset.DefaultCheckFactor)
	if err != nil {
		t.Fatalf("Load(%s) error = %v", name, err)
	}
	return a
}

// voiceOf returns the only voice of the fake backend.
func voiceOf(t *testing.T, fake *backend.Fake) *backend.FakeVoice {
	t.Helper()
	voices := fake.Voices()
	if len(voices) != 1 {
		t.Fatalf("backend has %d voices, want 1", len(voices))
	}
	return voices[0]
}

func ids(a *asset.Asset, segs ...int) []backend.BufferID {
	out := make([]backend.BufferID, 0, len(segs))
	for _, i := range segs {
		out = append(out, a.Segment(i).ID)
	}
	return out
}

func equalIDs(a, b []backend.BufferID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// captureLog redirects the package logger for the duration of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	return &buf
}
