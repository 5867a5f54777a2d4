package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/trainsim/soundsource/internal/sound"
)

type queued struct {
	name     string
	mode     sound.PlayMode
	external bool
}

type fakeControl struct {
	id     int
	hard   bool
	volume float64
	pitch  float64
	queued []queued
}

func (c *fakeControl) ID() int { return c.id }
func (c *fakeControl) Queue(name string, mode sound.PlayMode, external bool) {
	c.queued = append(c.queued, queued{name, mode, external})
}
func (c *fakeControl) WantsVoice() bool { return c.hard }
func (c *fakeControl) SetHardActive(on bool) { c.hard = on }
func (c *fakeControl) Volume() float64 { return c.volume }
func (c *fakeControl) SetVolume(v float64) { c.volume = v }
func (c *fakeControl) PlaybackSpeed() float64 { return c.pitch }
func (c *fakeControl) SetPlaybackSpeed(p float64) error {
	if p <= 0 {
		return sound.ErrInvalidPitch
	}
	c.pitch = p
	return nil
}

type fakeEngine struct {
	snap    sound.SubsystemSnapshot
	muteErr error
	reads   int
}

func (e *fakeEngine) Snapshot() sound.SubsystemSnapshot {
	e.reads++
	return e.snap
}

func (e *fakeEngine) MuteAll() error {
	if e.muteErr != nil {
		return e.muteErr
	}
	e.snap.Muted = true
	return nil
}

func (e *fakeEngine) UnMuteAll() error {
	e.snap.Muted = false
	return nil
}

func newTestModel(t *testing.T) (model, *fakeEngine, []*fakeControl) {
	t.Helper()
	controls := []*fakeControl{
		{id: 1, hard: true, volume: 1, pitch: 1},
		{id: 2, hard: true, volume: 0.5, pitch: 1},
	}
	engine := &fakeEngine{snap: sound.SubsystemSnapshot{
		Open:      true,
		Voices:    1,
		MaxVoices: 8,
		Sources: []sound.SourceSnapshot{
			{ID: 1, Voice: 1, Name: "engine.wav", Mode: sound.Loop, State: sound.Playing, QueueLen: 1, Playing: true, Volume: 1, Pitch: 1, SampleRate: 22050, HardActive: true, WantsVoice: true},
			{ID: 2, Volume: 0.5, Pitch: 1, WantsVoice: true},
		},
	}}
	tracks := []Track{
		{Source: controls[0], Cue: "engine.wav", Mode: sound.Loop},
		{Source: controls[1], Cue: "horn.wav", Mode: sound.OneShot, External: true},
	}
	cfg := Config{Refresh: time.Millisecond, VolumeStep: 0.25, PitchStep: 0.5}
	return newModel(cfg, engine, tracks), engine, controls
}

func press(t *testing.T, m model, keys ...string) model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(model)
	}
	return m
}

func TestMonitorQueuesCues(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		track  int
		want   queued
		status string
	}{
		{"trigger first", []string{"enter"}, 0, queued{"engine.wav", sound.Loop, false}, "queued engine.wav (loop)"},
		{"trigger second", []string{"down", "p"}, 1, queued{"horn.wav", sound.OneShot, true}, "queued horn.wav"},
		{"release", []string{"r"}, 0, queued{"engine.wav", sound.Release, false}, "released engine.wav"},
		{"release with jump", []string{"R"}, 0, queued{"engine.wav", sound.ReleaseWithJump, false}, "through its tail"},
		{"cursor stops at the end", []string{"down", "down", "down", "r"}, 1, queued{"horn.wav", sound.Release, true}, "released horn.wav"},
		{"cursor stops at the top", []string{"down", "up", "up", "r"}, 0, queued{"engine.wav", sound.Release, false}, "released engine.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, controls := newTestModel(t)
			m = press(t, m, tt.keys...)

			got := controls[tt.track].queued
			if len(got) != 1 || got[0] != tt.want {
				t.Fatalf("queued = %+v, want %+v", got, tt.want)
			}
			if !strings.Contains(m.statusMessage, tt.status) || m.statusIsError {
				t.Errorf("status = %q (error %v), want %q", m.statusMessage, m.statusIsError, tt.status)
			}
		})
	}
}

func TestMonitorToggleVoice(t *testing.T) {
	m, _, controls := newTestModel(t)

	m = press(t, m, " ")
	if controls[0].hard {
		t.Error("space did not return the voice")
	}
	m = press(t, m, " ")
	if !controls[0].hard {
		t.Error("space did not request a voice")
	}
	if !strings.Contains(m.statusMessage, "voice requested") {
		t.Errorf("status = %q", m.statusMessage)
	}
}

func TestMonitorMute(t *testing.T) {
	m, engine, _ := newTestModel(t)

	m = press(t, m, "m")
	if !engine.snap.Muted || !m.snap.Muted {
		t.Fatal("m did not mute")
	}
	if !strings.Contains(m.View(), "muted") {
		t.Error("view does not show the muted badge")
	}

	m = press(t, m, "m")
	if engine.snap.Muted || m.snap.Muted {
		t.Fatal("second m did not unmute")
	}

	engine.muteErr = errors.New("device lost")
	m = press(t, m, "m")
	if !m.statusIsError || m.statusMessage != "device lost" {
		t.Errorf("status = %q (error %v), want the mute failure", m.statusMessage, m.statusIsError)
	}
}

func TestMonitorVolumeAndPitch(t *testing.T) {
	m, _, controls := newTestModel(t)

	m = press(t, m, "+")
	if controls[0].volume != 1 {
		t.Errorf("volume = %v, want clamped at 1", controls[0].volume)
	}
	m = press(t, m, "-", "-", "-", "-", "-")
	if controls[0].volume != 0 {
		t.Errorf("volume = %v, want clamped at 0", controls[0].volume)
	}

	m = press(t, m, "]")
	if controls[0].pitch != 1.5 {
		t.Errorf("pitch = %v, want 1.5", controls[0].pitch)
	}
	m = press(t, m, "[", "[", "[")
	if controls[0].pitch != 0.5 {
		t.Errorf("pitch = %v, want the last valid value 0.5", controls[0].pitch)
	}
	if !m.statusIsError || !strings.Contains(m.statusMessage, "playback speed") {
		t.Errorf("status = %q, want the pitch error", m.statusMessage)
	}
}

func TestMonitorTick(t *testing.T) {
	m, engine, _ := newTestModel(t)
	m.showStatus("hello", false)
	reads := engine.reads

	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(model)
	if cmd == nil {
		t.Error("tick did not schedule the next one")
	}
	if engine.reads != reads+1 {
		t.Errorf("snapshot read %d times, want once", engine.reads-reads)
	}
	if m.statusMessage != "hello" {
		t.Error("status cleared before its timeout")
	}

	next, _ = m.Update(tickMsg(time.Now().Add(statusMessageTimeout)))
	m = next.(model)
	if m.statusMessage != "" {
		t.Errorf("status = %q, want it cleared", m.statusMessage)
	}
}

func TestMonitorView(t *testing.T) {
	m, _, _ := newTestModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(model)

	view := m.View()
	for _, want := range []string{"soundsource", "1/8 voices", "engine.wav", "horn.wav", "playing", "idle", "kHz", "quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q:\n%s", want, view)
		}
	}

	m.width = 20
	if w := m.cueWidth(); w != minCueWidth {
		t.Errorf("cueWidth() = %d on a narrow screen, want %d", w, minCueWidth)
	}
}

func TestMonitorQuit(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
