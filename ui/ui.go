// Package ui provides the live monitor of the soundsource player.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"

	"github.com/trainsim/soundsource/internal/sound"
)

const (
	statusMessageTimeout = time.Second * 3
	ellipsis             = "…"
	maxVolume            = 1.0
)

// Engine is the part of the sound subsystem the monitor reads and mutes.
type Engine interface {
	Snapshot() sound.SubsystemSnapshot
	MuteAll() error
	UnMuteAll() error
}

// Control is the part of a source the monitor drives.
type Control interface {
	ID() int
	Queue(name string, mode sound.PlayMode, external bool)
	WantsVoice() bool
	SetHardActive(on bool)
	Volume() float64
	SetVolume(v float64)
	PlaybackSpeed() float64
	SetPlaybackSpeed(speed float64) error
}

// Track is a source together with the cue it was started with.
type Track struct {
	Source   Control
	Cue      string
	Mode     sound.PlayMode
	External bool
}

// NewProgram returns a new Tea program. The program is killed when ctx is
// done.
func NewProgram(ctx context.Context, cfg Config, engine Engine, tracks []Track) *tea.Program {
	log.Debug("Starting monitor", "tracks", len(tracks), "refresh", cfg.Refresh)
	return tea.NewProgram(newModel(cfg, engine, tracks),
		tea.WithAltScreen(),
		tea.WithContext(ctx))
}

type tickMsg time.Time

type model struct {
	cfg    Config
	engine Engine
	tracks []Track
	keys   keyMap
	help   help.Model

	snap   sound.SubsystemSnapshot
	cursor int
	width  int
	height int

	statusMessage string
	statusIsError bool
	statusUntil   time.Time
}

func newModel(cfg Config, engine Engine, tracks []Track) model {
	if cfg.Refresh <= 0 {
		cfg.Refresh = 100 * time.Millisecond
	}
	return model{
		cfg:    cfg,
		engine: engine,
		tracks: tracks,
		keys:   newKeyMap(),
		help:   help.New(),
		snap:   engine.Snapshot(),
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.cfg.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return m.tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.snap = m.engine.Snapshot()
		if m.statusMessage != "" && !time.Time(msg).Before(m.statusUntil) {
			m.statusMessage = ""
		}
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Mute):
		m.toggleMute()
		return m, nil
	}

	if len(m.tracks) == 0 {
		return m, nil
	}
	t := m.tracks[m.cursor]

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.tracks)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Trigger):
		t.Source.Queue(t.Cue, t.Mode, t.External)
		m.showStatus(fmt.Sprintf("queued %s (%s)", t.Cue, t.Mode), false)
	case key.Matches(msg, m.keys.Release):
		t.Source.Queue(t.Cue, sound.Release, t.External)
		m.showStatus("released "+t.Cue, false)
	case key.Matches(msg, m.keys.JumpRelease):
		t.Source.Queue(t.Cue, sound.ReleaseWithJump, t.External)
		m.showStatus("released "+t.Cue+" through its tail", false)
	case key.Matches(msg, m.keys.Active):
		on := !t.Source.WantsVoice()
		t.Source.SetHardActive(on)
		if on {
			m.showStatus("voice requested for "+t.Cue, false)
		} else {
			m.showStatus("voice returned by "+t.Cue, false)
		}
	case key.Matches(msg, m.keys.VolumeUp):
		t.Source.SetVolume(min(maxVolume, t.Source.Volume()+m.cfg.VolumeStep))
	case key.Matches(msg, m.keys.VolumeDown):
		t.Source.SetVolume(max(0, t.Source.Volume()-m.cfg.VolumeStep))
	case key.Matches(msg, m.keys.PitchUp):
		m.setPitch(t, t.Source.PlaybackSpeed()+m.cfg.PitchStep)
	case key.Matches(msg, m.keys.PitchDown):
		m.setPitch(t, t.Source.PlaybackSpeed()-m.cfg.PitchStep)
	}
	m.snap = m.engine.Snapshot()
	return m, nil
}

func (m *model) toggleMute() {
	var err error
	if m.snap.Muted {
		err = m.engine.UnMuteAll()
	} else {
		err = m.engine.MuteAll()
	}
	if err != nil {
		log.Error("unable to toggle mute", "error", err)
		m.showStatus(err.Error(), true)
		return
	}
	m.snap = m.engine.Snapshot()
}

func (m *model) setPitch(t Track, pitch float64) {
	if err := t.Source.SetPlaybackSpeed(pitch); err != nil {
		m.showStatus(err.Error(), true)
	}
}

func (m *model) showStatus(s string, isError bool) {
	m.statusMessage = s
	m.statusIsError = isError
	m.statusUntil = time.Now().Add(statusMessageTimeout)
}

func (m model) View() string {
	var b strings.Builder
	m.statusBarView(&b)
	b.WriteString("\n\n")
	m.tableView(&b)

	if m.statusMessage != "" {
		b.WriteString("\n")
		if m.statusIsError {
			b.WriteString(errorStyle.Render(m.statusMessage))
		} else {
			b.WriteString(statusBarMessageStyle(" " + m.statusMessage + " "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m model) statusBarView(b *strings.Builder) {
	logo := logoView()

	voices := fmt.Sprintf(" %d voices ", m.snap.Voices)
	if m.snap.MaxVoices > 0 {
		voices = fmt.Sprintf(" %d/%d voices ", m.snap.Voices, m.snap.MaxVoices)
	}
	voices = statusBarVoicesStyle(voices)

	var muted string
	if m.snap.Muted {
		muted = statusBarMutedStyle(" muted ")
	}

	device := "closed"
	if m.snap.Open {
		device = "open"
	}
	note := fmt.Sprintf("device %s · %d sounds · %s",
		device, m.snap.Assets.Assets, humanize.IBytes(uint64(max(0, m.snap.Assets.Bytes)))) //nolint:gosec
	if m.snap.Assets.Invalid > 0 {
		note += fmt.Sprintf(" · %d invalid", m.snap.Assets.Invalid)
	}
	if m.cfg.AssetRoot != "" {
		note = m.cfg.AssetRoot + " · " + note
	}

	width := m.width
	if width == 0 {
		width = 80
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(voices)-
			ansi.PrintableRuneWidth(muted),
	)), ellipsis)
	note = statusBarNoteStyle(note)

	padding := max(0,
		width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(voices)-
			ansi.PrintableRuneWidth(muted),
	)

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		note,
		statusBarNoteStyle(strings.Repeat(" ", padding)),
		voices,
		muted,
	)
}
