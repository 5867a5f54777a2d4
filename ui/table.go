package ui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"

	"github.com/trainsim/soundsource/internal/sound"
)

const (
	minCueWidth = 8
	// width of every column but the cue, separators included
	fixedColumnsWidth = 2 + 4 + 6 + 1 + 12 + 9 + 4 + 6 + 6 + 8
)

func (m model) cueWidth() int {
	width := m.width
	if width == 0 {
		width = 80
	}
	return max(minCueWidth, width-fixedColumnsWidth)
}

func (m model) tableView(b *strings.Builder) {
	cw := m.cueWidth()
	header := fmt.Sprintf("  %-3s %-5s %-*s %-11s %-8s %3s %5s %5s %8s",
		"id", "voice", cw, "cue", "mode", "state", "q", "vol", "pitch", "rate")
	b.WriteString(headerStyle.Render(header) + "\n")

	if len(m.snap.Sources) == 0 {
		b.WriteString(dimStyle.Render("  no sources") + "\n")
		return
	}

	byID := make(map[int]sound.SourceSnapshot, len(m.snap.Sources))
	for _, s := range m.snap.Sources {
		byID[s.ID] = s
	}

	shown := make(map[int]bool, len(m.tracks))
	for i, t := range m.tracks {
		s, ok := byID[t.Source.ID()]
		if !ok {
			continue
		}
		shown[s.ID] = true
		if s.Name == "" {
			s.Name = t.Cue
		}
		b.WriteString(m.rowView(s, i == m.cursor, cw) + "\n")
	}
	for _, s := range m.snap.Sources {
		if !shown[s.ID] {
			b.WriteString(dimStyle.Render(m.rowView(s, false, cw)) + "\n")
		}
	}
}

func (m model) rowView(s sound.SourceSnapshot, selected bool, cw int) string {
	voice := "-"
	if s.HasVoice() {
		voice = fmt.Sprint(s.Voice)
	}
	mode, state := "-", "idle"
	if !s.Idle() {
		mode, state = s.Mode.String(), s.State.String()
	}
	rate := "-"
	if s.SampleRate > 0 {
		rate = humanize.SIWithDigits(float64(s.SampleRate), 1, "Hz")
	}

	cursor := "  "
	if selected {
		cursor = "> "
	}
	row := fmt.Sprintf("%s%-3d %-5s %-*s %-11s %-8s %3d %4.0f%% %5.2f %8s",
		cursor, s.ID, voice, cw, truncate.StringWithTail(s.Name, uint(cw), ellipsis), //nolint:gosec
		mode, state, s.QueueLen, s.Volume*100, s.Pitch, rate)

	switch {
	case selected:
		return selectedStyle.Render(row)
	case s.Playing:
		return playingStyle.Render(row)
	case !s.HardActive && !s.WantsVoice:
		return dimStyle.Render(row)
	}
	return row
}
