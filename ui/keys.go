package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Trigger     key.Binding
	Release     key.Binding
	JumpRelease key.Binding
	Active      key.Binding
	Mute        key.Binding
	VolumeUp    key.Binding
	VolumeDown  key.Binding
	PitchUp     key.Binding
	PitchDown   key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Trigger: key.NewBinding(
			key.WithKeys("enter", "p"),
			key.WithHelp("enter/p", "play cue"),
		),
		Release: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "release"),
		),
		JumpRelease: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "release with jump"),
		),
		Active: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle voice"),
		),
		Mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute all"),
		),
		VolumeUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "volume up"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "volume down"),
		),
		PitchUp: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "pitch up"),
		),
		PitchDown: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "pitch down"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Trigger, k.Release, k.Mute, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Active},
		{k.Trigger, k.Release, k.JumpRelease},
		{k.VolumeUp, k.VolumeDown, k.PitchUp, k.PitchDown},
		{k.Mute, k.Help, k.Quit},
	}
}
