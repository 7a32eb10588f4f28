package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Tab        key.Binding
	Compose    key.Binding
	Enter      key.Binding
	Escape     key.Binding
	React      key.Binding
	PrevThread key.Binding
	NextThread key.Binding
	Detach     key.Binding
	Reconnect  key.Binding
	MarkRead   key.Binding
	Up         key.Binding
	Down       key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next pane"),
		),
		Compose: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "compose"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send / toggle typing"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop composing"),
		),
		React: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5"),
			key.WithHelp("1-5", "react"),
		),
		PrevThread: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "prev thread"),
		),
		NextThread: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next thread"),
		),
		Detach: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "detach / reattach"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reconnect"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark all read"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Compose, k.React, k.PrevThread, k.NextThread, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Compose, k.Enter, k.Escape},
		{k.React, k.PrevThread, k.NextThread, k.Detach},
		{k.Reconnect, k.MarkRead, k.Up, k.Down},
		{k.Help, k.Quit},
	}
}

// reactions maps the 1-5 keys to emoji.
var reactions = map[string]string{
	"1": "👏",
	"2": "🎉",
	"3": "❤️",
	"4": "😂",
	"5": "🤔",
}
