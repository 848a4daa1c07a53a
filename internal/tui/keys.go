package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Filter   key.Binding
	Mode     key.Binding
	RowUp    key.Binding
	RowDown  key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Follow   key.Binding
	Pause    key.Binding
	Reset    key.Binding
	Export   key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Pause, k.Mode, k.Filter, k.Export}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Quit, k.Pause, k.Reset},
		{k.Up, k.Down, k.Filter, k.Mode},
		{k.RowUp, k.RowDown, k.PageUp, k.PageDown, k.Follow},
		{k.Export},
	}
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "prev category"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "next category"),
	),
	Filter: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter/space", "filter"),
	),
	Mode: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "line/scatter/bar"),
	),
	RowUp: key.NewBinding(
		key.WithKeys("k"),
		key.WithHelp("k", "row up"),
	),
	RowDown: key.NewBinding(
		key.WithKeys("j"),
		key.WithHelp("j", "row down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdown", "page down"),
	),
	Follow: key.NewBinding(
		key.WithKeys("f", "end"),
		key.WithHelp("f/end", "follow"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset"),
	),
	Export: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "export"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q/ctrl+c", "quit"),
	),
}
