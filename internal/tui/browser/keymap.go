package browser

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/mattsolo1/grove-core/tui/keymap"
)

// KeyMap defines the keybindings for the element browser
type KeyMap struct {
	keymap.Base
	Toggle     key.Binding
	Pick       key.Binding
	DropHere   key.Binding
	DropRoot   key.Binding
	CancelPick key.Binding
	AddItem    key.Binding
	AddFolder  key.Binding
	Submit     key.Binding
	Refresh    key.Binding
	ShowAll    key.Binding
	GoToTop    key.Binding
	GoToBottom key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Pick, k.DropHere, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	baseHelp := k.Base.FullHelp()
	return append(baseHelp, []key.Binding{
		k.Toggle,
		k.ShowAll,
		k.Refresh,
		k.GoToTop,
		k.GoToBottom,
	}, []key.Binding{
		k.Pick,
		k.DropHere,
		k.DropRoot,
		k.CancelPick,
	}, []key.Binding{
		k.AddItem,
		k.AddFolder,
	})
}

var keys = KeyMap{
	Base: keymap.NewBase(),
	Toggle: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter/space", "open/close folder"),
	),
	Pick: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pick up element"),
	),
	DropHere: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "drop onto folder"),
	),
	DropRoot: key.NewBinding(
		key.WithKeys("D"),
		key.WithHelp("D", "move picked element to root"),
	),
	CancelPick: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	AddItem: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "new item"),
	),
	AddFolder: key.NewBinding(
		key.WithKeys("A"),
		key.WithHelp("A", "new folder"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "create"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refetch"),
	),
	ShowAll: key.NewBinding(
		key.WithKeys("."),
		key.WithHelp(".", "show closed folder contents"),
	),
	GoToTop: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "go to top"),
	),
	GoToBottom: key.NewBinding(
		key.WithKeys("G"),
		key.WithHelp("G", "go to bottom"),
	),
}
