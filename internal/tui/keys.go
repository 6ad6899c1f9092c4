package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the chat key bindings
type KeyMap struct {
	Send     key.Binding
	Quit     key.Binding
	Clear    key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

// DefaultKeyMap returns the default bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
	}
}

func (k KeyMap) helpLine() string {
	var line string
	for i, b := range []key.Binding{k.Send, k.Clear, k.PageUp, k.PageDown, k.Quit} {
		if i > 0 {
			line += " • "
		}
		line += b.Help().Key + " " + b.Help().Desc
	}
	return line
}
