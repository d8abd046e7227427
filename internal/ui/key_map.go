package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the candidate picker.
type keyMap struct {
	up           key.Binding
	down         key.Binding
	choose       key.Binding
	notAvailable key.Binding
	skip         key.Binding
	skipAll      key.Binding
	quit         key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:           key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:         key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		choose:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose")),
		notAvailable: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "not available")),
		skip:         key.NewBinding(key.WithKeys("s", "esc"), key.WithHelp("s", "skip")),
		skipAll:      key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "skip rest")),
		quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.choose, k.notAvailable, k.skip, k.skipAll, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.choose},
		{k.notAvailable, k.skip, k.skipAll},
		{k.quit},
	}
}
