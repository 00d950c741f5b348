package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Connect key.Binding
	Dismiss key.Binding
	Copy    key.Binding
	Graph   key.Binding
	Privacy key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Dismiss, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Connect, k.Dismiss, k.Copy},
		{k.Graph, k.Privacy},
		{k.Help, k.Quit},
	}
}

var keys = keyMap{
	Connect: key.NewBinding(key.WithKeys("c", "enter"), key.WithHelp("c", "connect wallet")),
	Dismiss: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss error")),
	Copy:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy address")),
	Graph:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "balance graph")),
	Privacy: key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "privacy mode")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}
