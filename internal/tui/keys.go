package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	send     key.Binding
	newline  key.Binding
	sync     key.Binding
	clear    key.Binding
	liveSync key.Binding
	theme    key.Binding
	refresh  key.Binding
	targetA  key.Binding
	targetB  key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send to both"),
		),
		newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("alt+enter", "newline"),
		),
		sync: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "sync now"),
		),
		clear: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("ctrl+k", "clear"),
		),
		liveSync: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "live sync"),
		),
		theme: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "theme"),
		),
		refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh tabs"),
		),
		targetA: key.NewBinding(
			key.WithKeys("f2"),
			key.WithHelp("F2", "cycle target A"),
		),
		targetB: key.NewBinding(
			key.WithKeys("f3"),
			key.WithHelp("F3", "cycle target B"),
		),
		quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.send, k.newline, k.targetA, k.targetB, k.liveSync, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.send, k.newline, k.sync, k.clear},
		{k.targetA, k.targetB, k.refresh},
		{k.liveSync, k.theme, k.quit},
	}
}
