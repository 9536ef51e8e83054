package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	playPause key.Binding
	next      key.Binding
	prev      key.Binding
	mute      key.Binding
	like      key.Binding
	dislike   key.Binding
	setDef    key.Binding
	enable    key.Binding
	settings  key.Binding
	open      key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		playPause: key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
		next:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		prev:      key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "prev")),
		mute:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		like:      key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "like")),
		dislike:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dislike")),
		setDef:    key.NewBinding(key.WithKeys("*"), key.WithHelp("*", "default")),
		enable:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "enable")),
		settings:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "settings")),
		open:      key.NewBinding(key.WithKeys("o", "enter"), key.WithHelp("o", "open")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.playPause, k.next, k.prev, k.setDef, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.open},
		{k.playPause, k.next, k.prev, k.mute},
		{k.like, k.dislike, k.setDef},
		{k.enable, k.settings, k.quit},
	}
}
