package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tabx/internal/popup"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStoreChanged MsgKind = iota
	MsgWatchClosed
	MsgCommandDone
)

// storeChangedMsg is the constructor for [MsgStoreChanged]
func storeChangedMsg(c popup.Change) Msg {
	return Msg{kind: MsgStoreChanged, data: c}
}

// watchClosedMsg is the constructor for [MsgWatchClosed]
func watchClosedMsg() Msg {
	return Msg{kind: MsgWatchClosed}
}

// commandResult describes the outcome of one outbound tab command.
type commandResult struct {
	label string
	tabID string
	err   error
}

// commandDoneMsg is the constructor for [MsgCommandDone]
func commandDoneMsg(label, tabID string, err error) Msg {
	return Msg{kind: MsgCommandDone, data: commandResult{label: label, tabID: tabID, err: err}}
}
