package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/popup"
)

// Controller is the part of a popup session the TUI drives.
type Controller interface {
	Snapshot() popup.Snapshot
	Watch(size int) (<-chan popup.Change, func())
	SendAction(ctx context.Context, tabID string, cmd models.Command) error
	SetDefaultTab(ctx context.Context, tabID string, set bool) error
	ToggleStreamkeysEnabled(ctx context.Context, tabID string) (bool, error)
	ToggleSettings(tabID string) error
	OpenTab(ctx context.Context, tabID string) error
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	ctrl     Controller
	changes  <-chan popup.Change
	stop     func()
	snapshot popup.Snapshot
	tabList  list.Model
	width    int
	height   int
	status   string
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model watching ctrl.
func NewModel(ctx context.Context, ctrl Controller) *Model {
	changes, stop := ctrl.Watch(32)
	m := &Model{
		ctx:     ctx,
		ctrl:    ctrl,
		changes: changes,
		stop:    stop,
		help:    help.New(),
		keys:    newKeyMap(),
	}

	m.tabList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.tabList.Title = "Music Tabs"
	m.tabList.SetShowHelp(false)
	m.refresh()
	return m
}

// Init starts listening for store changes.
func (m *Model) Init() tea.Cmd {
	return m.waitForChange()
}

// Close stops the store watch.
func (m *Model) Close() {
	if m.stop != nil {
		m.stop()
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tabList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if m.tabList.FilterState() == list.Filtering {
			break
		}
		if model, cmd, ok := m.handleKeys(msg); ok {
			return model, cmd
		}

	case Msg:
		switch msg.kind {
		case MsgStoreChanged:
			m.refresh()
			return m, m.waitForChange()
		case MsgWatchClosed:
			m.refresh()
			return m, nil
		case MsgCommandDone:
			res := msg.data.(commandResult)
			text := fmt.Sprintf("%s sent to tab %s", res.label, res.tabID)
			if res.err != nil {
				text = fmt.Sprintf("%s failed on tab %s: %v", res.label, res.tabID, res.err)
			}
			m.status = styles.feedback(res.err).Render(text)
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.tabList, cmd = m.tabList.Update(msg)
	return m, cmd
}

// View renders the header, the tab list and the help line.
func (m *Model) View() string {
	header := m.header()
	body := m.tabList.View()
	if len(m.snapshot.Tabs) == 0 && m.snapshot.Status.IsComplete() {
		body = styles.skipped.Render("No music tabs found")
	}

	out := fmt.Sprintf("%s\n%s", header, body)
	if m.status != "" {
		out += "\n" + m.status
	}
	return fmt.Sprintf("%s\n\n%s", out, styles.footer.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
}

func (m *Model) header() string {
	st := m.snapshot.Status
	if st.IsComplete() {
		return styles.header.Render(fmt.Sprintf("%d tabs", len(m.snapshot.Tabs)))
	}
	return styles.header.Render(fmt.Sprintf("Loading tabs (%d/%d)", st.Reported, st.Expected))
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if key.Matches(msg, m.keys.quit) {
		m.Close()
		return m, tea.Quit, true
	}

	tab, ok := m.selected()
	if !ok {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.playPause):
		return m, m.action(tab, models.CommandPlayPause, tab.CanPlayPause), true
	case key.Matches(msg, m.keys.next):
		return m, m.action(tab, models.CommandPlayNext, tab.CanPlayNext), true
	case key.Matches(msg, m.keys.prev):
		return m, m.action(tab, models.CommandPlayPrev, tab.CanPlayPrev), true
	case key.Matches(msg, m.keys.mute):
		return m, m.action(tab, models.CommandMute, nil), true
	case key.Matches(msg, m.keys.like):
		return m, m.action(tab, models.CommandLike, tab.CanLike), true
	case key.Matches(msg, m.keys.dislike):
		return m, m.action(tab, models.CommandDislike, tab.CanDislike), true
	case key.Matches(msg, m.keys.setDef):
		set := !tab.DefaultTab
		label := "set default"
		if !set {
			label = "unset default"
		}
		return m, m.run(label, tab.TabID, func(ctx context.Context) error {
			return m.ctrl.SetDefaultTab(ctx, tab.TabID, set)
		}), true
	case key.Matches(msg, m.keys.enable):
		return m, m.run("toggle streamkeys", tab.TabID, func(ctx context.Context) error {
			_, err := m.ctrl.ToggleStreamkeysEnabled(ctx, tab.TabID)
			return err
		}), true
	case key.Matches(msg, m.keys.settings):
		if err := m.ctrl.ToggleSettings(tab.TabID); err != nil {
			m.status = styles.failed.Render(err.Error())
		}
		m.refresh()
		return m, nil, true
	case key.Matches(msg, m.keys.open):
		return m, m.run("open", tab.TabID, func(ctx context.Context) error {
			return m.ctrl.OpenTab(ctx, tab.TabID)
		}), true
	}
	return m, nil, false
}

// action sends cmd unless the tab reported the capability as unavailable.
func (m *Model) action(tab models.TabRecord, cmd models.Command, capability *bool) tea.Cmd {
	if models.IsFalse(capability) {
		m.status = styles.skipped.Render(fmt.Sprintf("%s unavailable on %s", cmd, tab.SiteName))
		return nil
	}
	return m.run(string(cmd), tab.TabID, func(ctx context.Context) error {
		return m.ctrl.SendAction(ctx, tab.TabID, cmd)
	})
}

func (m *Model) run(label, tabID string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg(label, tabID, fn(m.ctx))
	}
}

func (m *Model) selected() (models.TabRecord, bool) {
	item, ok := m.tabList.SelectedItem().(tabItem)
	if !ok {
		return models.TabRecord{}, false
	}
	return item.tab, true
}

// refresh reloads the snapshot and rebuilds list items, keeping the cursor on the same tab when possible.
func (m *Model) refresh() {
	prev, hadPrev := m.selected()
	m.snapshot = m.ctrl.Snapshot()

	items := make([]list.Item, len(m.snapshot.Tabs))
	cursor := 0
	for i, tab := range m.snapshot.Tabs {
		items[i] = tabItem{tab: tab}
		if hadPrev && tab.TabID == prev.TabID {
			cursor = i
		}
	}
	m.tabList.SetItems(items)
	if len(items) > 0 {
		m.tabList.Select(cursor)
	}
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return watchClosedMsg()
		case c, ok := <-m.changes:
			if !ok {
				return watchClosedMsg()
			}
			return storeChangedMsg(c)
		}
	}
}
