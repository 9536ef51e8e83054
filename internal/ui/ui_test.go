package ui

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/popup"
	"github.com/desertthunder/tabx/internal/shared"
	tu "github.com/desertthunder/tabx/internal/testing"
)

func newTestModel(t *testing.T, states map[string]*models.StatePatch) (*Model, *popup.Session, *tu.MockTransport) {
	t.Helper()
	tr := tu.NewMockTransport(
		models.TabDescriptor{TabID: "1", SiteName: "SiteA"},
		models.TabDescriptor{TabID: "2", SiteName: "SiteB", DefaultTab: true},
	)
	for id, st := range states {
		tr.SetState(id, st)
	}

	sess := popup.NewSession(popup.Options{ControlPlane: tr, Peer: tr, Logger: shared.NewLogger(io.Discard)})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(func() {
		cancel()
		sess.Close()
		tr.Close()
	})

	if err := sess.Open(ctx); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := sess.Wait(ctx); err != nil {
		t.Fatalf("wait failed: %v", err)
	}

	m := NewModel(ctx, sess)
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return m, sess, tr
}

func press(m *Model, keys string) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	return cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m *Model, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	m.Update(msg)
	return msg
}

func TestModel(t *testing.T) {
	t.Run("lists tabs from the derived view", func(t *testing.T) {
		m, _, _ := newTestModel(t, map[string]*models.StatePatch{
			"1": {Song: models.String("Song"), Artist: models.String("Artist"), IsPlaying: models.Bool(true)},
		})

		if len(m.tabList.Items()) != 2 {
			t.Fatalf("expected 2 items, got %d", len(m.tabList.Items()))
		}
		first := m.tabList.Items()[0].(tabItem)
		if first.Title() != "▶ SiteA" || first.Description() != "Artist - Song" {
			t.Errorf("unexpected first item %q / %q", first.Title(), first.Description())
		}
		second := m.tabList.Items()[1].(tabItem)
		if second.Title() != "★ SiteB" || second.Description() != "Nothing playing" {
			t.Errorf("unexpected second item %q / %q", second.Title(), second.Description())
		}
		if !strings.Contains(m.View(), "2 tabs") {
			t.Errorf("header missing from view:\n%s", m.View())
		}
	})

	t.Run("sends transport commands to the selected tab", func(t *testing.T) {
		m, _, tr := newTestModel(t, nil)

		msg := run(t, m, press(m, "n"))
		if res := msg.(Msg).data.(commandResult); res.err != nil || res.tabID != "1" {
			t.Errorf("unexpected result %+v", res)
		}

		calls := tr.CallsFor("command")
		if len(calls) != 1 || calls[0].TabID != "1" || calls[0].Command != models.CommandPlayNext {
			t.Errorf("unexpected calls %+v", calls)
		}
		if !strings.Contains(m.status, "playNext sent to tab 1") {
			t.Errorf("unexpected status %q", m.status)
		}
	})

	t.Run("skips commands the tab cannot perform", func(t *testing.T) {
		m, _, tr := newTestModel(t, map[string]*models.StatePatch{"1": {CanPlayNext: models.Bool(false)}})

		if cmd := press(m, "n"); cmd != nil {
			t.Error("expected no command")
		}
		if len(tr.CallsFor("command")) != 0 {
			t.Error("command should not be sent")
		}
		if !strings.Contains(m.status, "unavailable") {
			t.Errorf("unexpected status %q", m.status)
		}
	})

	t.Run("toggles the default tab", func(t *testing.T) {
		m, _, tr := newTestModel(t, nil)

		run(t, m, press(m, "*"))
		if calls := tr.CallsFor("set_default_tab"); len(calls) != 1 || calls[0].TabID != "1" {
			t.Errorf("unexpected set calls %+v", calls)
		}

		m.tabList.Select(1)
		run(t, m, press(m, "*"))
		if len(tr.CallsFor("unset_default_tab")) != 1 {
			t.Errorf("expected unset call, got %+v", tr.Calls())
		}
	})

	t.Run("settings panel and streamkeys toggle", func(t *testing.T) {
		m, sess, tr := newTestModel(t, nil)

		press(m, "s")
		if desc := m.tabList.Items()[0].(tabItem).Description(); !strings.Contains(desc, "streamkeys enabled") {
			t.Errorf("settings not shown: %q", desc)
		}

		run(t, m, press(m, "e"))
		if calls := tr.CallsFor("mark_tab_enabled"); len(calls) != 1 || calls[0].Enabled {
			t.Errorf("unexpected calls %+v", calls)
		}
		if rec, _ := sess.Store().Find("1"); rec.StreamkeysEnabled {
			t.Error("local flag should be flipped")
		}
	})

	t.Run("refreshes on store changes", func(t *testing.T) {
		m, _, tr := newTestModel(t, nil)
		cmd := m.Init()

		tr.Push(models.Notification{
			Action:    models.ActionUpdatePopupState,
			StateData: &models.StatePatch{Song: models.String("Pushed")},
			FromTab:   &models.TabDescriptor{TabID: "2"},
		})

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			msg := run(t, m, cmd)
			if msg.(Msg).kind != MsgStoreChanged {
				t.Fatalf("unexpected message %+v", msg)
			}
			if m.tabList.Items()[1].(tabItem).Description() == "Pushed" {
				return
			}
			cmd = m.waitForChange()
		}
		t.Error("push never reached the list")
	})

	t.Run("quit", func(t *testing.T) {
		m, _, _ := newTestModel(t, nil)
		cmd := press(m, "q")
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected quit")
		}
	})
}
