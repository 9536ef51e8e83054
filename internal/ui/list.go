package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/tabx/internal/models"
)

var _ list.Item = tabItem{}

// tabItem wraps [models.TabRecord] to implement [list.Item].
type tabItem struct {
	tab models.TabRecord
}

func (i tabItem) FilterValue() string { return i.tab.SiteName + " " + i.tab.SongArtistText() }

func (i tabItem) Title() string {
	var marks []string
	if i.tab.DefaultTab {
		marks = append(marks, "★")
	}
	if i.tab.Playing() {
		marks = append(marks, "▶")
	}
	if len(marks) == 0 {
		return i.tab.SiteName
	}
	return fmt.Sprintf("%s %s", strings.Join(marks, " "), i.tab.SiteName)
}

func (i tabItem) Description() string {
	desc := i.tab.SongArtistText()
	if desc == "" {
		desc = "Nothing playing"
	}
	if i.tab.ShowSettings {
		state := "disabled"
		if i.tab.StreamkeysEnabled {
			state = "enabled"
		}
		desc = fmt.Sprintf("%s • streamkeys %s", desc, state)
	}
	return desc
}
