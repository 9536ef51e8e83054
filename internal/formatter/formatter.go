// package formatter renders the popup's tab view and anomaly journal as CSV, Markdown, JSON or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/popup"
	"github.com/desertthunder/tabx/internal/shared"
	"github.com/fatih/color"
)

// Supported output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

var (
	playing  = color.New(color.FgGreen, color.Bold).SprintFunc()
	paused   = color.New(color.FgYellow).SprintFunc()
	muted    = color.New(color.Faint).SprintFunc()
	favorite = color.New(color.FgMagenta, color.Bold).SprintFunc()
)

// Format renders snap in the named format.
func Format(snap popup.Snapshot, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(snap.Tabs)
	case FormatMarkdown:
		return ExportToMarkdown(snap)
	case FormatJSON:
		return shared.MarshalJSON(snap, true)
	case FormatText, "":
		return ExportToText(snap)
	default:
		return nil, fmt.Errorf("%w: format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToCSV converts tab records to CSV with columns: TabID, Site, Song, Artist, Playing, Default, Enabled
func ExportToCSV(tabs []models.TabRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"TabID", "Site", "Song", "Artist", "Playing", "Default", "Enabled"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, tab := range tabs {
		record := []string{
			tab.TabID,
			tab.SiteName,
			deref(tab.Song),
			deref(tab.Artist),
			triState(tab.IsPlaying),
			strconv.FormatBool(tab.DefaultTab),
			strconv.FormatBool(tab.StreamkeysEnabled),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a snapshot to a Markdown table with an aggregation summary
func ExportToMarkdown(snap popup.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Music tabs\n\n")
	buf.WriteString(fmt.Sprintf("**Status**: %s (%d/%d)\n", snap.Status.Phase, snap.Status.Reported, snap.Status.Expected))
	buf.WriteString(fmt.Sprintf("**Default tab**: %s\n\n", yesNo(snap.HasDefault)))

	if len(snap.Tabs) == 0 {
		buf.WriteString("_No music tabs._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| Tab | Site | Now playing | State | Default | Enabled |\n")
	buf.WriteString("|-----|------|-------------|-------|---------|---------|\n")
	for _, tab := range snap.Tabs {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
			tab.TabID, tab.SiteName, tab.SongArtistText(), stateLabel(tab), yesNo(tab.DefaultTab), yesNo(tab.StreamkeysEnabled)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a snapshot to colored plain text, one tab per line
func ExportToText(snap popup.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tabs: %d (%s, %d/%d replies)\n", len(snap.Tabs), snap.Status.Phase, snap.Status.Reported, snap.Status.Expected))
	for _, tab := range snap.Tabs {
		marker := " "
		if tab.DefaultTab {
			marker = favorite("*")
		}

		var state string
		switch {
		case tab.Playing():
			state = playing("playing")
		case models.IsFalse(tab.IsPlaying):
			state = paused("paused")
		default:
			state = muted("idle")
		}

		line := tab.SongArtistText()
		if line == "" {
			line = muted("(nothing playing)")
		}
		if !tab.StreamkeysEnabled {
			line += muted(" [disabled]")
		}
		buf.WriteString(fmt.Sprintf("%s %s  %s  %s  %s\n", marker, tab.TabID, tab.SiteName, state, line))
	}

	return buf.Bytes(), nil
}

// AnomaliesToText lists anomalies, newest last
func AnomaliesToText(anomalies []models.Anomaly) []byte {
	var buf bytes.Buffer
	for _, a := range anomalies {
		tab := a.TabID
		if tab == "" {
			tab = "-"
		}
		buf.WriteString(fmt.Sprintf("%s  %-17s  tab %-6s  %s\n", a.CreatedAt.Local().Format(time.DateTime), a.Kind, tab, a.Detail))
	}
	return buf.Bytes()
}

// AnomaliesToCSV converts anomalies to CSV with columns: ID, Session, Kind, TabID, Detail, CreatedAt
func AnomaliesToCSV(anomalies []models.Anomaly) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"ID", "Session", "Kind", "TabID", "Detail", "CreatedAt"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, a := range anomalies {
		record := []string{a.ID, a.SessionID, string(a.Kind), a.TabID, a.Detail, a.CreatedAt.UTC().Format(time.RFC3339)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteExport renders snap and writes it to path.
//
// Defaults to tabs.{ext} in the working directory.
func WriteExport(snap popup.Snapshot, format, path string) (string, error) {
	data, err := Format(snap, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = "tabs." + Extension(format)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// Extension returns the file extension for a format.
func Extension(format string) string {
	switch format {
	case FormatCSV:
		return "csv"
	case FormatMarkdown:
		return "md"
	case FormatJSON:
		return "json"
	default:
		return "txt"
	}
}

func stateLabel(tab models.TabRecord) string {
	switch {
	case tab.Playing():
		return "playing"
	case models.IsFalse(tab.IsPlaying):
		return "paused"
	default:
		return "idle"
	}
}

func triState(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
