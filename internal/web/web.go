// Package web serves a browser dashboard mirroring the TUI.
//
// The page is rendered server-side with html/template from the current derived view. It
// subscribes to the status server's /api/events stream and reloads on every snapshot, and
// its buttons post to the /api/tabs/{id}/... command routes. It therefore only works when
// registered on the same router as the status handler.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/popup"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Snapshotter supplies the view to render.
type Snapshotter interface {
	Snapshot() popup.Snapshot
}

// Dashboard renders the tab list page at "/".
type Dashboard struct {
	source Snapshotter
	tmpl   *template.Template
	logger *log.Logger
}

// row is one tab as the template sees it.
type row struct {
	TabID      string
	SiteName   string
	FaviconURL string
	Text       string
	Playing    bool
	Default    bool
	Enabled    bool
	Commands   []models.Command
}

type page struct {
	Loading  bool
	Reported int
	Expected int
	Rows     []row
}

// NewDashboard parses the embedded templates. It panics if they are malformed.
func NewDashboard(source Snapshotter, logger *log.Logger) *Dashboard {
	tmpl := template.Must(template.ParseFS(templateFiles, "templates/*.html"))
	return &Dashboard{source: source, tmpl: tmpl, logger: logger}
}

// Routes implements the server's Handler interface.
func (d *Dashboard) Routes() []string {
	return []string{"/{$}"}
}

// ServeHTTP renders the dashboard.
func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	if err := d.tmpl.ExecuteTemplate(&buf, "dashboard.html", newPage(d.source.Snapshot())); err != nil {
		if d.logger != nil {
			d.logger.Error("failed to render dashboard", "error", err)
		}
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func newPage(snap popup.Snapshot) page {
	p := page{
		Loading:  !snap.Status.IsComplete(),
		Reported: snap.Status.Reported,
		Expected: snap.Status.Expected,
		Rows:     make([]row, 0, len(snap.Tabs)),
	}

	for _, tab := range snap.Tabs {
		text := tab.SongArtistText()
		if text == "" {
			text = "Nothing playing"
		}
		p.Rows = append(p.Rows, row{
			TabID:      tab.TabID,
			SiteName:   tab.SiteName,
			FaviconURL: tab.FaviconURL,
			Text:       text,
			Playing:    tab.Playing(),
			Default:    tab.DefaultTab,
			Enabled:    tab.StreamkeysEnabled,
			Commands:   available(tab),
		})
	}
	return p
}

// available lists the commands a tab has not reported as unsupported.
func available(tab models.TabRecord) []models.Command {
	caps := map[models.Command]*bool{
		models.CommandPlayPause: tab.CanPlayPause,
		models.CommandPlayPrev:  tab.CanPlayPrev,
		models.CommandPlayNext:  tab.CanPlayNext,
		models.CommandLike:      tab.CanLike,
		models.CommandDislike:   tab.CanDislike,
	}

	var out []models.Command
	for _, cmd := range models.Commands {
		if models.IsFalse(caps[cmd]) {
			continue
		}
		out = append(out, cmd)
	}
	return out
}
