package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/popup"
	"github.com/desertthunder/tabx/internal/shared"
)

type staticSnapshot popup.Snapshot

func (s staticSnapshot) Snapshot() popup.Snapshot { return popup.Snapshot(s) }

func TestDashboard(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("renders tabs", func(t *testing.T) {
		snap := staticSnapshot{
			Status: popup.Status{Phase: popup.Complete, Expected: 2, Reported: 2},
			Tabs: []models.TabRecord{
				{TabID: "1", SiteName: "SiteA", Song: models.String("Song"), Artist: models.String("Artist"), IsPlaying: models.Bool(true), DefaultTab: true, StreamkeysEnabled: true},
				{TabID: "2", SiteName: "<SiteB>", CanPlayNext: models.Bool(false)},
			},
		}

		rec := httptest.NewRecorder()
		NewDashboard(snap, logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := rec.Body.String()
		for _, want := range []string{"2 tabs", "★ ▶ SiteA", "Artist - Song", "Nothing playing", "&lt;SiteB&gt;", "unset default"} {
			if !strings.Contains(body, want) {
				t.Errorf("body missing %q", want)
			}
		}
		if strings.Count(body, `data-command="playNext"`) != 1 {
			t.Error("playNext should only be offered where it is not reported unavailable")
		}
	})

	t.Run("loading and empty states", func(t *testing.T) {
		tc := []struct {
			name string
			snap staticSnapshot
			want string
		}{
			{name: "loading", snap: staticSnapshot{Status: popup.Status{Phase: popup.Counting, Expected: 3, Reported: 1}}, want: "Loading tabs (1/3)"},
			{name: "empty", snap: staticSnapshot{Status: popup.Status{Phase: popup.Complete}}, want: "No music tabs found"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				rec := httptest.NewRecorder()
				NewDashboard(tt.snap, logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
				if !strings.Contains(rec.Body.String(), tt.want) {
					t.Errorf("body missing %q:\n%s", tt.want, rec.Body.String())
				}
			})
		}
	})

	t.Run("rejects other methods", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewDashboard(staticSnapshot{}, logger).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}
