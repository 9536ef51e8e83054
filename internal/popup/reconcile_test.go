package popup

import (
	"testing"

	"github.com/desertthunder/tabx/internal/models"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name    string
		seed    bool
		report  Report
		want    Outcome
		records int
	}{
		{
			name:    "new tab with metadata is created",
			report:  Report{TabID: "1", State: &models.StatePatch{IsPlaying: models.Bool(true)}, Tab: desc("1", "SiteA")},
			want:    OutcomeCreated,
			records: 1,
		},
		{
			name:    "new tab without payload is still created",
			report:  Report{TabID: "1", Tab: desc("1", "SiteA")},
			want:    OutcomeCreated,
			records: 1,
		},
		{
			name:    "unknown tab without metadata is ignored",
			report:  Report{TabID: "9", State: &models.StatePatch{IsPlaying: models.Bool(true)}},
			want:    OutcomeIgnored,
			records: 0,
		},
		{
			name:    "known tab is patched",
			seed:    true,
			report:  Report{TabID: "1", State: &models.StatePatch{Song: models.String("A")}},
			want:    OutcomePatched,
			records: 1,
		},
		{
			name:    "known tab with an explicit null is patched",
			seed:    true,
			report:  Report{TabID: "1", State: &models.StatePatch{Nulls: models.FieldSong}},
			want:    OutcomePatched,
			records: 1,
		},
		{
			name:    "known tab with an empty payload is unchanged",
			seed:    true,
			report:  Report{TabID: "1", State: &models.StatePatch{}},
			want:    OutcomeUnchanged,
			records: 1,
		},
		{
			name:    "known tab with no payload is unchanged",
			seed:    true,
			report:  Report{TabID: "1"},
			want:    OutcomeUnchanged,
			records: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			if tt.seed {
				s.Upsert("1", nil, desc("1", "SiteA"))
			}

			got := Reconcile(s, tt.report)
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if s.Len() != tt.records {
				t.Errorf("expected %d records, got %d", tt.records, s.Len())
			}
		})
	}

	t.Run("Missing", func(t *testing.T) {
		if !(Report{TabID: "1"}).Missing() {
			t.Error("expected nil state to be missing")
		}
		if (Report{TabID: "1", State: &models.StatePatch{}}).Missing() {
			t.Error("expected empty state to be present")
		}
	})

	t.Run("default hint only applies at creation", func(t *testing.T) {
		s := NewStore()
		Reconcile(s, Report{TabID: "1", Tab: desc("1", "SiteA")})

		hinted := desc("1", "SiteA")
		hinted.DefaultTab = true
		Reconcile(s, Report{TabID: "1", State: &models.StatePatch{IsPlaying: models.Bool(true)}, Tab: hinted})

		rec, _ := s.Find("1")
		if rec.DefaultTab {
			t.Error("default hint applied to an existing record")
		}
		if !rec.Playing() {
			t.Error("expected state patch to apply")
		}
	})

	t.Run("descriptor enablement wins at creation", func(t *testing.T) {
		s := NewStore()
		d := desc("1", "SiteA")
		d.StreamkeysEnabled = models.Bool(false)
		Reconcile(s, Report{TabID: "1", State: &models.StatePatch{StreamkeysEnabled: models.Bool(true)}, Tab: d})

		rec, _ := s.Find("1")
		if rec.StreamkeysEnabled {
			t.Error("expected descriptor flag to win")
		}
	})

	t.Run("null song clears a known song", func(t *testing.T) {
		s := NewStore()
		Reconcile(s, Report{TabID: "1", State: &models.StatePatch{Song: models.String("A"), Artist: models.String("B")}, Tab: desc("1", "SiteA")})
		Reconcile(s, Report{TabID: "1", State: &models.StatePatch{Nulls: models.FieldSong}})

		rec, _ := s.Find("1")
		if rec.Song != nil {
			t.Errorf("expected song cleared, got %q", *rec.Song)
		}
		if rec.Artist == nil || *rec.Artist != "B" {
			t.Error("artist was not part of the patch and must survive")
		}
	})

	t.Run("outcome names", func(t *testing.T) {
		for o, want := range map[Outcome]string{
			OutcomeIgnored:   "ignored",
			OutcomeCreated:   "created",
			OutcomePatched:   "patched",
			OutcomeUnchanged: "unchanged",
		} {
			if o.String() != want {
				t.Errorf("expected %q, got %q", want, o.String())
			}
		}
	})
}
