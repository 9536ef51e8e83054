package popup

import (
	"testing"

	"github.com/desertthunder/tabx/internal/models"
)

func record(id, site string, canPlayPause *bool, hide bool) models.TabRecord {
	return models.TabRecord{TabID: id, SiteName: site, CanPlayPause: canPlayPause, HidePlayer: hide}
}

func ids(records []models.TabRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.SiteName + ":" + r.TabID
	}
	return out
}

func TestVisible(t *testing.T) {
	tests := []struct {
		name string
		rec  models.TabRecord
		want bool
	}{
		{name: "playable and hidden", rec: record("1", "a", models.Bool(true), true), want: true},
		{name: "not playable and hidden", rec: record("1", "a", models.Bool(false), true), want: false},
		{name: "unknown and hidden", rec: record("1", "a", nil, true), want: false},
		{name: "not playable and shown", rec: record("1", "a", models.Bool(false), false), want: true},
		{name: "unknown and shown", rec: record("1", "a", nil, false), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Visible(tt.rec); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestProject(t *testing.T) {
	t.Run("orders by site then tab id", func(t *testing.T) {
		in := []models.TabRecord{
			record("1", "b", nil, false),
			record("2", "a", nil, false),
			record("1", "a", nil, false),
		}
		got := ids(Project(in))
		want := []string{"a:1", "a:2", "b:1"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, got)
			}
		}
	})

	t.Run("numeric ids sort numerically", func(t *testing.T) {
		in := []models.TabRecord{
			record("10", "a", nil, false),
			record("9", "a", nil, false),
			record("x", "a", nil, false),
			record("100", "a", nil, false),
		}
		got := ids(Project(in))
		want := []string{"a:9", "a:10", "a:100", "a:x"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, got)
			}
		}
	})

	t.Run("drops hidden records that cannot play", func(t *testing.T) {
		in := []models.TabRecord{
			record("1", "a", models.Bool(false), true),
			record("2", "a", models.Bool(true), true),
		}
		got := Project(in)
		if len(got) != 1 || got[0].TabID != "2" {
			t.Errorf("unexpected projection %v", ids(got))
		}
		for _, r := range got {
			if models.IsFalse(r.CanPlayPause) && r.HidePlayer {
				t.Errorf("hidden record leaked: %+v", r)
			}
		}
	})

	t.Run("does not modify input", func(t *testing.T) {
		in := []models.TabRecord{record("2", "b", nil, false), record("1", "a", nil, false)}
		Project(in)
		if in[0].TabID != "2" {
			t.Error("input reordered")
		}
	})
}

func TestView(t *testing.T) {
	t.Run("recomputes on every change", func(t *testing.T) {
		s := NewStore()
		v := NewView(s)
		if v.Version() != 1 || len(v.Tabs()) != 0 {
			t.Fatalf("unexpected initial view: version %d, %d tabs", v.Version(), len(v.Tabs()))
		}

		s.Upsert("1", nil, &models.TabDescriptor{TabID: "1", SiteName: "b", HidePlayer: true})
		if len(v.Tabs()) != 0 {
			t.Error("hidden tab with unknown play state should not show")
		}

		s.Upsert("1", &models.StatePatch{CanPlayPause: models.Bool(true)}, nil)
		s.Upsert("2", nil, desc("2", "a"))

		got := ids(v.Tabs())
		if len(got) != 2 || got[0] != "a:2" || got[1] != "b:1" {
			t.Errorf("unexpected view %v", got)
		}

		NewInvalidator(s, PolicyRetroactive).ApplyDefault(models.String("1"))
		if v.Version() != 5 {
			t.Errorf("expected 5 recomputations, got %d", v.Version())
		}
		if tabs := v.Tabs(); !tabs[1].DefaultTab {
			t.Error("expected view to reflect the default flag")
		}
	})

	t.Run("close stops following the store", func(t *testing.T) {
		s := NewStore()
		v := NewView(s)
		v.Close()
		s.Upsert("1", nil, desc("1", "a"))
		if len(v.Tabs()) != 0 {
			t.Error("closed view should not update")
		}
		if s.Listeners() != 0 {
			t.Errorf("expected no listeners, got %d", s.Listeners())
		}
	})
}
