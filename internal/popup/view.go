package popup

import (
	"sort"
	"strconv"
	"sync"

	"github.com/desertthunder/tabx/internal/models"
)

// Visible reports whether a record belongs in the derived view.
//
// A tab is shown when it can report play/pause, or when the source did not ask to hide it.
func Visible(rec models.TabRecord) bool {
	return models.IsTrue(rec.CanPlayPause) || !rec.HidePlayer
}

// Project filters records with [Visible] and orders them by site name, then tab id.
//
// The input slice is not modified.
func Project(records []models.TabRecord) []models.TabRecord {
	out := make([]models.TabRecord, 0, len(records))
	for _, rec := range records {
		if Visible(rec) {
			out = append(out, rec)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SiteName != out[j].SiteName {
			return out[i].SiteName < out[j].SiteName
		}
		return lessTabID(out[i].TabID, out[j].TabID)
	})
	return out
}

// lessTabID orders numeric ids numerically and everything else lexically.
func lessTabID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

// View is the derived, read-only projection of a [Store], recomputed on every change.
type View struct {
	store *Store
	subID int64

	mu      sync.RWMutex
	tabs    []models.TabRecord
	rev     uint64 // store revision tabs was projected from
	version uint64
}

// NewView subscribes to store and computes the initial projection.
func NewView(store *Store) *View {
	v := &View{store: store}
	v.recompute()
	v.subID = store.Subscribe(func(Change) { v.recompute() })
	return v
}

func (v *View) recompute() {
	v.store.mu.RLock()
	records := v.store.allLocked()
	rev := v.store.rev
	v.store.mu.RUnlock()

	tabs := Project(records)
	v.mu.Lock()
	if v.version == 0 || rev > v.rev {
		v.tabs = tabs
		v.rev = rev
	}
	v.version++
	v.mu.Unlock()
}

// projectionLocked returns a copy of the projection when it was computed from store revision rev.
// Requires the store lock.
func (v *View) projectionLocked(rev uint64) ([]models.TabRecord, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.rev != rev {
		return nil, false
	}
	out := make([]models.TabRecord, len(v.tabs))
	copy(out, v.tabs)
	return out, true
}

// Tabs returns the current projection.
func (v *View) Tabs() []models.TabRecord {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.TabRecord, len(v.tabs))
	copy(out, v.tabs)
	return out
}

// Version counts recomputations, starting at 1 for the initial projection.
func (v *View) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Close stops following the store. The last projection stays readable.
func (v *View) Close() {
	v.store.Unsubscribe(v.subID)
}
