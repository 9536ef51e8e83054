package popup

import (
	"sync"
	"sync/atomic"

	"github.com/desertthunder/tabx/internal/models"
)

// ChangeKind describes what mutated the store.
type ChangeKind int

const (
	ChangeCreated ChangeKind = iota // a record was added
	ChangePatched                   // an existing record had fields patched
	ChangeDefault                   // the default flag was re-derived for all records
	ChangeCounted                   // a reply was counted without changing any record
	ChangeLocal                     // a popup-local field was toggled
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangePatched:
		return "patched"
	case ChangeDefault:
		return "default"
	case ChangeCounted:
		return "counted"
	case ChangeLocal:
		return "local"
	default:
		return ""
	}
}

// Change is delivered to every [Listener] after a mutation is complete.
type Change struct {
	Kind  ChangeKind
	TabID string // empty for [ChangeDefault] when no record matched
}

// Listener receives change notifications. It runs outside the store lock and may read the store,
// but must not mutate it.
type Listener func(Change)

// Store maps tab ids to their [models.TabRecord]. Records are never removed during a session.
type Store struct {
	mu         sync.RWMutex
	records    map[string]*models.TabRecord
	order      []string
	hasDefault bool
	rev        uint64 // bumped on every record mutation

	listenerMu sync.RWMutex
	listeners  map[int64]Listener
	nextID     atomic.Int64
	notifyMu   sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records:   make(map[string]*models.TabRecord),
		listeners: make(map[int64]Listener),
	}
}

// Upsert creates the record for tabID or patches the fields present in patch.
//
// desc supplies creation metadata and is ignored when the record already exists.
// A nil patch on an existing record changes nothing and emits no notification.
func (s *Store) Upsert(tabID string, patch *models.StatePatch, desc *models.TabDescriptor) (models.TabRecord, bool) {
	s.mu.Lock()
	rec, created, changed := s.upsertLocked(tabID, patch, desc)
	out := rec.Clone()
	s.mu.Unlock()

	if created {
		s.publish(Change{Kind: ChangeCreated, TabID: tabID})
	} else if changed {
		s.publish(Change{Kind: ChangePatched, TabID: tabID})
	}
	return out, created
}

// upsertLocked requires s.mu held for writing.
func (s *Store) upsertLocked(tabID string, patch *models.StatePatch, desc *models.TabDescriptor) (rec *models.TabRecord, created, changed bool) {
	if existing, ok := s.records[tabID]; ok {
		if patch == nil || patch.Empty() {
			return existing, false, false
		}
		patch.ApplyTo(existing)
		s.rev++
		return existing, false, true
	}

	rec = models.NewTabRecord(tabID, desc, patch)
	if rec.DefaultTab {
		s.clearDefaultsLocked()
		rec.DefaultTab = true
		s.hasDefault = true
	}
	s.records[tabID] = rec
	s.order = append(s.order, tabID)
	s.rev++
	return rec, true, true
}

// Find returns a copy of the record for tabID.
func (s *Store) Find(tabID string) (models.TabRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[tabID]
	if !ok {
		return models.TabRecord{}, false
	}
	return rec.Clone(), true
}

// All returns copies of every record in first-seen order.
//
// Reactive consumers pair it with [Store.Subscribe] to stay current.
func (s *Store) All() []models.TabRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allLocked()
}

func (s *Store) allLocked() []models.TabRecord {
	out := make([]models.TabRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// HasDefault reports the store-wide "a default tab exists" flag.
func (s *Store) HasDefault() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasDefault
}

// SetHasDefault overrides the store-wide flag, used when seeding from the enumeration reply.
func (s *Store) SetHasDefault(v bool) {
	s.mu.Lock()
	s.hasDefault = v
	s.mu.Unlock()
	s.publish(Change{Kind: ChangeDefault})
}

// ToggleShowSettings flips the popup-local settings flag on a record.
func (s *Store) ToggleShowSettings(tabID string) bool {
	s.mu.Lock()
	rec, ok := s.records[tabID]
	if ok {
		rec.ShowSettings = !rec.ShowSettings
		s.rev++
	}
	s.mu.Unlock()

	if ok {
		s.publish(Change{Kind: ChangeLocal, TabID: tabID})
	}
	return ok
}

// setStreamkeysEnabled sets the local enablement flag and returns the new value.
func (s *Store) setStreamkeysEnabled(tabID string, toggle func(bool) bool) (bool, bool) {
	s.mu.Lock()
	rec, ok := s.records[tabID]
	var v bool
	if ok {
		rec.StreamkeysEnabled = toggle(rec.StreamkeysEnabled)
		v = rec.StreamkeysEnabled
		s.rev++
	}
	s.mu.Unlock()

	if ok {
		s.publish(Change{Kind: ChangeLocal, TabID: tabID})
	}
	return v, ok
}

func (s *Store) clearDefaultsLocked() {
	for _, rec := range s.records {
		rec.DefaultTab = false
	}
	s.rev++
}

// Subscribe registers fn for every subsequent change and returns its id.
func (s *Store) Subscribe(fn Listener) int64 {
	id := s.nextID.Add(1)
	s.listenerMu.Lock()
	s.listeners[id] = fn
	s.listenerMu.Unlock()
	return id
}

// Unsubscribe removes a listener. Unknown ids are ignored.
func (s *Store) Unsubscribe(id int64) {
	s.listenerMu.Lock()
	delete(s.listeners, id)
	s.listenerMu.Unlock()
}

// UnsubscribeAll removes every listener.
func (s *Store) UnsubscribeAll() {
	s.listenerMu.Lock()
	s.listeners = make(map[int64]Listener)
	s.listenerMu.Unlock()
}

// Listeners returns the number of registered listeners.
func (s *Store) Listeners() int {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	return len(s.listeners)
}

// publish delivers c to every listener, one notification at a time.
func (s *Store) publish(c Change) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.listenerMu.RLock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
