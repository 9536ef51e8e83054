package popup

import (
	"fmt"

	"github.com/desertthunder/tabx/internal/shared"
)

// PendingPolicy decides what happens when a default-tab broadcast names a tab the store does not hold yet.
type PendingPolicy string

const (
	// PolicyRetroactive remembers the broadcast and marks the tab default when its record is created.
	PolicyRetroactive PendingPolicy = shared.PendingDefaultRetroactive
	// PolicyDrop discards an unmatched broadcast; the tab is created with only its enumeration hint.
	PolicyDrop PendingPolicy = shared.PendingDefaultDrop
)

// ParsePendingPolicy validates a config value.
func ParsePendingPolicy(s string) (PendingPolicy, error) {
	switch PendingPolicy(s) {
	case PolicyRetroactive, PolicyDrop:
		return PendingPolicy(s), nil
	case "":
		return PolicyRetroactive, nil
	default:
		return "", fmt.Errorf("%w: pending default policy %q", shared.ErrInvalidConfig, s)
	}
}

// Invalidator is the sole authority for the default flag once records exist.
//
// Its fields are guarded by the store lock.
type Invalidator struct {
	store    *Store
	policy   PendingPolicy
	observed bool    // at least one broadcast has been applied
	latest   *string // tab id named by the most recent broadcast
}

// NewInvalidator binds an invalidator to store.
func NewInvalidator(store *Store, policy PendingPolicy) *Invalidator {
	if policy == "" {
		policy = PolicyRetroactive
	}
	return &Invalidator{store: store, policy: policy}
}

// ApplyDefault clears the default flag on every record, then sets it on tabID when that record exists.
//
// The store-wide "has default" flag follows tabID != nil even when no record matched.
// It returns whether a record was marked.
func (inv *Invalidator) ApplyDefault(tabID *string) bool {
	s := inv.store
	s.mu.Lock()
	s.clearDefaultsLocked()
	matched := false
	if tabID != nil {
		if rec, ok := s.records[*tabID]; ok {
			rec.DefaultTab = true
			matched = true
		}
		id := *tabID
		inv.latest = &id
	} else {
		inv.latest = nil
	}
	inv.observed = true
	s.hasDefault = tabID != nil
	s.mu.Unlock()

	c := Change{Kind: ChangeDefault}
	if matched {
		c.TabID = *tabID
	}
	s.publish(c)
	return matched
}

// Pending returns the tab id waiting to be marked default on creation, if any.
func (inv *Invalidator) Pending() (string, bool) {
	s := inv.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if inv.policy != PolicyRetroactive || inv.latest == nil {
		return "", false
	}
	if _, exists := s.records[*inv.latest]; exists {
		return "", false
	}
	return *inv.latest, true
}

// creationDefault decides the default flag for a record about to be created.
//
// A drop policy always keeps the enumeration hint, as broadcasts are never replayed. Under the
// retroactive policy the hint stands until the first broadcast; afterwards the latest broadcast decides.
// Requires the store lock.
func (inv *Invalidator) creationDefault(tabID string, hint bool) bool {
	if inv.policy == PolicyDrop || !inv.observed {
		return hint
	}
	if inv.latest != nil {
		return *inv.latest == tabID
	}
	return false
}
