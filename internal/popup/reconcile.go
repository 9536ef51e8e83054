package popup

import "github.com/desertthunder/tabx/internal/models"

// Outcome is the effect a [Report] had on the store.
type Outcome int

const (
	OutcomeIgnored Outcome = iota // nothing usable and nothing to create
	OutcomeCreated                // a new record was added
	OutcomePatched                // an existing record had fields patched
	OutcomeUnchanged              // the record exists and the report carried no fields
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeCreated:
		return "created"
	case OutcomePatched:
		return "patched"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return ""
	}
}

// Report is one state report correlated with the tab it came from.
//
// Tab carries enumeration or push metadata for creating the record; its DefaultTab field is the
// creation-time hint and is never applied to an existing record.
type Report struct {
	TabID string
	State *models.StatePatch
	Tab   *models.TabDescriptor
}

// Missing reports whether the report carries no usable state.
func (r Report) Missing() bool {
	return r.State == nil
}

// Reconcile merges r into s.
//
// Known tabs get only the present fields patched. Unknown tabs are created when metadata is
// available; a report for an unknown tab without metadata is ignored.
func Reconcile(s *Store, r Report) Outcome {
	s.mu.Lock()
	outcome := reconcileLocked(s, r)
	s.mu.Unlock()

	if c, ok := outcome.change(r.TabID); ok {
		s.publish(c)
	}
	return outcome
}

// reconcileLocked requires s.mu held for writing.
func reconcileLocked(s *Store, r Report) Outcome {
	if _, known := s.records[r.TabID]; !known && r.Tab == nil {
		return OutcomeIgnored
	}

	_, created, changed := s.upsertLocked(r.TabID, r.State, r.Tab)
	switch {
	case created:
		return OutcomeCreated
	case changed:
		return OutcomePatched
	default:
		return OutcomeUnchanged
	}
}

func (o Outcome) change(tabID string) (Change, bool) {
	switch o {
	case OutcomeCreated:
		return Change{Kind: ChangeCreated, TabID: tabID}, true
	case OutcomePatched:
		return Change{Kind: ChangePatched, TabID: tabID}, true
	default:
		return Change{}, false
	}
}
