package popup

import (
	"fmt"
	"sync"

	"github.com/desertthunder/tabx/internal/shared"
)

// Phase of an [Aggregation].
type Phase int

const (
	Pending  Phase = iota // enumeration not yet received
	Counting              // waiting for per-tab replies
	Complete              // every expected reply has been counted
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Counting:
		return "counting"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

// Status is a point-in-time view of an [Aggregation].
type Status struct {
	Phase    Phase `json:"phase"`
	Expected int   `json:"expected"`
	Reported int   `json:"reported"`
}

// IsComplete reports whether every expected reply has arrived.
func (s Status) IsComplete() bool { return s.Phase == Complete }

// MarshalText lets the phase render by name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses a phase name produced by MarshalText.
func (p *Phase) UnmarshalText(b []byte) error {
	for _, candidate := range []Phase{Pending, Counting, Complete} {
		if candidate.String() == string(b) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("%w: phase %q", shared.ErrInvalidInput, b)
}

// Aggregation counts per-tab replies against the enumerated total.
//
// The expected total is set once. Counting never regresses; replies past the total are
// tolerated and flagged by [Aggregation.Report].
type Aggregation struct {
	mu       sync.Mutex
	started  bool
	expected int
	reported int
}

// Begin sets the expected total. A total of zero completes immediately.
func (a *Aggregation) Begin(total int) error {
	if total < 0 {
		return fmt.Errorf("%w: negative tab total %d", shared.ErrInvalidInput, total)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return fmt.Errorf("%w: expected total already %d", shared.ErrSessionStarted, a.expected)
	}
	a.started = true
	a.expected = total
	return nil
}

// Report counts one reply and returns whether it overshot the expected total.
func (a *Aggregation) Report() (over bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reported++
	return a.started && a.reported > a.expected
}

// Status returns the current counters and phase.
func (a *Aggregation) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := Status{Expected: a.expected, Reported: a.reported}
	switch {
	case !a.started:
		st.Phase = Pending
	case a.reported >= a.expected:
		st.Phase = Complete
	default:
		st.Phase = Counting
	}
	return st
}

// IsComplete reports whether the session has reached its expected total.
func (a *Aggregation) IsComplete() bool {
	return a.Status().IsComplete()
}
