package tasks

import (
	"fmt"

	"github.com/desertthunder/tabx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	Enumerate Phase = iota
	QueryTabs
	Dispatch
)

func (p Phase) String() string {
	switch p {
	case Enumerate:
		return "enumerate"
	case QueryTabs:
		return "query_tabs"
	case Dispatch:
		return "dispatch"
	default:
		return ""
	}
}

func enumerateUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: Enumerate, Step: 0, Total: 1, Message: "Enumerating music tabs..."}
}

func enumeratedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Enumerate,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d music tabs", total),
	}
}

func replyUpdate(step, total int, rec *models.TabRecord) ProgressUpdate {
	if rec == nil {
		return ProgressUpdate{
			Phase:   QueryTabs,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] reply received", step, total),
		}
	}

	label := rec.SongArtistText()
	if label == "" {
		label = "(nothing playing)"
	}
	return ProgressUpdate{
		Phase:   QueryTabs,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, rec.SiteName, label),
		Data:    *rec,
	}
}

func dispatchedUpdate(step, total int, tabID string, cmd models.Command) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Dispatch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s → tab %s", step, total, cmd, tabID),
	}
}

func dispatchFailedUpdate(step, total int, tabID string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Dispatch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ tab %s: %v", step, total, tabID, err),
	}
}
