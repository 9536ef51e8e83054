package models

import (
	"fmt"
	"time"
)

// Notification actions pushed by the control plane.
const (
	ActionUpdatePopupState  = "update_popup_state"
	ActionDefaultTabChanged = "default_tab_changed"

	// ActionMalformedFrame is raised by the transport for a frame it could not decode; Detail says why.
	ActionMalformedFrame = "malformed_frame"
)

// Notification is an unsolicited message from the control plane.
//
// For [ActionUpdatePopupState] StateData and FromTab are set.
// For [ActionDefaultTabChanged] TabID names the new default, or is nil when it was unset.
type Notification struct {
	Action    string         `json:"action"`
	StateData *StatePatch    `json:"stateData,omitempty"`
	FromTab   *TabDescriptor `json:"fromTab,omitempty"`
	TabID     *string        `json:"tabId"`
	Detail    string         `json:"detail,omitempty"`
}

// Command is a named transport command targeted at one tab.
type Command string

const (
	CommandPlayPause Command = "playPause"
	CommandPlayNext  Command = "playNext"
	CommandPlayPrev  Command = "playPrev"
	CommandMute      Command = "mute"
	CommandLike      Command = "like"
	CommandDislike   Command = "dislike"
)

// Commands lists every accepted [Command].
var Commands = []Command{CommandPlayPause, CommandPlayNext, CommandPlayPrev, CommandMute, CommandLike, CommandDislike}

// ParseCommand validates a command name.
func ParseCommand(s string) (Command, error) {
	for _, c := range Commands {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown command %q", s)
}

// AnomalyKind classifies a tolerated irregularity.
type AnomalyKind string

const (
	// AnomalyMissingPayload is a per-tab reply that carried no usable state.
	AnomalyMissingPayload AnomalyKind = "missing_payload"
	// AnomalyUnknownTab is an update or invalidation naming a tab the store does not hold.
	AnomalyUnknownTab AnomalyKind = "unknown_tab"
	// AnomalyOverCompletion is a reply received after the expected total was reached.
	AnomalyOverCompletion AnomalyKind = "over_completion"
	// AnomalyMalformedMessage is a message that could not be decoded or routed.
	AnomalyMalformedMessage AnomalyKind = "malformed_message"
)

// Anomaly records one irregularity observed during an aggregation session.
type Anomaly struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId"`
	Kind      AnomalyKind `json:"kind"`
	TabID     string      `json:"tabId,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Validate checks required fields.
func (a Anomaly) Validate() error {
	if a.SessionID == "" {
		return fmt.Errorf("anomaly session id is required")
	}
	switch a.Kind {
	case AnomalyMissingPayload, AnomalyUnknownTab, AnomalyOverCompletion, AnomalyMalformedMessage:
	default:
		return fmt.Errorf("unknown anomaly kind %q", a.Kind)
	}
	return nil
}

// AnomalyCriteria filters anomaly listings. Zero values match everything.
type AnomalyCriteria struct {
	SessionID string
	Kind      AnomalyKind
	Limit     int
}
