// package services defines the interfaces for talking to the music tab control plane and per-tab peers
//
// Hub implements both over a websocket connection.
package services

import (
	"context"

	"github.com/desertthunder/tabx/internal/models"
)

// ControlPlane owns tab discovery, default-tab bookkeeping and command dispatch.
type ControlPlane interface {
	// ListMusicTabs enumerates the currently relevant music tabs.
	ListMusicTabs(ctx context.Context) ([]models.TabDescriptor, error)

	// SetDefaultTab asks the control plane to make tabID the default. Fire-and-forget.
	SetDefaultTab(ctx context.Context, tabID string) error

	// UnsetDefaultTab clears the default tab. Fire-and-forget.
	UnsetDefaultTab(ctx context.Context) error

	// SendCommand dispatches a transport command to tabID. Fire-and-forget.
	SendCommand(ctx context.Context, tabID string, cmd models.Command) error

	// MarkTabEnabled records the local per-tab enablement flag. Fire-and-forget.
	MarkTabEnabled(ctx context.Context, tabID string, enabled bool) error

	// OpenTab brings tabID to the foreground. Fire-and-forget.
	OpenTab(ctx context.Context, tabID string) error

	// Notifications delivers unsolicited pushes until the connection closes.
	Notifications() <-chan models.Notification
}

// Peer answers player state queries for a single tab.
type Peer interface {
	// GetPlayerState returns the tab's current partial state, or nil when it reported nothing.
	GetPlayerState(ctx context.Context, tabID string) (*models.StatePatch, error)
}

// Transport is a connectable [ControlPlane] and [Peer].
type Transport interface {
	ControlPlane
	Peer
	Connect(ctx context.Context) error
	Close() error
}
