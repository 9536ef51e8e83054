package popup

import (
	"context"
	"fmt"

	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/shared"
)

// SetDefaultTab asks the control plane to make tabID the default (set) or to clear it.
//
// The local flag is not touched; the control plane answers with a default_tab_changed broadcast.
func (s *Session) SetDefaultTab(ctx context.Context, tabID string, set bool) error {
	if err := s.ready(tabID); err != nil {
		return err
	}

	if set {
		s.logger.Info("setting default tab", "tab", tabID)
		return s.cp.SetDefaultTab(ctx, tabID)
	}
	s.logger.Info("unsetting default tab", "tab", tabID)
	return s.cp.UnsetDefaultTab(ctx)
}

// SendAction forwards a player command to tabID.
func (s *Session) SendAction(ctx context.Context, tabID string, cmd models.Command) error {
	if _, err := models.ParseCommand(string(cmd)); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidCommand, err)
	}
	if err := s.ready(tabID); err != nil {
		return err
	}

	s.logger.Debug("sending command", "tab", tabID, "command", cmd)
	return s.cp.SendCommand(ctx, tabID, cmd)
}

// ToggleStreamkeysEnabled flips the local enablement flag and tells the control plane.
//
// It returns the new value. The local flip stands even when the control plane call fails.
func (s *Session) ToggleStreamkeysEnabled(ctx context.Context, tabID string) (bool, error) {
	if s.cp == nil {
		return false, fmt.Errorf("%w: control plane not initialized", shared.ErrServiceUnavailable)
	}

	enabled, ok := s.store.setStreamkeysEnabled(tabID, func(v bool) bool { return !v })
	if !ok {
		return false, fmt.Errorf("%w: %s", shared.ErrTabNotFound, tabID)
	}

	s.logger.Info("toggling tab", "tab", tabID, "enabled", enabled)
	if err := s.cp.MarkTabEnabled(ctx, tabID, enabled); err != nil {
		return enabled, err
	}
	return enabled, nil
}

// ToggleSettings flips the popup-local settings panel flag for tabID.
func (s *Session) ToggleSettings(tabID string) error {
	if !s.store.ToggleShowSettings(tabID) {
		return fmt.Errorf("%w: %s", shared.ErrTabNotFound, tabID)
	}
	return nil
}

// OpenTab asks the control plane to focus tabID in the browser.
func (s *Session) OpenTab(ctx context.Context, tabID string) error {
	if err := s.ready(tabID); err != nil {
		return err
	}
	return s.cp.OpenTab(ctx, tabID)
}

func (s *Session) ready(tabID string) error {
	if s.cp == nil {
		return fmt.Errorf("%w: control plane not initialized", shared.ErrServiceUnavailable)
	}
	if tabID == "" {
		return fmt.Errorf("%w: tab id", shared.ErrMissingArgument)
	}
	if _, ok := s.store.Find(tabID); !ok {
		return fmt.Errorf("%w: %s", shared.ErrTabNotFound, tabID)
	}
	return nil
}
