package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/popup"
	"github.com/desertthunder/tabx/internal/shared"
	"github.com/desertthunder/tabx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// maxSiteDistance is the largest edit distance accepted when matching a tab by site name.
const maxSiteDistance = 3

// resolveTab maps a tab id or site name to a tab id.
//
// Exact ids win, then case-insensitive site names, then the closest site name within
// [maxSiteDistance] edits. Ties on a fuzzy match are ambiguous; duplicate site names
// resolve to the first tab in view order.
func resolveTab(tabs []models.TabRecord, arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("%w: tab", shared.ErrMissingArgument)
	}

	for _, t := range tabs {
		if t.TabID == arg {
			return t.TabID, nil
		}
	}

	needle := strings.ToLower(arg)
	best, bestDist, tied := "", maxSiteDistance+1, false
	for _, t := range tabs {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(t.SiteName))
		switch {
		case d < bestDist:
			best, bestDist, tied = t.TabID, d, false
		case d == bestDist:
			tied = true
		}
	}

	if best == "" {
		return "", fmt.Errorf("%w: no tab matches %q", shared.ErrTabNotFound, arg)
	}
	if tied && bestDist > 0 {
		return "", fmt.Errorf("%w: %q matches more than one tab", shared.ErrInvalidArgument, arg)
	}
	return best, nil
}

// withTab collects state, resolves the tab argument and runs fn against the session.
func (r *Runner) withTab(ctx context.Context, cmd *cli.Command, fn func(sess *popup.Session, tabID string) error) error {
	sess, res, cleanup, err := r.collect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	tabID, err := resolveTab(res.Snapshot.Tabs, cmd.StringArg("tab"))
	if err != nil {
		return err
	}
	return fn(sess, tabID)
}

// DefaultSet makes the named tab the default.
func (r *Runner) DefaultSet(ctx context.Context, cmd *cli.Command) error {
	return r.withTab(ctx, cmd, func(sess *popup.Session, tabID string) error {
		if err := sess.SetDefaultTab(ctx, tabID, true); err != nil {
			return err
		}
		return r.writePlain("✓ Tab %s is now the default\n", tabID)
	})
}

// DefaultUnset clears the default tab.
func (r *Runner) DefaultUnset(ctx context.Context, cmd *cli.Command) error {
	return r.withTab(ctx, cmd, func(sess *popup.Session, tabID string) error {
		if err := sess.SetDefaultTab(ctx, tabID, false); err != nil {
			return err
		}
		return r.writePlain("✓ Default tab cleared\n")
	})
}

// Toggle flips streamkeys enablement for a tab.
func (r *Runner) Toggle(ctx context.Context, cmd *cli.Command) error {
	return r.withTab(ctx, cmd, func(sess *popup.Session, tabID string) error {
		enabled, err := sess.ToggleStreamkeysEnabled(ctx, tabID)
		if err != nil {
			return err
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		return r.writePlain("✓ Streamkeys %s for tab %s\n", state, tabID)
	})
}

// Open brings a tab to the foreground.
func (r *Runner) Open(ctx context.Context, cmd *cli.Command) error {
	return r.withTab(ctx, cmd, func(sess *popup.Session, tabID string) error {
		if err := sess.OpenTab(ctx, tabID); err != nil {
			return err
		}
		return r.writePlain("✓ Opened tab %s\n", tabID)
	})
}

// Command sends a player command to one tab, or to every tab matching --target.
func (r *Runner) Command(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: command name", shared.ErrMissingArgument)
	}
	action, err := models.ParseCommand(name)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidCommand, err)
	}

	target := cmd.String("target")
	if target == "" {
		return r.withTab(ctx, cmd, func(sess *popup.Session, tabID string) error {
			if err := sess.SendAction(ctx, tabID, action); err != nil {
				return err
			}
			return r.writePlain("✓ Sent %s to tab %s\n", action, tabID)
		})
	}

	selector, err := tasks.ParseTarget(target)
	if err != nil {
		return err
	}

	sess, res, cleanup, err := r.collect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	tabIDs := tasks.SelectTargets(res.Snapshot.Tabs, selector)
	if len(tabIDs) == 0 {
		return r.writePlain("No tabs match target %q\n", selector)
	}

	engine := tasks.NewPopupEngine(sess, r.logger)
	result, err := engine.Dispatch(ctx, nil, tabIDs, action, tasks.DispatchOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	})
	if err != nil {
		return err
	}

	for _, tr := range result.Results {
		if tr.Success {
			r.writePlain("✓ %s → tab %s\n", action, tr.TabID)
		} else {
			r.writePlain("✗ %s → tab %s: %v\n", action, tr.TabID, tr.Error)
		}
	}
	return r.writePlain("%d/%d delivered\n", result.Succeeded, result.Total)
}
