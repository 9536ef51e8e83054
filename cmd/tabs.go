package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tabx/internal/formatter"
	"github.com/desertthunder/tabx/internal/shared"
	"github.com/desertthunder/tabx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TabsList collects every tab's state once and prints the derived view.
func (r *Runner) TabsList(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if cmd.Bool("json") {
		format = formatter.FormatJSON
	}

	_, res, cleanup, err := r.collect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(res.Snapshot, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("tabs exported", "path", written, "tabs", len(res.Snapshot.Tabs))
		return nil
	}

	data, err := formatter.Format(res.Snapshot, format)
	if err != nil {
		return err
	}
	if err := r.writeBytes(data); err != nil {
		return err
	}

	if cmd.Bool("anomalies") && len(res.Anomalies) > 0 {
		if err := r.writePlain("\nAnomalies:\n"); err != nil {
			return err
		}
		return r.writeBytes(formatter.AnomaliesToText(res.Anomalies))
	}
	return nil
}

// TabsWatch runs the interactive tab list until the user quits.
func (r *Runner) TabsWatch(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Popup.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	lvl, _ := shared.ParseLogLevel(r.config.Popup.LogLevel)
	shared.SetLogLevel(fileLogger, lvl)
	r.SetLogger(fileLogger)

	sess, _, cleanup, err := r.session(ctx, cmd.Bool("journal"))
	if err != nil {
		return err
	}
	defer cleanup()

	model := ui.NewModel(ctx, sess)
	defer model.Close()

	if err := sess.Open(ctx); err != nil {
		return err
	}

	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
