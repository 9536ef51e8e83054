package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/desertthunder/tabx/internal/formatter"
	"github.com/desertthunder/tabx/internal/popup"
	"github.com/desertthunder/tabx/internal/server"
	"github.com/desertthunder/tabx/internal/shared"
	"github.com/desertthunder/tabx/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve opens a long-lived popup session and exposes it over HTTP until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	sess, journal, cleanup, err := r.session(ctx, cmd.Bool("journal"))
	if err != nil {
		return err
	}
	defer cleanup()

	var lister server.AnomalyLister
	if journal != nil {
		lister = journal
	}

	if err := sess.Open(ctx); err != nil {
		return err
	}

	router := server.NewBasicRouter(server.DefaultMiddleware(r.logger)...)
	router.Handler(server.NewStatusHandler(sess, lister, r.logger))
	router.Handler(web.NewDashboard(sess, r.logger))

	addr := r.config.Server.Addr()
	if port := cmd.Int("port"); port > 0 {
		addr = net.JoinHostPort(r.config.Server.Host, strconv.Itoa(port))
	}

	ready := make(chan string, 1)
	go func() {
		select {
		case bound := <-ready:
			url := "http://" + bound
			r.writePlain("Serving %d routes on %s\n", len(router.Patterns()), url)
			if cmd.Bool("open") {
				if err := shared.OpenBrowser(url); err != nil {
					r.logger.Warn("failed to open browser", "error", err)
				}
			}
		case <-ctx.Done():
		}
	}()

	return server.Serve(ctx, addr, router, r.logger, ready)
}

// Status prints the view reported by a running server.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	remote, err := r.statusClient(cmd).Snapshot(ctx)
	if err != nil {
		return err
	}

	var phase popup.Phase
	if err := phase.UnmarshalText([]byte(remote.Status.Phase)); err != nil {
		return fmt.Errorf("%w: server reported %v", shared.ErrMalformedMessage, err)
	}

	snap := popup.Snapshot{
		SessionID:  remote.SessionID,
		HasDefault: remote.HasDefault,
		Tabs:       remote.Tabs,
		Status:     popup.Status{Phase: phase, Expected: remote.Status.Expected, Reported: remote.Status.Reported},
	}

	data, err := formatter.Format(snap, cmd.String("format"))
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}
