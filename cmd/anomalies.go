package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tabx/internal/formatter"
	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/repositories"
	"github.com/desertthunder/tabx/internal/shared"
	"github.com/urfave/cli/v3"
)

// anomalyRepo opens the configured journal database.
func (r *Runner) anomalyRepo() (*repositories.AnomalyRepository, func(), error) {
	db, err := shared.OpenJournal(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open anomaly journal: %w", err)
	}
	return repositories.NewAnomalyRepository(db), closeDB(db, r.logger), nil
}

// AnomaliesList prints journaled anomalies matching the filter flags.
func (r *Runner) AnomaliesList(ctx context.Context, cmd *cli.Command) error {
	criteria := models.AnomalyCriteria{
		SessionID: cmd.String("session"),
		Kind:      models.AnomalyKind(cmd.String("kind")),
		Limit:     cmd.Int("limit"),
	}
	if criteria.Kind != "" {
		if err := (models.Anomaly{SessionID: "-", Kind: criteria.Kind}).Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
	}

	var list []models.Anomaly
	if r.journal != nil {
		var err error
		if list, err = r.journal.List(ctx, criteria); err != nil {
			return err
		}
	} else {
		repo, closeFn, err := r.anomalyRepo()
		if err != nil {
			return err
		}
		defer closeFn()
		if list, err = repo.List(ctx, criteria); err != nil {
			return err
		}
	}

	switch cmd.String("format") {
	case formatter.FormatJSON:
		return r.writeJSON(list, true)
	case formatter.FormatCSV:
		data, err := formatter.AnomaliesToCSV(list)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	case formatter.FormatText, "":
		if len(list) == 0 {
			return r.writePlain("No anomalies recorded\n")
		}
		return r.writeBytes(formatter.AnomaliesToText(list))
	default:
		return fmt.Errorf("%w: format %q", shared.ErrInvalidArgument, cmd.String("format"))
	}
}

// AnomaliesSessions prints one line per journaled session.
func (r *Runner) AnomaliesSessions(ctx context.Context, cmd *cli.Command) error {
	repo, closeFn, err := r.anomalyRepo()
	if err != nil {
		return err
	}
	defer closeFn()

	sessions, err := repo.Sessions(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(sessions, true)
	}
	if len(sessions) == 0 {
		return r.writePlain("No anomalies recorded\n")
	}
	for _, s := range sessions {
		r.writePlain("%s  %4d  %s → %s\n", s.SessionID, s.Count,
			s.FirstSeen.Local().Format(time.DateTime), s.LastSeen.Local().Format(time.DateTime))
	}
	return nil
}

// AnomaliesPrune deletes anomalies older than --older-than.
func (r *Runner) AnomaliesPrune(ctx context.Context, cmd *cli.Command) error {
	age := cmd.Duration("older-than")
	if age <= 0 {
		return fmt.Errorf("%w: --older-than must be positive", shared.ErrInvalidArgument)
	}

	repo, closeFn, err := r.anomalyRepo()
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := repo.DeleteBefore(time.Now().Add(-age))
	if err != nil {
		return err
	}
	r.logger.Info("pruned anomaly journal", "deleted", n, "older_than", age)
	return r.writePlain("✓ Deleted %d anomalies\n", n)
}
