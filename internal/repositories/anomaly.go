package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/shared"
)

// AnomalyRepository stores anomalies reported by popup sessions.
type AnomalyRepository struct {
	db *sql.DB
}

// SessionSummary counts the anomalies journaled for one session.
type SessionSummary struct {
	SessionID string    `json:"sessionId"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

// NewAnomalyRepository creates a new AnomalyRepository with the given database connection
func NewAnomalyRepository(db *sql.DB) *AnomalyRepository {
	return &AnomalyRepository{db: db}
}

// Create inserts a, assigning an id and timestamp when they are missing.
func (r *AnomalyRepository) Create(a *models.Anomaly) error {
	if a.ID == "" {
		a.ID = shared.GenerateID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := nextSequence(tx, "anomalies")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO anomalies (id, sequence, session_id, kind, tab_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query, a.ID, sequence, a.SessionID, string(a.Kind), a.TabID, a.Detail, a.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert anomaly: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit anomaly: %w", err)
	}
	return nil
}

// Get retrieves an anomaly by ID.
func (r *AnomalyRepository) Get(id string) (*models.Anomaly, error) {
	query := `
		SELECT id, session_id, kind, tab_id, detail, created_at
		FROM anomalies
		WHERE id = ?
	`

	a, err := scanAnomaly(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrAnomalyNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// List returns anomalies matching criteria, oldest first.
//
// A positive limit keeps the most recent entries.
func (r *AnomalyRepository) List(ctx context.Context, criteria models.AnomalyCriteria) ([]models.Anomaly, error) {
	query := `
		SELECT id, session_id, kind, tab_id, detail, created_at
		FROM anomalies
		WHERE 1 = 1
	`
	args := []any{}

	if criteria.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, criteria.SessionID)
	}
	if criteria.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(criteria.Kind))
	}

	query += " ORDER BY sequence DESC"
	if criteria.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, criteria.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer rows.Close()

	list := []models.Anomaly{}
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating anomalies: %w", err)
	}

	slices.Reverse(list)
	return list, nil
}

// Sessions summarizes the journal per session, most recent first.
func (r *AnomalyRepository) Sessions(ctx context.Context) ([]SessionSummary, error) {
	query := `
		SELECT session_id, COUNT(*), MIN(sequence), MAX(sequence)
		FROM anomalies
		GROUP BY session_id
		ORDER BY MAX(sequence) DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	type bounds struct{ first, last int64 }
	var summaries []SessionSummary
	var seqs []bounds
	for rows.Next() {
		var s SessionSummary
		var b bounds
		if err := rows.Scan(&s.SessionID, &s.Count, &b.first, &b.last); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		summaries = append(summaries, s)
		seqs = append(seqs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	rows.Close()

	for i := range summaries {
		if summaries[i].FirstSeen, err = r.createdAt(ctx, seqs[i].first); err != nil {
			return nil, err
		}
		if summaries[i].LastSeen, err = r.createdAt(ctx, seqs[i].last); err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

func (r *AnomalyRepository) createdAt(ctx context.Context, sequence int64) (time.Time, error) {
	var t time.Time
	if err := r.db.QueryRowContext(ctx, "SELECT created_at FROM anomalies WHERE sequence = ?", sequence).Scan(&t); err != nil {
		return time.Time{}, fmt.Errorf("failed to read timestamp: %w", err)
	}
	return t, nil
}

// DeleteBefore removes anomalies created before cutoff and reports how many went.
func (r *AnomalyRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM anomalies WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete anomalies: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnomaly(s scanner) (*models.Anomaly, error) {
	var a models.Anomaly
	var kind string
	if err := s.Scan(&a.ID, &a.SessionID, &kind, &a.TabID, &a.Detail, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan anomaly: %w", err)
	}
	a.Kind = models.AnomalyKind(kind)
	return &a, nil
}
