package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/tabx/internal/models"
)

// Journal adapts an [AnomalyRepository] to the popup's recorder and the status server's lister.
//
// Re-recording an anomaly with a known id is a no-op.
type Journal struct {
	repo *AnomalyRepository
}

// NewJournal creates a new Journal backed by repo
func NewJournal(repo *AnomalyRepository) *Journal {
	return &Journal{repo: repo}
}

// RecordAnomaly persists a unless it is already journaled.
func (j *Journal) RecordAnomaly(a models.Anomaly) error {
	if a.ID != "" {
		if existing, err := j.repo.Get(a.ID); err == nil && existing != nil {
			return nil
		}
	}

	if err := j.repo.Create(&a); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to journal anomaly: %w", err)
	}
	return nil
}

// List implements the status server's anomaly lister.
func (j *Journal) List(ctx context.Context, criteria models.AnomalyCriteria) ([]models.Anomaly, error) {
	return j.repo.List(ctx, criteria)
}
