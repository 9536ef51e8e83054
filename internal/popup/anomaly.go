package popup

import (
	"sync"
	"time"

	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/shared"
)

// AnomalyRecorder persists anomalies for later inspection.
//
// Recording is best effort: errors are logged and never affect aggregation.
type AnomalyRecorder interface {
	RecordAnomaly(a models.Anomaly) error
}

// AnomalyLog is an in-memory [AnomalyRecorder], useful as a default and in tests.
type AnomalyLog struct {
	mu      sync.Mutex
	entries []models.Anomaly
}

// RecordAnomaly appends a.
func (l *AnomalyLog) RecordAnomaly(a models.Anomaly) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, a)
	return nil
}

// Entries returns recorded anomalies in arrival order.
func (l *AnomalyLog) Entries() []models.Anomaly {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Anomaly, len(l.entries))
	copy(out, l.entries)
	return out
}

// Count returns how many anomalies of kind were recorded.
func (l *AnomalyLog) Count(kind models.AnomalyKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, a := range l.entries {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// anomaly logs and records one irregularity.
func (s *Session) anomaly(kind models.AnomalyKind, tabID, detail string) {
	s.logger.Warn("anomaly", "kind", kind, "tab", tabID, "detail", detail)

	a := models.Anomaly{
		ID:        shared.GenerateID(),
		SessionID: s.id,
		Kind:      kind,
		TabID:     tabID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	for _, r := range s.recorders {
		if err := r.RecordAnomaly(a); err != nil {
			s.logger.Debug("failed to record anomaly", "kind", kind, "error", err)
		}
	}
}
