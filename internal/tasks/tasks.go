// package tasks implements popup operations that span many tabs.
//
// The core abstraction is Engine, which collects tab state and fans commands out to tabs.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/popup"
	"github.com/desertthunder/tabx/internal/shared"
)

// pollInterval re-reads the session status in case watch notifications were dropped.
const pollInterval = 50 * time.Millisecond

// CollectResult contains the state gathered by [Engine.Collect].
type CollectResult struct {
	Snapshot  popup.Snapshot   // Records and counters read together
	Anomalies []models.Anomaly // Irregularities observed while collecting
	Complete  bool             // Every enumerated tab replied
	Elapsed   time.Duration    // Time from enumeration to return
}

// Engine defines multi-tab popup operations.
type Engine interface {
	// Collect opens the session and waits for every tab to reply or ctx to end.
	Collect(ctx context.Context, progress chan<- ProgressUpdate) (*CollectResult, error)

	// Dispatch sends cmd to each of tabIDs through a worker pool.
	Dispatch(ctx context.Context, progress chan<- ProgressUpdate, tabIDs []string, cmd models.Command, opts DispatchOpts) (*DispatchResult, error)
}

// PopupEngine implements [Engine] on top of a [popup.Session].
type PopupEngine struct {
	session *popup.Session
	logger  *log.Logger
}

// NewPopupEngine creates a new PopupEngine for session.
func NewPopupEngine(session *popup.Session, logger *log.Logger) *PopupEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PopupEngine{session: session, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PopupEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Collect opens the session and blocks until the aggregation completes.
//
// When ctx ends first the partial result is returned together with [shared.ErrTimeout].
func (e *PopupEngine) Collect(ctx context.Context, progress chan<- ProgressUpdate) (*CollectResult, error) {
	if e.session == nil {
		return nil, fmt.Errorf("%w: popup session not initialized", shared.ErrServiceUnavailable)
	}

	start := time.Now()
	changes, stop := e.session.Watch(64)
	defer stop()

	e.sendProgress(progress, enumerateUpdate())
	if err := e.session.Open(ctx); err != nil {
		return nil, err
	}

	st := e.session.Status()
	e.sendProgress(progress, enumeratedUpdate(st.Expected))
	e.logger.Debug("collecting tab state", "expected", st.Expected)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	reported := 0
	for {
		st = e.session.Status()
		for ; reported < st.Reported && reported < st.Expected; reported++ {
			e.sendProgress(progress, replyUpdate(reported+1, st.Expected, nil))
		}
		if st.IsComplete() {
			return e.result(start, true), nil
		}

		select {
		case <-ctx.Done():
			res := e.result(start, false)
			return res, fmt.Errorf("%w: %d of %d tabs reported", shared.ErrTimeout, st.Reported, st.Expected)
		case c, ok := <-changes:
			if !ok {
				return e.result(start, false), shared.ErrSessionClosed
			}
			if c.TabID == "" {
				continue
			}
			if st = e.session.Status(); reported < st.Reported && reported < st.Expected {
				if rec, found := e.session.Store().Find(c.TabID); found {
					reported++
					e.sendProgress(progress, replyUpdate(reported, st.Expected, &rec))
				}
			}
		case <-ticker.C:
		}
	}
}

func (e *PopupEngine) result(start time.Time, complete bool) *CollectResult {
	return &CollectResult{
		Snapshot:  e.session.Snapshot(),
		Anomalies: e.session.Anomalies(),
		Complete:  complete,
		Elapsed:   time.Since(start),
	}
}
