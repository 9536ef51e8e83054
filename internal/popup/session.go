package popup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/services"
	"github.com/desertthunder/tabx/internal/shared"
)

// Options configures a [Session].
type Options struct {
	ControlPlane services.ControlPlane
	Peer         services.Peer
	Logger       *log.Logger
	Recorder     AnomalyRecorder // optional, in addition to the in-memory log
	Policy       PendingPolicy
}

// Snapshot is a consistent read of the session: the record set and the counters are taken together.
type Snapshot struct {
	SessionID  string             `json:"sessionId"`
	Status     Status             `json:"status"`
	HasDefault bool               `json:"hasDefault"`
	Tabs       []models.TabRecord `json:"tabs"`
}

// Session aggregates the player state of every music tab for one popup lifetime.
//
// It owns the store, the aggregation counters, the default-tab invalidator and the derived view,
// and routes enumeration replies, per-tab replies and push notifications into them.
type Session struct {
	id        string
	store     *Store
	agg       *Aggregation
	inv       *Invalidator
	view      *View
	cp        services.ControlPlane
	peer      services.Peer
	logger    *log.Logger
	anomalies *AnomalyLog
	recorders []AnomalyRecorder

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	opened bool
	closed bool

	queries sync.WaitGroup
	settled chan struct{} // closed once every issued query has returned
	pushes  sync.WaitGroup
}

// NewSession creates an unopened session.
func NewSession(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	id := shared.GenerateID()
	store := NewStore()
	anomalies := &AnomalyLog{}
	recorders := []AnomalyRecorder{anomalies}
	if opts.Recorder != nil {
		recorders = append(recorders, opts.Recorder)
	}

	return &Session{
		id:        id,
		store:     store,
		agg:       &Aggregation{},
		inv:       NewInvalidator(store, opts.Policy),
		view:      NewView(store),
		cp:        opts.ControlPlane,
		peer:      opts.Peer,
		logger:    shared.WithLogger(opts.Logger, "session", id[:8]),
		anomalies: anomalies,
		recorders: recorders,
		ctx:       context.Background(),
	}
}

// ID returns the session identifier used in the anomaly journal.
func (s *Session) ID() string { return s.id }

// Store returns the underlying record store.
func (s *Session) Store() *Store { return s.store }

// View returns the derived view.
func (s *Session) View() *View { return s.view }

// Invalidator returns the default-tab invalidator.
func (s *Session) Invalidator() *Invalidator { return s.inv }

// Status returns the aggregation counters.
func (s *Session) Status() Status { return s.agg.Status() }

// Tabs returns the derived view.
func (s *Session) Tabs() []models.TabRecord { return s.view.Tabs() }

// HasDefault reports whether the control plane currently has a default tab.
func (s *Session) HasDefault() bool { return s.store.HasDefault() }

// Anomalies returns every anomaly observed by this session.
func (s *Session) Anomalies() []models.Anomaly { return s.anomalies.Entries() }

// Snapshot reads the derived view and counters under one lock.
//
// The view's projection is reused when it is current; otherwise the records are projected here.
func (s *Session) Snapshot() Snapshot {
	s.store.mu.RLock()
	status := s.agg.Status()
	hasDefault := s.store.hasDefault
	tabs, current := s.view.projectionLocked(s.store.rev)
	var records []models.TabRecord
	if !current {
		records = s.store.allLocked()
	}
	s.store.mu.RUnlock()

	if !current {
		tabs = Project(records)
	}
	return Snapshot{SessionID: s.id, Status: status, HasDefault: hasDefault, Tabs: tabs}
}

// Subscribe registers fn for every store change. See [Store.Subscribe].
func (s *Session) Subscribe(fn Listener) int64 { return s.store.Subscribe(fn) }

// Unsubscribe removes a listener registered with [Session.Subscribe].
func (s *Session) Unsubscribe(id int64) { s.store.Unsubscribe(id) }

// Watch returns a channel of changes buffered to size. Changes are dropped when the buffer is full,
// so consumers should re-read [Session.Snapshot] rather than rely on every change arriving.
func (s *Session) Watch(size int) (<-chan Change, func()) {
	ch := make(chan Change, size)
	var once sync.Once
	var mu sync.Mutex
	done := false

	id := s.store.Subscribe(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}
		select {
		case ch <- c:
		default:
		}
	})

	stop := func() {
		once.Do(func() {
			s.store.Unsubscribe(id)
			mu.Lock()
			done = true
			close(ch)
			mu.Unlock()
		})
	}
	return ch, stop
}

// Open enumerates the music tabs and queries each one concurrently.
//
// It returns once the queries are issued; replies are reconciled as they arrive.
// ctx bounds the enumeration call and the lifetime of in-flight queries.
func (s *Session) Open(ctx context.Context) error {
	if s.cp == nil {
		return fmt.Errorf("%w: control plane not initialized", shared.ErrServiceUnavailable)
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return shared.ErrSessionClosed
	case s.opened:
		s.mu.Unlock()
		return shared.ErrSessionStarted
	}
	s.opened = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	sctx := s.ctx
	s.mu.Unlock()

	if ch := s.cp.Notifications(); ch != nil {
		s.pushes.Add(1)
		go s.listen(sctx, ch)
	}

	s.logger.Debug("enumerating music tabs")
	tabs, err := s.cp.ListMusicTabs(sctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrEnumerationFailed, err)
	}

	return s.Enumerated(tabs)
}

// Enumerated seeds the session from an enumeration reply and issues one player state query per tab.
func (s *Session) Enumerated(tabs []models.TabDescriptor) error {
	if err := s.agg.Begin(len(tabs)); err != nil {
		return err
	}
	s.logger.Info("music tabs enumerated", "count", len(tabs))

	hasDefault := false
	for _, t := range tabs {
		if t.DefaultTab {
			hasDefault = true
			break
		}
	}

	s.store.mu.Lock()
	if !s.inv.observed {
		s.store.hasDefault = hasDefault
	}
	s.store.mu.Unlock()
	s.store.publish(Change{Kind: ChangeCounted})

	settled := make(chan struct{})
	s.mu.Lock()
	s.settled = settled
	s.mu.Unlock()

	for _, t := range tabs {
		s.queries.Add(1)
		go s.query(t)
	}
	go func() {
		s.queries.Wait()
		close(settled)
	}()
	return nil
}

// query asks the peer for tab's state and reconciles the reply. Errors count as empty replies
// unless the session context ended, in which case the query is abandoned uncounted.
func (s *Session) query(tab models.TabDescriptor) {
	defer s.queries.Done()

	if s.peer == nil {
		s.HandleReply(tab, nil)
		return
	}

	ctx := s.context()
	state, err := s.peer.GetPlayerState(ctx, tab.TabID)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("player state query abandoned", "tab", tab.TabID)
			return
		}
		s.logger.Debug("player state query failed", "tab", tab.TabID, "error", err)
		if errors.Is(err, shared.ErrMalformedMessage) {
			s.reply(tab, nil, models.AnomalyMalformedMessage, err.Error())
			return
		}
		state = nil
	}
	s.HandleReply(tab, state)
}

// HandleReply reconciles one per-tab reply and counts it toward completion in the same step.
//
// tab is the enumeration descriptor the query was issued for; state may be nil.
func (s *Session) HandleReply(tab models.TabDescriptor, state *models.StatePatch) {
	s.reply(tab, state, models.AnomalyMissingPayload, "per-tab reply carried no state")
}

// reply records emptyKind when state is nil.
func (s *Session) reply(tab models.TabDescriptor, state *models.StatePatch, emptyKind models.AnomalyKind, detail string) {
	if s.isClosed() {
		return
	}

	st := s.store
	st.mu.Lock()
	desc := tab
	desc.DefaultTab = s.inv.creationDefault(desc.TabID, desc.DefaultTab)
	outcome := reconcileLocked(st, Report{TabID: desc.TabID, State: state, Tab: &desc})
	over := s.agg.Report()
	status := s.agg.Status()
	st.mu.Unlock()

	s.logger.Debug("player state reply", "tab", tab.TabID, "outcome", outcome, "reported", status.Reported, "expected", status.Expected)

	if state == nil {
		s.anomaly(emptyKind, tab.TabID, detail)
	}
	if over {
		s.anomaly(models.AnomalyOverCompletion, tab.TabID,
			fmt.Sprintf("reply %d exceeds expected total %d", status.Reported, status.Expected))
	}

	c, ok := outcome.change(tab.TabID)
	if !ok {
		c = Change{Kind: ChangeCounted, TabID: tab.TabID}
	}
	st.publish(c)

	if !over && status.Reported == status.Expected {
		s.logger.Info("all music tabs reported", "count", status.Expected)
	}
}

// HandleNotification routes a push from the control plane. Push state updates are not counted.
func (s *Session) HandleNotification(n models.Notification) {
	if s.isClosed() {
		return
	}

	switch n.Action {
	case models.ActionUpdatePopupState:
		if n.StateData == nil {
			s.logger.Debug("ignoring state push without state data")
			return
		}
		if n.FromTab == nil || n.FromTab.TabID == "" {
			s.anomaly(models.AnomalyMalformedMessage, "", "state push without originating tab")
			return
		}
		s.applyPush(*n.FromTab, n.StateData)

	case models.ActionDefaultTabChanged:
		s.logger.Debug("default tab changed", "tab", n.TabID)
		if !s.inv.ApplyDefault(n.TabID) && n.TabID != nil {
			detail := "default tab not present"
			if s.inv.policy == PolicyRetroactive {
				detail += ", pending until created"
			}
			s.anomaly(models.AnomalyUnknownTab, *n.TabID, detail)
		}

	case models.ActionMalformedFrame:
		s.anomaly(models.AnomalyMalformedMessage, "", n.Detail)

	default:
		s.anomaly(models.AnomalyMalformedMessage, "", fmt.Sprintf("unknown action %q", n.Action))
	}
}

func (s *Session) applyPush(from models.TabDescriptor, state *models.StatePatch) {
	st := s.store
	st.mu.Lock()
	_, known := st.records[from.TabID]
	desc := from
	desc.DefaultTab = s.inv.creationDefault(desc.TabID, desc.DefaultTab)
	outcome := reconcileLocked(st, Report{TabID: desc.TabID, State: state, Tab: &desc})
	st.mu.Unlock()

	if !known {
		s.anomaly(models.AnomalyUnknownTab, from.TabID, "state push for a tab not yet enumerated")
	}
	if c, ok := outcome.change(from.TabID); ok {
		st.publish(c)
	}
}

func (s *Session) listen(ctx context.Context, ch <-chan models.Notification) {
	defer s.pushes.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				s.logger.Debug("notification stream closed")
				return
			}
			s.HandleNotification(n)
		}
	}
}

// Wait blocks until every issued query has returned or ctx is done. It returns nil at once when no
// queries were issued.
//
// Queries abandoned because the session context ended return without being counted; Wait then
// reports [shared.ErrQueriesAbandoned] while [Session.Status] is still counting.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	settled := s.settled
	s.mu.Unlock()
	if settled == nil {
		return nil
	}

	select {
	case <-settled:
		if st := s.agg.Status(); !st.IsComplete() {
			return fmt.Errorf("%w: %d of %d tabs reported", shared.ErrQueriesAbandoned, st.Reported, st.Expected)
		}
		return nil
	case <-ctx.Done():
		st := s.agg.Status()
		return fmt.Errorf("%w: %d of %d tabs reported", shared.ErrTimeout, st.Reported, st.Expected)
	}
}

// Close tears the session down: the push loop stops, in-flight queries are cancelled and every
// listener is removed. Later replies and pushes are ignored. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.pushes.Wait()
	s.view.Close()
	s.store.UnsubscribeAll()
	s.logger.Debug("session closed")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}
