package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/shared"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/time/rate"
)

// Request actions understood by the hub.
const (
	ActionGetMusicTabs    = "get_music_tabs"
	ActionGetPlayerState  = "getPlayerState"
	ActionSetDefaultTab   = "set_default_tab"
	ActionUnsetDefaultTab = "unset_default_tab"
	ActionCommand         = "command"
	ActionMarkTabEnabled  = "mark_tab_enabled"
	ActionOpenTab         = "open_tab"
)

// Envelope is the JSON text frame exchanged with the hub.
//
// Requests and their replies share ID. Frames without an ID are push notifications.
type Envelope struct {
	ID        string                 `json:"id,omitempty"`
	Action    string                 `json:"action,omitempty"`
	TabID     *string                `json:"tabId,omitempty"`
	Command   models.Command         `json:"command,omitempty"`
	Enabled   *bool                  `json:"enabled,omitempty"`
	Tabs      []models.TabDescriptor `json:"tabs,omitempty"`
	Payload   *models.StatePatch     `json:"payload,omitempty"`
	StateData *models.StatePatch     `json:"stateData,omitempty"`
	FromTab   *models.TabDescriptor  `json:"fromTab,omitempty"`
	Error     string                 `json:"error,omitempty"`

	decodeErr error
}

// HubOpts configures a [Hub].
type HubOpts struct {
	URL          string
	CommandRate  float64 // outbound commands per second; zero disables throttling
	CommandBurst int
	Logger       *log.Logger
}

// Hub is a websocket client for the extension's control plane. It implements [Transport].
//
// Queries wait for the reply carrying their correlation id; commands are written and not acknowledged.
type Hub struct {
	url     string
	logger  *log.Logger
	limiter *rate.Limiter

	mu   sync.Mutex // guards conn and serializes writes
	conn net.Conn

	pendingMu sync.Mutex
	pending   map[string]chan Envelope

	notifications chan models.Notification
	done          chan struct{}
	closeOnce     sync.Once
	readerDone    chan struct{}
}

// NewHub creates an unconnected hub client.
func NewHub(opts HubOpts) *Hub {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.CommandRate > 0 {
		burst := opts.CommandBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.CommandRate), burst)
	}

	return &Hub{
		url:           opts.URL,
		logger:        shared.WithLogger(opts.Logger, "component", "hub"),
		limiter:       limiter,
		pending:       make(map[string]chan Envelope),
		notifications: make(chan models.Notification, 64),
		done:          make(chan struct{}),
		readerDone:    make(chan struct{}),
	}
}

// bufferedConn reads through the handshake reader returned by [ws.Dial].
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }

// Connect dials the hub and starts the read loop. Connecting twice is a no-op.
func (h *Hub) Connect(ctx context.Context) error {
	if h.url == "" {
		return fmt.Errorf("%w: hub url", shared.ErrMissingConfig)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		return nil
	}
	select {
	case <-h.done:
		return shared.ErrConnectionClosed
	default:
	}

	h.logger.Debug("connecting", "url", h.url)
	conn, br, _, err := ws.Dial(ctx, h.url)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", shared.ErrNotConnected, h.url, err)
	}
	if br != nil {
		conn = bufferedConn{Conn: conn, r: br}
	}

	h.conn = conn
	go h.readLoop(conn)
	h.logger.Info("connected to hub", "url", h.url)
	return nil
}

// Close shuts the connection. Pending requests fail with [shared.ErrConnectionClosed].
func (h *Hub) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		conn := h.conn
		h.mu.Unlock()
		if conn != nil {
			err = conn.Close()
			<-h.readerDone
		} else {
			close(h.notifications)
		}
	})
	return err
}

// Notifications delivers push frames until the connection closes.
func (h *Hub) Notifications() <-chan models.Notification {
	return h.notifications
}

func (h *Hub) readLoop(conn net.Conn) {
	defer close(h.readerDone)
	defer close(h.notifications)
	defer h.closeAllPending()

	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			select {
			case <-h.done:
			default:
				h.logger.Warn("read loop exit", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			if !h.malformed(data, err) {
				return
			}
			continue
		}

		if env.ID != "" {
			h.resolve(env)
			continue
		}

		n := models.Notification{Action: env.Action, StateData: env.StateData, FromTab: env.FromTab, TabID: env.TabID}
		select {
		case h.notifications <- n:
		case <-h.done:
			return
		}
	}
}

// malformed fails the request an undecodable reply belongs to, or reports the frame as a notification.
// It returns false when the hub is closing.
func (h *Hub) malformed(data []byte, err error) bool {
	var head struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(data, &head) == nil && head.ID != "" {
		h.logger.Warn("undecodable reply", "id", head.ID, "error", err)
		h.resolve(Envelope{ID: head.ID, decodeErr: err})
		return true
	}

	h.logger.Warn("undecodable frame", "error", err, "size", len(data))
	n := models.Notification{Action: models.ActionMalformedFrame, Detail: err.Error()}
	select {
	case h.notifications <- n:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) resolve(env Envelope) {
	h.pendingMu.Lock()
	ch, ok := h.pending[env.ID]
	if ok {
		delete(h.pending, env.ID)
	}
	h.pendingMu.Unlock()

	if !ok {
		h.logger.Debug("reply without waiter", "id", env.ID, "action", env.Action)
		return
	}
	ch <- env
}

func (h *Hub) closeAllPending() {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	for id, ch := range h.pending {
		close(ch)
		delete(h.pending, id)
	}
}

func (h *Hub) deletePending(id string) {
	h.pendingMu.Lock()
	delete(h.pending, id)
	h.pendingMu.Unlock()
}

func (h *Hub) write(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMalformedMessage, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return shared.ErrNotConnected
	}
	if err := wsutil.WriteClientText(h.conn, data); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRequestFailed, err)
	}
	return nil
}

// request sends env with a fresh correlation id and waits for the matching reply.
func (h *Hub) request(ctx context.Context, env Envelope) (Envelope, error) {
	env.ID = shared.GenerateID()
	ch := make(chan Envelope, 1)

	h.pendingMu.Lock()
	h.pending[env.ID] = ch
	h.pendingMu.Unlock()

	if err := h.write(env); err != nil {
		h.deletePending(env.ID)
		return Envelope{}, err
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return Envelope{}, shared.ErrConnectionClosed
		}
		if reply.decodeErr != nil {
			return Envelope{}, fmt.Errorf("%w: %s reply: %v", shared.ErrMalformedMessage, env.Action, reply.decodeErr)
		}
		if reply.Error != "" {
			return reply, fmt.Errorf("%w: %s: %s", shared.ErrRequestFailed, env.Action, reply.Error)
		}
		return reply, nil
	case <-ctx.Done():
		h.deletePending(env.ID)
		return Envelope{}, ctx.Err()
	}
}

// send writes a fire-and-forget command, throttled by the command limiter.
func (h *Hub) send(ctx context.Context, env Envelope) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}
	h.logger.Debug("sending", "action", env.Action, "tab", env.TabID)
	return h.write(env)
}

// ListMusicTabs implements [ControlPlane].
func (h *Hub) ListMusicTabs(ctx context.Context) ([]models.TabDescriptor, error) {
	reply, err := h.request(ctx, Envelope{Action: ActionGetMusicTabs})
	if err != nil {
		return nil, err
	}
	return reply.Tabs, nil
}

// GetPlayerState implements [Peer]. A reply without payload yields nil.
func (h *Hub) GetPlayerState(ctx context.Context, tabID string) (*models.StatePatch, error) {
	reply, err := h.request(ctx, Envelope{Action: ActionGetPlayerState, TabID: &tabID})
	if err != nil {
		return nil, err
	}
	return reply.Payload, nil
}

// SetDefaultTab implements [ControlPlane].
func (h *Hub) SetDefaultTab(ctx context.Context, tabID string) error {
	return h.send(ctx, Envelope{Action: ActionSetDefaultTab, TabID: &tabID})
}

// UnsetDefaultTab implements [ControlPlane].
func (h *Hub) UnsetDefaultTab(ctx context.Context) error {
	return h.send(ctx, Envelope{Action: ActionUnsetDefaultTab})
}

// SendCommand implements [ControlPlane].
func (h *Hub) SendCommand(ctx context.Context, tabID string, cmd models.Command) error {
	return h.send(ctx, Envelope{Action: ActionCommand, TabID: &tabID, Command: cmd})
}

// MarkTabEnabled implements [ControlPlane].
func (h *Hub) MarkTabEnabled(ctx context.Context, tabID string, enabled bool) error {
	return h.send(ctx, Envelope{Action: ActionMarkTabEnabled, TabID: &tabID, Enabled: &enabled})
}

// OpenTab implements [ControlPlane].
func (h *Hub) OpenTab(ctx context.Context, tabID string) error {
	return h.send(ctx, Envelope{Action: ActionOpenTab, TabID: &tabID})
}
