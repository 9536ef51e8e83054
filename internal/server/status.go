package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tabx/internal/formatter"
	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/popup"
	"github.com/desertthunder/tabx/internal/shared"
)

// TabController is the part of a popup session the status service drives.
type TabController interface {
	Snapshot() popup.Snapshot
	Anomalies() []models.Anomaly
	Watch(size int) (<-chan popup.Change, func())
	SendAction(ctx context.Context, tabID string, cmd models.Command) error
	SetDefaultTab(ctx context.Context, tabID string, set bool) error
	ToggleStreamkeysEnabled(ctx context.Context, tabID string) (bool, error)
	OpenTab(ctx context.Context, tabID string) error
}

// AnomalyLister reads the persisted anomaly journal.
type AnomalyLister interface {
	List(ctx context.Context, criteria models.AnomalyCriteria) ([]models.Anomaly, error)
}

// StatusHandler serves the derived tab view and forwards tab commands.
//
// Implements the [Handler] interface for registration with a [Router].
type StatusHandler struct {
	ctrl    TabController
	journal AnomalyLister
	logger  *log.Logger
	mux     *http.ServeMux
}

// NewStatusHandler creates a handler for ctrl. journal is optional; without it anomalies come from the session.
func NewStatusHandler(ctrl TabController, journal AnomalyLister, logger *log.Logger) *StatusHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	h := &StatusHandler{ctrl: ctrl, journal: journal, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /healthz", h.health)
	h.mux.HandleFunc("GET /api/snapshot", h.snapshot)
	h.mux.HandleFunc("GET /api/tabs", h.tabs)
	h.mux.HandleFunc("GET /api/events", h.events)
	h.mux.HandleFunc("GET /api/anomalies", h.anomalies)
	h.mux.HandleFunc("POST /api/tabs/{id}/command", h.command)
	h.mux.HandleFunc("POST /api/tabs/{id}/default", h.setDefault)
	h.mux.HandleFunc("POST /api/tabs/{id}/toggle", h.toggle)
	h.mux.HandleFunc("POST /api/tabs/{id}/open", h.open)
	return h
}

// Routes implements [Handler].
func (h *StatusHandler) Routes() []string {
	return []string{"/healthz", "/api/"}
}

// ServeHTTP implements [http.Handler].
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *StatusHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "complete": h.ctrl.Snapshot().Status.IsComplete()})
}

func (h *StatusHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// tabs renders the view as JSON by default, or in any formatter format via ?format=.
func (h *StatusHandler) tabs(w http.ResponseWriter, r *http.Request) {
	snap := h.ctrl.Snapshot()
	format := r.URL.Query().Get("format")
	if format == "" || format == formatter.FormatJSON {
		writeJSON(w, http.StatusOK, snap.Tabs)
		return
	}

	data, err := formatter.Format(snap, format)
	if err != nil {
		writeError(w, err)
		return
	}

	switch format {
	case formatter.FormatCSV:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	case formatter.FormatMarkdown:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// events streams a snapshot as a server-sent event on connect and after every store change.
func (h *StatusHandler) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("%w: streaming unsupported", shared.ErrServiceUnavailable))
		return
	}

	changes, stop := h.ctrl.Watch(16)
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func() bool {
		data, err := json.Marshal(h.ctrl.Snapshot())
		if err != nil {
			h.logger.Error("failed to encode snapshot", "error", err)
			return false
		}
		if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-changes:
			if !ok || !send() {
				return
			}
		}
	}
}

func (h *StatusHandler) anomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := models.AnomalyCriteria{SessionID: q.Get("session"), Kind: models.AnomalyKind(q.Get("kind"))}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("%w: limit %q", shared.ErrInvalidArgument, raw))
			return
		}
		criteria.Limit = n
	}

	if h.journal == nil {
		writeJSON(w, http.StatusOK, filterAnomalies(h.ctrl.Anomalies(), criteria))
		return
	}

	list, err := h.journal.List(r.Context(), criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *StatusHandler) command(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command models.Command `json:"command"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}

	tabID := r.PathValue("id")
	if err := h.ctrl.SendAction(r.Context(), tabID, body.Command); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"tabId": tabID, "command": body.Command})
}

func (h *StatusHandler) setDefault(w http.ResponseWriter, r *http.Request) {
	body := struct {
		Set *bool `json:"set"`
	}{}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	set := body.Set == nil || *body.Set

	tabID := r.PathValue("id")
	if err := h.ctrl.SetDefaultTab(r.Context(), tabID, set); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"tabId": tabID, "set": set})
}

func (h *StatusHandler) toggle(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("id")
	enabled, err := h.ctrl.ToggleStreamkeysEnabled(r.Context(), tabID)
	if err != nil && errors.Is(err, shared.ErrTabNotFound) {
		writeError(w, err)
		return
	}
	if err != nil {
		h.logger.Warn("toggle not delivered", "tab", tabID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tabId": tabID, "streamkeysEnabled": enabled})
}

func (h *StatusHandler) open(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("id")
	if err := h.ctrl.OpenTab(r.Context(), tabID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"tabId": tabID})
}

func filterAnomalies(all []models.Anomaly, c models.AnomalyCriteria) []models.Anomaly {
	out := make([]models.Anomaly, 0, len(all))
	for _, a := range all {
		if c.SessionID != "" && a.SessionID != c.SessionID {
			continue
		}
		if c.Kind != "" && a.Kind != c.Kind {
			continue
		}
		out = append(out, a)
	}
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[len(out)-c.Limit:]
	}
	return out
}

func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrTabNotFound), errors.Is(err, shared.ErrAnomalyNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidCommand),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
