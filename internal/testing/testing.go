// package testing contains shared testing utilities
package testing

import (
	"context"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/tabx/internal/models"
)

// Call is one outbound request recorded by [MockTransport].
type Call struct {
	Action  string
	TabID   string
	Command models.Command
	Enabled bool
}

// MockTransport is a test double for [services.Transport].
//
// Player state replies come from States; when Hold is set each query blocks until [MockTransport.Release]
// is called for its tab, so tests can choose the order replies arrive in.
type MockTransport struct {
	Tabs       []models.TabDescriptor
	ListErr    error
	States     map[string]*models.StatePatch
	StateErrs  map[string]error
	CommandErr error
	ConnectErr error
	Hold       bool

	mu            sync.Mutex
	calls         []Call
	gates         map[string]chan struct{}
	notifications chan models.Notification
	connected     bool
	closed        bool
}

// NewMockTransport creates a transport that enumerates tabs.
func NewMockTransport(tabs ...models.TabDescriptor) *MockTransport {
	return &MockTransport{
		Tabs:          tabs,
		States:        make(map[string]*models.StatePatch),
		StateErrs:     make(map[string]error),
		gates:         make(map[string]chan struct{}),
		notifications: make(chan models.Notification, 16),
	}
}

func (m *MockTransport) Connect(ctx context.Context) error {
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.notifications)
	}
	return nil
}

func (m *MockTransport) ListMusicTabs(ctx context.Context) ([]models.TabDescriptor, error) {
	m.record(Call{Action: "get_music_tabs"})
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]models.TabDescriptor, len(m.Tabs))
	copy(out, m.Tabs)
	return out, nil
}

func (m *MockTransport) GetPlayerState(ctx context.Context, tabID string) (*models.StatePatch, error) {
	m.record(Call{Action: "getPlayerState", TabID: tabID})
	if m.Hold {
		select {
		case <-m.gate(tabID):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.StateErrs[tabID]; err != nil {
		return nil, err
	}
	return m.States[tabID], nil
}

// Release lets a held query for tabID return.
func (m *MockTransport) Release(tabID string) {
	ch := m.gate(tabID)
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// SetState replaces the reply for tabID.
func (m *MockTransport) SetState(tabID string, state *models.StatePatch) {
	m.mu.Lock()
	m.States[tabID] = state
	m.mu.Unlock()
}

func (m *MockTransport) SetDefaultTab(ctx context.Context, tabID string) error {
	m.record(Call{Action: "set_default_tab", TabID: tabID})
	return m.CommandErr
}

func (m *MockTransport) UnsetDefaultTab(ctx context.Context) error {
	m.record(Call{Action: "unset_default_tab"})
	return m.CommandErr
}

func (m *MockTransport) SendCommand(ctx context.Context, tabID string, cmd models.Command) error {
	m.record(Call{Action: "command", TabID: tabID, Command: cmd})
	return m.CommandErr
}

func (m *MockTransport) MarkTabEnabled(ctx context.Context, tabID string, enabled bool) error {
	m.record(Call{Action: "mark_tab_enabled", TabID: tabID, Enabled: enabled})
	return m.CommandErr
}

func (m *MockTransport) OpenTab(ctx context.Context, tabID string) error {
	m.record(Call{Action: "open_tab", TabID: tabID})
	return m.CommandErr
}

func (m *MockTransport) Notifications() <-chan models.Notification {
	return m.notifications
}

// Push delivers n on the notification channel.
func (m *MockTransport) Push(n models.Notification) {
	m.notifications <- n
}

// Calls returns every recorded request.
func (m *MockTransport) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns recorded requests with the given action.
func (m *MockTransport) CallsFor(action string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// Connected reports whether Connect succeeded.
func (m *MockTransport) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockTransport) record(c Call) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

func (m *MockTransport) gate(tabID string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.gates[tabID]
	if !ok {
		ch = make(chan struct{})
		m.gates[tabID] = ch
	}
	return ch
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// MockRecorder is an anomaly recorder that can be made to fail.
type MockRecorder struct {
	Err error

	mu       sync.Mutex
	recorded []models.Anomaly
}

func (r *MockRecorder) RecordAnomaly(a models.Anomaly) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, a)
	return r.Err
}

// Recorded returns every anomaly passed to RecordAnomaly.
func (r *MockRecorder) Recorded() []models.Anomaly {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Anomaly, len(r.recorded))
	copy(out, r.recorded)
	return out
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
