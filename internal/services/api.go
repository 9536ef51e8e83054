package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/shared"
)

// APIService talks to a running `tabx serve` status server.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a client for the status server at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// RemoteStatus mirrors the aggregation status reported by the server.
type RemoteStatus struct {
	Phase    string `json:"phase"`
	Expected int    `json:"expected"`
	Reported int    `json:"reported"`
}

// RemoteSnapshot is the decoded body of GET /api/snapshot.
type RemoteSnapshot struct {
	SessionID  string             `json:"sessionId"`
	Status     RemoteStatus       `json:"status"`
	HasDefault bool               `json:"hasDefault"`
	Tabs       []models.TabRecord `json:"tabs"`
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       raw,
	}

	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Snapshot fetches the server's derived tab view and aggregation status.
func (a *APIService) Snapshot(ctx context.Context) (*RemoteSnapshot, error) {
	var snap RemoteSnapshot
	if err := a.getJSON(ctx, "/api/snapshot", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Anomalies lists anomalies matching criteria.
func (a *APIService) Anomalies(ctx context.Context, criteria models.AnomalyCriteria) ([]models.Anomaly, error) {
	q := url.Values{}
	if criteria.SessionID != "" {
		q.Set("session", criteria.SessionID)
	}
	if criteria.Kind != "" {
		q.Set("kind", string(criteria.Kind))
	}
	if criteria.Limit > 0 {
		q.Set("limit", strconv.Itoa(criteria.Limit))
	}

	path := "/api/anomalies"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list []models.Anomaly
	if err := a.getJSON(ctx, path, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SendCommand forwards a transport command to tabID.
func (a *APIService) SendCommand(ctx context.Context, tabID string, cmd models.Command) error {
	return a.postJSON(ctx, tabPath(tabID, "command"), map[string]any{"command": cmd}, nil)
}

// SetDefault sets or clears tabID as the default tab.
func (a *APIService) SetDefault(ctx context.Context, tabID string, set bool) error {
	return a.postJSON(ctx, tabPath(tabID, "default"), map[string]any{"set": set}, nil)
}

// Toggle flips streamkeys enablement for tabID and returns the new value.
func (a *APIService) Toggle(ctx context.Context, tabID string) (bool, error) {
	var out struct {
		Enabled bool `json:"streamkeysEnabled"`
	}
	if err := a.postJSON(ctx, tabPath(tabID, "toggle"), nil, &out); err != nil {
		return false, err
	}
	return out.Enabled, nil
}

// OpenTab focuses tabID in the browser.
func (a *APIService) OpenTab(ctx context.Context, tabID string) error {
	return a.postJSON(ctx, tabPath(tabID, "open"), nil, nil)
}

func tabPath(tabID, action string) string {
	return "/api/tabs/" + url.PathEscape(tabID) + "/" + action
}

func (a *APIService) getJSON(ctx context.Context, path string, out any) error {
	resp, err := a.Get(ctx, path)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (a *APIService) postJSON(ctx context.Context, path string, in, out any) error {
	var data []byte
	if in != nil {
		var err error
		if data, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := a.Post(ctx, path, data)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

// decodeResponse maps error statuses back onto sentinel errors and decodes successful bodies into out.
func decodeResponse(resp *APIResponse, out any) error {
	if resp.StatusCode >= 300 {
		msg := string(bytes.TrimSpace(resp.Body))
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(resp.Body, &body) == nil && body.Error != "" {
			msg = body.Error
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", shared.ErrTabNotFound, msg)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", shared.ErrInvalidArgument, msg)
		case http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, msg)
		default:
			return fmt.Errorf("%w: status %d: %s", shared.ErrRequestFailed, resp.StatusCode, msg)
		}
	}

	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMalformedMessage, err)
	}
	return nil
}
