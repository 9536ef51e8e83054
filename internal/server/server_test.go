package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/popup"
	"github.com/desertthunder/tabx/internal/shared"
	tu "github.com/desertthunder/tabx/internal/testing"
)

type fakeJournal struct {
	got  models.AnomalyCriteria
	list []models.Anomaly
	err  error
}

func (f *fakeJournal) List(ctx context.Context, c models.AnomalyCriteria) ([]models.Anomaly, error) {
	f.got = c
	return f.list, f.err
}

func openSession(t *testing.T) (*popup.Session, *tu.MockTransport) {
	t.Helper()
	tr := tu.NewMockTransport(
		models.TabDescriptor{TabID: "1", SiteName: "SiteA"},
		models.TabDescriptor{TabID: "2", SiteName: "SiteB"},
	)
	tr.SetState("1", &models.StatePatch{Song: models.String("Song"), IsPlaying: models.Bool(true)})
	sess := popup.NewSession(popup.Options{ControlPlane: tr, Peer: tr, Logger: shared.NewLogger(io.Discard)})
	t.Cleanup(func() {
		sess.Close()
		tr.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sess.Open(ctx); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := sess.Wait(ctx); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	return sess, tr
}

func newTestServer(t *testing.T, ctrl TabController, journal AnomalyLister) *httptest.Server {
	t.Helper()
	logger := shared.NewLogger(io.Discard)
	router := NewBasicRouter(DefaultMiddleware(logger)...)
	router.Handler(NewStatusHandler(ctrl, journal, logger))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestBasicRouter(t *testing.T) {
	t.Run("Handle filters methods", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET" {
			t.Errorf("expected 405 with Allow GET, got %d %q", rec.Code, rec.Header().Get("Allow"))
		}
	})

	t.Run("middleware runs in order added", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter(mw("first"))
		router.Use(mw("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("Patterns", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handler(NewStatusHandler(nil, nil, shared.NewLogger(io.Discard)))
		router.Handle("get", "/extra", http.NotFoundHandler())

		got := strings.Join(router.Patterns(), ",")
		if got != "/api/,/healthz,GET /extra" {
			t.Errorf("unexpected patterns %s", got)
		}
	})

	t.Run("recoverer turns panics into 500", func(t *testing.T) {
		router := NewBasicRouter(DefaultMiddleware(shared.NewLogger(io.Discard))...)
		router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestStatusHandler(t *testing.T) {
	t.Run("snapshot", func(t *testing.T) {
		sess, _ := openSession(t)
		srv := newTestServer(t, sess, nil)

		resp, err := http.Get(srv.URL + "/api/snapshot")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var snap struct {
			Status struct {
				Phase    string `json:"phase"`
				Reported int    `json:"reported"`
			} `json:"status"`
			Tabs []models.TabRecord `json:"tabs"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if snap.Status.Phase != "complete" || snap.Status.Reported != 2 || len(snap.Tabs) != 2 {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})

	t.Run("tabs in csv", func(t *testing.T) {
		sess, _ := openSession(t)
		srv := newTestServer(t, sess, nil)

		resp, err := http.Get(srv.URL + "/api/tabs?format=csv")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv") {
			t.Errorf("unexpected content type %s", resp.Header.Get("Content-Type"))
		}
		if !strings.Contains(string(body), "1,SiteA,Song,,true,false,true") {
			t.Errorf("unexpected body %s", body)
		}
	})

	t.Run("tabs with unknown format", func(t *testing.T) {
		sess, _ := openSession(t)
		srv := newTestServer(t, sess, nil)
		resp, err := http.Get(srv.URL + "/api/tabs?format=yaml")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("healthz", func(t *testing.T) {
		sess, _ := openSession(t)
		srv := newTestServer(t, sess, nil)
		resp, err := http.Get(srv.URL + "/healthz")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body["status"] != "ok" || body["complete"] != true {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("command", func(t *testing.T) {
		sess, tr := openSession(t)
		srv := newTestServer(t, sess, nil)

		resp := post(t, srv.URL+"/api/tabs/1/command", `{"command":"playNext"}`)
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("expected 202, got %d", resp.StatusCode)
		}
		if calls := tr.CallsFor("command"); len(calls) != 1 || calls[0].Command != models.CommandPlayNext {
			t.Errorf("unexpected calls %+v", calls)
		}

		tests := []struct {
			name string
			path string
			body string
			want int
		}{
			{name: "unknown tab", path: "/api/tabs/9/command", body: `{"command":"playNext"}`, want: http.StatusNotFound},
			{name: "unknown command", path: "/api/tabs/1/command", body: `{"command":"rewind"}`, want: http.StatusBadRequest},
			{name: "bad json", path: "/api/tabs/1/command", body: `{`, want: http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if resp := post(t, srv.URL+tt.path, tt.body); resp.StatusCode != tt.want {
					t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
				}
			})
		}
	})

	t.Run("command delivery failure is a bad gateway", func(t *testing.T) {
		sess, tr := openSession(t)
		tr.CommandErr = errors.New("hub gone")
		srv := newTestServer(t, sess, nil)
		if resp := post(t, srv.URL+"/api/tabs/1/open", ""); resp.StatusCode != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", resp.StatusCode)
		}
	})

	t.Run("default set and unset", func(t *testing.T) {
		sess, tr := openSession(t)
		srv := newTestServer(t, sess, nil)

		post(t, srv.URL+"/api/tabs/2/default", "")
		post(t, srv.URL+"/api/tabs/2/default", `{"set":false}`)

		if len(tr.CallsFor("set_default_tab")) != 1 || len(tr.CallsFor("unset_default_tab")) != 1 {
			t.Errorf("unexpected calls %+v", tr.Calls())
		}
	})

	t.Run("toggle", func(t *testing.T) {
		sess, _ := openSession(t)
		srv := newTestServer(t, sess, nil)

		resp := post(t, srv.URL+"/api/tabs/1/toggle", "")
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if resp.StatusCode != http.StatusOK || body["streamkeysEnabled"] != false {
			t.Errorf("unexpected response %d %v", resp.StatusCode, body)
		}
		if resp := post(t, srv.URL+"/api/tabs/9/toggle", ""); resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("anomalies from session", func(t *testing.T) {
		sess, _ := openSession(t)
		srv := newTestServer(t, sess, nil)

		resp, err := http.Get(srv.URL + "/api/anomalies?kind=missing_payload")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var list []models.Anomaly
		_ = json.NewDecoder(resp.Body).Decode(&list)
		if len(list) != 1 || list[0].TabID != "2" {
			t.Errorf("unexpected anomalies %+v", list)
		}
	})

	t.Run("anomalies from journal", func(t *testing.T) {
		sess, _ := openSession(t)
		journal := &fakeJournal{list: []models.Anomaly{{ID: "x", Kind: models.AnomalyUnknownTab}}}
		srv := newTestServer(t, sess, journal)

		resp, err := http.Get(srv.URL + "/api/anomalies?session=s1&limit=5")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var list []models.Anomaly
		_ = json.NewDecoder(resp.Body).Decode(&list)
		if len(list) != 1 || list[0].ID != "x" {
			t.Errorf("unexpected anomalies %+v", list)
		}
		if journal.got.SessionID != "s1" || journal.got.Limit != 5 {
			t.Errorf("criteria not forwarded: %+v", journal.got)
		}

		resp2, _ := http.Get(srv.URL + "/api/anomalies?limit=-1")
		resp2.Body.Close()
		if resp2.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp2.StatusCode)
		}
	})

	t.Run("events stream snapshots", func(t *testing.T) {
		sess, _ := openSession(t)
		srv := newTestServer(t, sess, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if resp.Header.Get("Content-Type") != "text/event-stream" {
			t.Errorf("unexpected content type %s", resp.Header.Get("Content-Type"))
		}

		reader := bufio.NewReader(resp.Body)
		readEvent := func() string {
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					t.Fatalf("read: %v", err)
				}
				if strings.HasPrefix(line, "data: ") {
					return line
				}
			}
		}

		if first := readEvent(); !strings.Contains(first, `"streamkeysEnabled":true`) {
			t.Errorf("unexpected first event %s", first)
		}

		if err := sess.ToggleSettings("1"); err != nil {
			t.Fatal(err)
		}
		if second := readEvent(); !strings.Contains(second, `"tabs"`) {
			t.Errorf("unexpected second event %s", second)
		}
	})
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	go func() { done <- Serve(ctx, "127.0.0.1:0", handler, shared.NewLogger(io.Discard), ready) }()

	addr := <-ready
	resp, err := http.Get("http://" + addr)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("expected 418, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
