package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/shared"
	tu "github.com/desertthunder/tabx/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Defaults", func(t *testing.T) {
			srv := NewAPIService("", nil)
			if srv.baseURL != "http://localhost:8080" {
				t.Errorf("expected default baseURL, got %s", srv.baseURL)
			}
			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/test" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.Header().Set("X-Test", "yes")
				json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.IsJSON || resp.JSONData == nil {
				t.Error("expected response to be JSON")
			}
			if resp.Headers.Get("X-Test") != "yes" {
				t.Error("headers not preserved")
			}
		})

		t.Run("Non-JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("plain"))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON || string(resp.Body) != "plain" {
				t.Errorf("unexpected response %+v", resp)
			}
		})

		t.Run("Transport Failure", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("refused"))}
			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/")
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			body := io.NopCloser(&failingReader{})
			client := &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{StatusCode: 200, Body: body, Header: http.Header{}}, nil)}
			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/")
			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected read error, got %v", err)
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			_, err := NewAPIService("://bad", nil).Get(context.Background(), "/")
			if err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected request creation error, got %v", err)
			}
		})
	})

	t.Run("Snapshot", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/snapshot" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"sessionId":"s1","status":{"phase":"complete","expected":1,"reported":1},"hasDefault":true,"tabs":[{"tabId":"1","siteName":"SiteA","song":"A","defaultTab":true}]}`))
		}))
		defer server.Close()

		snap, err := NewAPIService(server.URL, nil).Snapshot(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snap.SessionID != "s1" || snap.Status.Phase != "complete" || !snap.HasDefault {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if len(snap.Tabs) != 1 || snap.Tabs[0].SongArtistText() != "A" || !snap.Tabs[0].DefaultTab {
			t.Errorf("unexpected tabs %+v", snap.Tabs)
		}
	})

	t.Run("Anomalies encodes criteria", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("session") != "s1" || q.Get("kind") != "unknown_tab" || q.Get("limit") != "3" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			w.Write([]byte(`[{"id":"a1","kind":"unknown_tab","tabId":"9"}]`))
		}))
		defer server.Close()

		list, err := NewAPIService(server.URL, nil).Anomalies(context.Background(), models.AnomalyCriteria{
			SessionID: "s1", Kind: models.AnomalyUnknownTab, Limit: 3,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != 1 || list[0].TabID != "9" {
			t.Errorf("unexpected anomalies %+v", list)
		}
	})

	t.Run("Commands", func(t *testing.T) {
		var got []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			got = append(got, r.Method+" "+r.URL.Path+" "+string(body))
			if strings.HasSuffix(r.URL.Path, "/toggle") {
				w.Write([]byte(`{"tabId":"1","streamkeysEnabled":false}`))
				return
			}
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		api := NewAPIService(server.URL, nil)
		ctx := context.Background()
		if err := api.SendCommand(ctx, "1", models.CommandPlayPause); err != nil {
			t.Fatal(err)
		}
		if err := api.SetDefault(ctx, "1", false); err != nil {
			t.Fatal(err)
		}
		enabled, err := api.Toggle(ctx, "1")
		if err != nil || enabled {
			t.Fatalf("Toggle = %v, %v", enabled, err)
		}
		if err := api.OpenTab(ctx, "1"); err != nil {
			t.Fatal(err)
		}

		want := []string{
			`POST /api/tabs/1/command {"command":"playPause"}`,
			`POST /api/tabs/1/default {"set":false}`,
			`POST /api/tabs/1/toggle `,
			`POST /api/tabs/1/open `,
		}
		if strings.Join(got, "\n") != strings.Join(want, "\n") {
			t.Errorf("unexpected requests:\n%s", strings.Join(got, "\n"))
		}
	})

	t.Run("Error Statuses", func(t *testing.T) {
		tc := []struct {
			name   string
			status int
			want   error
		}{
			{name: "not found", status: http.StatusNotFound, want: shared.ErrTabNotFound},
			{name: "bad request", status: http.StatusBadRequest, want: shared.ErrInvalidArgument},
			{name: "unavailable", status: http.StatusServiceUnavailable, want: shared.ErrServiceUnavailable},
			{name: "bad gateway", status: http.StatusBadGateway, want: shared.ErrRequestFailed},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(`{"error":"nope"}`))
				}))
				defer server.Close()

				err := NewAPIService(server.URL, nil).OpenTab(context.Background(), "1")
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if err == nil || !strings.Contains(err.Error(), "nope") {
					t.Errorf("server message lost: %v", err)
				}
			})
		}
	})

	t.Run("Malformed Body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"tabs":`))
		}))
		defer server.Close()

		_, err := NewAPIService(server.URL, nil).Snapshot(context.Background())
		if !errors.Is(err, shared.ErrMalformedMessage) {
			t.Errorf("expected ErrMalformedMessage, got %v", err)
		}
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }
