package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/star/skywatch/internal/archive"
	"github.com/star/skywatch/internal/auth"
	"github.com/star/skywatch/internal/heavens"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeRefresher stores a canned table or returns err.
type fakeRefresher struct {
	store *archive.Store
	err   error
	block chan struct{}

	mu    sync.Mutex
	calls int
}

func (f *fakeRefresher) Has(source string) bool {
	return source == "satellite" || source == "iridium"
}

func (f *fakeRefresher) Sources() []string {
	return []string{"iridium", "satellite"}
}

func (f *fakeRefresher) RefreshOnce(ctx context.Context, source string) (*heavens.Table, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	t := &heavens.Table{Source: source, FetchedAt: time.Now(), Rows: []heavens.Row{{ID: "fresh"}}}
	f.store.Set(t)
	return t, nil
}

func newTestServer(authCfg auth.Config, refresher *fakeRefresher) http.Handler {
	return NewServer(Config{Addr: ":0", Auth: authCfg}, testLogger(), refresher.store, refresher).Handler()
}

func TestReadyzTracksStore(t *testing.T) {
	store := archive.NewStore()
	h := newTestServer(auth.Config{}, &fakeRefresher{store: store})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before load = %d, want 503", w.Code)
	}

	store.Set(&heavens.Table{Source: "satellite", FetchedAt: time.Now()})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("readyz after load = %d, want 200", w.Code)
	}
}

func TestGetTable(t *testing.T) {
	store := archive.NewStore()
	h := newTestServer(auth.Config{}, &fakeRefresher{store: store})

	tests := []struct {
		name       string
		path       string
		setup      func()
		wantStatus int
	}{
		{"unknown source", "/api/v1/tables/starlink", nil, http.StatusNotFound},
		{"not loaded", "/api/v1/tables/iridium", nil, http.StatusServiceUnavailable},
		{
			name: "loaded",
			path: "/api/v1/tables/satellite",
			setup: func() {
				store.Set(&heavens.Table{Source: "satellite", FetchedAt: time.Now(), Rows: []heavens.Row{{ID: "r1"}}})
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				var got heavens.Table
				if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
					t.Fatalf("decoding: %v", err)
				}
				if len(got.Rows) != 1 || got.Rows[0].ID != "r1" {
					t.Errorf("rows = %+v", got.Rows)
				}
			}
		})
	}
}

func TestListTables(t *testing.T) {
	store := archive.NewStore()
	store.Set(&heavens.Table{Source: "satellite", URL: "http://x", FetchedAt: time.Now(), Rows: make([]heavens.Row, 3)})
	h := newTestServer(auth.Config{}, &fakeRefresher{store: store})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/tables", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Tables []tableSummary `json:"tables"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(resp.Tables) != 2 {
		t.Fatalf("tables = %d, want 2", len(resp.Tables))
	}
	if resp.Tables[0].Source != "iridium" || resp.Tables[0].Loaded {
		t.Errorf("iridium summary = %+v", resp.Tables[0])
	}
	if !resp.Tables[1].Loaded || resp.Tables[1].Rows != 3 {
		t.Errorf("satellite summary = %+v", resp.Tables[1])
	}
}

func TestFetchTable(t *testing.T) {
	store := archive.NewStore()
	h := newTestServer(auth.Config{Enabled: true, Token: "secret"}, &fakeRefresher{store: store})

	req := httptest.NewRequest("POST", "/api/v1/tables/satellite/fetch", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("fetch without token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/v1/tables/satellite/fetch", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("fetch with token = %d, want 200", w.Code)
	}
	if store.Get("satellite") == nil {
		t.Error("fetch should populate the store")
	}

	req = httptest.NewRequest("POST", "/api/v1/tables/starlink/fetch", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("fetch unknown = %d, want 404", w.Code)
	}
}

func TestFetchTableUpstreamError(t *testing.T) {
	store := archive.NewStore()
	refresher := &fakeRefresher{
		store: store,
		err:   &heavens.FetchError{Source: "iridium", URL: "http://x", Err: heavens.ErrEmptyTable},
	}
	h := newTestServer(auth.Config{}, refresher)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/tables/iridium/fetch", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if !strings.Contains(resp["error"], "no rows") {
		t.Errorf("error = %q", resp["error"])
	}
}

// TestFetchTableLimit verifies one in-flight manual fetch per client.
func TestFetchTableLimit(t *testing.T) {
	store := archive.NewStore()
	refresher := &fakeRefresher{store: store, block: make(chan struct{})}
	h := newTestServer(auth.Config{}, refresher)

	first := make(chan int)
	go func() {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/tables/satellite/fetch", nil))
		first <- w.Code
	}()

	// Wait until the first fetch is in flight.
	deadline := time.Now().Add(5 * time.Second)
	for {
		refresher.mu.Lock()
		calls := refresher.calls
		refresher.mu.Unlock()
		if calls > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first fetch never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/tables/iridium/fetch", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("concurrent fetch = %d, want 429", w.Code)
	}

	close(refresher.block)
	if code := <-first; code != http.StatusOK {
		t.Errorf("first fetch = %d, want 200", code)
	}
}
