package iridium

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/star/skywatch/internal/heavens"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func testFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	b := heavens.DefaultOptionBuilder()
	b.BaseURL = server.URL
	return NewFetcher(heavens.NewClient(b, testLogger), testLogger)
}

func TestGetTable(t *testing.T) {
	page, err := os.ReadFile("testdata/flares.html")
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}

	var gotPath string
	f := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write(page)
	})

	table, err := f.GetTable(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/"+Target {
		t.Errorf("path = %q, want /%s", gotPath, Target)
	}
	if table.Source != Name {
		t.Errorf("source = %q, want %q", table.Source, Name)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}

	first := table.Rows[0]
	if first.Cells["time"] != "Oct 15 05:12:34" {
		t.Errorf("time = %q", first.Cells["time"])
	}
	if first.Seconds["time"] != 5*3600+12*60+34 {
		t.Errorf("time seconds = %d", first.Seconds["time"])
	}
	if first.Cells["satellite"] != "Iridium 91" {
		t.Errorf("satellite = %q, want Iridium 91", first.Cells["satellite"])
	}
	if first.Cells["azimuth"] != "123° (ESE)" {
		t.Errorf("azimuth = %q", first.Cells["azimuth"])
	}
	if !strings.Contains(first.Link, "flaredetails.aspx?fid=0") {
		t.Errorf("link = %q", first.Link)
	}
	if table.Rows[0].ID == table.Rows[1].ID {
		t.Error("rows should have distinct ids")
	}
}

func TestGetTableFailure(t *testing.T) {
	f := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	table, err := f.GetTable(context.Background())
	if table != nil || err == nil {
		t.Fatalf("expected nil table and error, got %v, %v", table, err)
	}
	var fe *heavens.FetchError
	if !errors.As(err, &fe) || fe.Source != Name {
		t.Errorf("expected iridium FetchError, got %v", err)
	}
}

func TestFetcherImplementsTableGetter(t *testing.T) {
	var g heavens.TableGetter = NewFetcher(nil, testLogger)
	if g.Name() != Name {
		t.Errorf("Name() = %q, want %q", g.Name(), Name)
	}
}
