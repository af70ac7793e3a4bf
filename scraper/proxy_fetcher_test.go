package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"listing_ledger/config"
	"listing_ledger/httputil"
)

func TestProxyFetcher_ScraperAPI(t *testing.T) {
	var gotURL, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("url")
		gotKey = r.URL.Query().Get("api_key")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	cfg := &config.FetchConfig{ScraperAPIURL: srv.URL + "/", ScraperAPIKey: "secret"}
	f := NewProxyFetcher(cfg, httputil.NewClients(cfg))

	body, err := f.Fetch(context.Background(), "https://www.redfin.com/zipcode/78701/page-2")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Fatalf("unexpected body %q", body)
	}
	if gotURL != "https://www.redfin.com/zipcode/78701/page-2" {
		t.Fatalf("target url not forwarded, got %q", gotURL)
	}
	if gotKey != "secret" {
		t.Fatalf("api key not forwarded, got %q", gotKey)
	}
}

func TestProxyFetcher_DirectWithoutKey(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/zipcode/78701" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte("page"))
	}))
	defer srv.Close()

	cfg := &config.FetchConfig{}
	f := NewProxyFetcher(cfg, httputil.NewClients(cfg))
	if _, err := f.Fetch(context.Background(), srv.URL+"/zipcode/78701"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected 1 request, got %d", hits)
	}
}

func TestProxyFetcher_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := &config.FetchConfig{}
	f := NewProxyFetcher(cfg, httputil.NewClients(cfg))
	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("error should carry status and body: %v", err)
	}
}

func TestProxyFetcher_CanceledContext(t *testing.T) {
	cfg := &config.FetchConfig{}
	f := NewProxyFetcher(cfg, httputil.NewClients(cfg))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, "http://127.0.0.1:1/"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestNewFetcherRejectsUnknown(t *testing.T) {
	cfg := &config.FetchConfig{Fetcher: "carrier-pigeon"}
	if _, err := NewFetcher(cfg, httputil.NewClients(cfg)); err == nil {
		t.Fatal("expected error for unknown fetcher")
	}
}
