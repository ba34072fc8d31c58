package imagesearch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/chattop/internal/imagesearch"
	"github.com/edgard/chattop/internal/resilience"
)

func TestSearch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantURL string
		wantErr error
	}{
		{
			name:    "large preferred",
			status:  http.StatusOK,
			body:    `{"photos":[{"id":1,"photographer":"Ann","alt":"a cat","src":{"original":"https://img/o.jpg","large":"https://img/l.jpg"}}]}`,
			wantURL: "https://img/l.jpg",
		},
		{
			name:    "falls back to original",
			status:  http.StatusOK,
			body:    `{"photos":[{"id":1,"src":{"original":"https://img/o.jpg"}}]}`,
			wantURL: "https://img/o.jpg",
		},
		{
			name:    "no photos",
			status:  http.StatusOK,
			body:    `{"photos":[]}`,
			wantErr: imagesearch.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/search" || r.URL.Query().Get("query") != "cute cat" {
					t.Errorf("unexpected request %s", r.URL)
				}
				if r.Header.Get("Authorization") != "key" {
					t.Errorf("missing api key")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := imagesearch.NewClient(srv.URL+"/", "key", time.Second, nil).Search(context.Background(), " cute cat ")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Search() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if res.URL != tt.wantURL {
				t.Errorf("Search() URL = %q, want %q", res.URL, tt.wantURL)
			}
		})
	}
}

func TestSearchServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := imagesearch.NewClient(srv.URL, "key", time.Second, nil).Search(context.Background(), "cat")
	if err == nil || errors.Is(err, imagesearch.ErrNotFound) {
		t.Errorf("Search() error = %v, want status error", err)
	}
}

func TestSearchOpensCircuitOnRepeatedFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := imagesearch.NewClient(srv.URL, "key", time.Second, nil)
	for range 5 {
		_, _ = client.Search(context.Background(), "cat")
	}

	_, err := client.Search(context.Background(), "cat")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Search() error = %v, want ErrCircuitOpen", err)
	}
	if got := hits.Load(); got != 5 {
		t.Errorf("backend hits = %d, want 5", got)
	}
}

func TestSearchNotFoundKeepsCircuitClosed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"photos":[]}`))
	}))
	defer srv.Close()

	client := imagesearch.NewClient(srv.URL, "key", time.Second, nil)
	for range 8 {
		if _, err := client.Search(context.Background(), "nothing"); !errors.Is(err, imagesearch.ErrNotFound) {
			t.Fatalf("Search() error = %v, want ErrNotFound", err)
		}
	}
}
