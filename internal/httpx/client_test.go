package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"strings"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
)

func TestDoJSONRetriesServerError(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&count, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"x"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 1, "lendkit-test")
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	var out map[string]any
	if _, err := client.DoJSON(context.Background(), req, &out); err != nil {
		t.Fatalf("DoJSON failed: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("unexpected response: %#v", out)
	}
}

func TestDoJSONSurfacesAPIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "lendkit-test" {
			t.Errorf("unexpected user agent: %s", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorType":"faucet_limit_reached","errorMessage":"faucet limit reached for this address"}`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 0, "lendkit-test")
	_, err := DoBodyJSON(context.Background(), client, http.MethodPost, srv.URL, []byte(`{}`), nil, &map[string]any{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "faucet limit reached") {
		t.Fatalf("expected api message in error, got %v", err)
	}
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeUnavailable {
		t.Fatalf("unexpected error type: %#v", err)
	}
}

func TestDoJSONAuthFailureIsNotRetried(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid jwt"}`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 3, "")
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	_, err := client.DoJSON(context.Background(), req, nil)
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if atomic.LoadInt32(&count) != 1 {
		t.Fatalf("expected a single attempt, got %d", count)
	}
}
