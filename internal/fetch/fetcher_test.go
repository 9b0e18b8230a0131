package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetSucceedsFirstTry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(time.Second, 3)
	res, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Body) != "ok" {
		t.Fatalf("want body %q, got %q", "ok", res.Body)
	}
}

func TestGetRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := New(time.Second, 3)
	res, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Body) != "recovered" {
		t.Fatalf("want recovered body, got %q", res.Body)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("want 3 calls, got %d", calls)
	}
}

func TestGetDoesNotRetry4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(time.Second, 3)
	_, err := f.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("want error for 404")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls)
	}
}

func TestGetExhaustsRetriesOnPersistent5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := New(time.Second, 3)
	_, err := f.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("want error after exhausting retries")
	}
	if atomic.LoadInt32(&calls) != 4 {
		t.Fatalf("want 1 initial + 3 retries = 4 calls, got %d", calls)
	}
}
