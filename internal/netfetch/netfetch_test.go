// SPDX-License-Identifier: MPL-2.0

package netfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "quill/test" {
			t.Errorf("User-Agent = %q, want %q", got, "quill/test")
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	client := NewClient(WithUserAgent("quill/test"))
	body, err := client.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("body = %q, want %q", body, "payload")
	}
}

func TestFetch_Non2xxStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.Fetch(context.Background(), srv.URL)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}
}

func TestFetch_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(WithTimeout(50 * time.Millisecond))
	_, err := client.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestFetch_ResponseTooLarge(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	client := NewClient(WithMaxBytes(512))
	_, err := client.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTruncatedResponse) {
		t.Errorf("error = %v, want ErrTruncatedResponse", err)
	}
}

func TestFetch_CallerDeadlineRespected(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Long default timeout; the caller deadline must win.
	client := NewClient(WithTimeout(time.Hour))
	start := time.Now()
	_, err := client.Fetch(ctx, srv.URL)
	if err == nil {
		t.Fatal("expected deadline error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("fetch took %s, caller deadline was ignored", elapsed)
	}
}
