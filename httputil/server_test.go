// Copyright (c) 2023 BVK Chaitanya

package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
)

func TestServer(t *testing.T) {
	ctx := context.Background()

	var healthErr atomic.Pointer[error]
	opts := &Options{
		HealthCheck: func() error {
			if p := healthErr.Load(); p != nil {
				return *p
			}
			return nil
		},
	}

	s, err := New(ctx, &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
	}()
	if s.Addr().Port == 0 {
		t.Fatalf("want the chosen port in the server address")
	}

	get := func(path string) (int, string) {
		resp, err := http.Get(fmt.Sprintf("http://%s%s", s.Addr(), path))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(data)
	}

	if code, body := get("/pid"); code != http.StatusOK || body != strconv.Itoa(os.Getpid()) {
		t.Fatalf("want our pid, got %d %q", code, body)
	}
	if code, body := get("/healthz"); code != http.StatusOK || body != "ok" {
		t.Fatalf("want 200 ok, got %d %q", code, body)
	}

	unhealthy := errors.New("price update failed")
	healthErr.Store(&unhealthy)
	if code, _ := get("/healthz"); code != http.StatusServiceUnavailable {
		t.Fatalf("want 503 when unhealthy, got %d", code)
	}

	s.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "metrics")
	}))
	if code, body := get("/metrics"); code != http.StatusOK || body != "metrics" {
		t.Fatalf("want metrics handler, got %d %q", code, body)
	}
	s.Handle("/metrics", nil)
	if code, _ := get("/metrics"); code != http.StatusNotFound {
		t.Fatalf("want 404 after removing the handler, got %d", code)
	}
}

func TestListenFailure(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := New(ctx, s.Addr(), nil); err == nil {
		t.Fatalf("want error for an address in use")
	}
}
