// Copyright (c) 2023 BVK Chaitanya

// Package httputil serves the side endpoints of the bot: /healthz, /pid and
// any handlers registered later, like /metrics.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bvk/pricebot/ctxutil"
)

type Server struct {
	cg ctxutil.CloseGroup

	opts Options

	addr   *net.TCPAddr
	server *http.Server

	mux atomic.Pointer[http.ServeMux]

	mu       sync.Mutex
	handlers map[string]http.Handler
}

// New starts serving on the input address and returns after the listener
// answers its own /pid endpoint. Port zero picks a free port, which is
// reported by Addr.
func New(ctx context.Context, addr *net.TCPAddr, opts *Options) (_ *Server, status error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}

	l, err := net.Listen("tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("could not listen on %s: %w", addr, err)
	}
	laddr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		l.Close()
		return nil, fmt.Errorf("listener addr is not *net.TCPAddr type")
	}

	s := &Server{
		opts:     *opts,
		addr:     laddr,
		handlers: make(map[string]http.Handler),
	}
	s.handlers["/healthz"] = http.HandlerFunc(s.serveHealth)
	s.handlers["/pid"] = http.HandlerFunc(servePID)
	s.updateMux()

	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return s.cg.Context()
		},
	}
	defer func() {
		if status != nil {
			s.Close()
		}
	}()

	s.cg.Go(func(ctx context.Context) {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "addr", laddr, "err", err)
		}
	})

	if err := s.probe(ctx); err != nil {
		return nil, fmt.Errorf("could not verify http server on %s: %w", laddr, err)
	}
	return s, nil
}

// Close stops the listener and waits for the serving goroutine.
func (s *Server) Close() error {
	err := s.server.Close()
	s.cg.Close()
	return err
}

func (s *Server) Addr() *net.TCPAddr {
	return s.addr
}

// Handle registers or replaces the handler for a pattern. A nil handler
// removes the pattern.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if handler == nil {
		delete(s.handlers, pattern)
	} else {
		s.handlers[pattern] = handler
	}
	s.updateMux()
}

func (s *Server) updateMux() {
	m := http.NewServeMux()
	for k, v := range s.handlers {
		m.Handle(k, v)
	}
	s.mux.Store(m)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.Load().ServeHTTP(w, r)
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	if s.opts.HealthCheck != nil {
		if err := s.opts.HealthCheck(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	io.WriteString(w, "ok")
}

func servePID(w http.ResponseWriter, _ *http.Request) {
	io.WriteString(w, strconv.Itoa(os.Getpid()))
}

func (s *Server) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
	defer cancel()

	client := http.Client{Timeout: s.opts.ProbeTimeout}
	target := fmt.Sprintf("http://%s/pid", s.addr)
	want := strconv.Itoa(os.Getpid())
	return ctxutil.Retry(ctx, s.opts.ProbeRetryInterval, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if got := strings.TrimSpace(string(data)); got != want {
			return fmt.Errorf("probe reached another process (pid %q)", got)
		}
		return nil
	})
}
