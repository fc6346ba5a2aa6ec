// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

// mockHTTPServer is a test double for the HTTPServer interface.
type mockHTTPServer struct {
	listenAndServeErr error
	shutdownErr       error
	shutdownCount     atomic.Int32
	stopCh            chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{stopCh: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenAndServeErr != nil {
		return m.listenAndServeErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(ctx context.Context) error {
	m.shutdownCount.Add(1)
	close(m.stopCh)
	return m.shutdownErr
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	server := newMockHTTPServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if server.shutdownCount.Load() != 1 {
		t.Errorf("Shutdown called %d times, want 1", server.shutdownCount.Load())
	}
}

func TestHTTPServerServiceStartupFailure(t *testing.T) {
	server := newMockHTTPServer()
	server.listenAndServeErr = errors.New("address in use")
	svc := NewHTTPServerService(server, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, server.listenAndServeErr) {
		t.Errorf("Serve() = %v, want wrapped listen error", err)
	}
}

func TestHTTPServerServiceShutdownFailure(t *testing.T) {
	server := newMockHTTPServer()
	server.shutdownErr = errors.New("shutdown stuck")
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Serve() = nil, want shutdown error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestHTTPServerServiceString(t *testing.T) {
	svc := NewHTTPServerService(newMockHTTPServer(), time.Second)
	if got := svc.String(); got != "http-server" {
		t.Errorf("String() = %s, want http-server", got)
	}
}
