package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"modelproxy-http/internal/config"
	"modelproxy-http/internal/metrics"
)

func newTestPool(maxSockets int, m *metrics.Metrics) *Pool {
	cfg := &config.Config{
		Pool: config.PoolConfig{
			MaxSockets:      maxSockets,
			IdleConnections: 10,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPool(cfg, logger, m)
}

func TestPool_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ae := r.Header.Get("Accept-Encoding"); ae != "" {
			t.Errorf("Accept-Encoding = %q, want empty (identity)", ae)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	m := metrics.New()
	p := newTestPool(10, m)
	defer p.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/test", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %q, want %q", string(body), `{"status":"ok"}`)
	}

	// Closing twice must not release the slot twice.
	_ = resp.Body.Close()
	if !p.slots.TryAcquire(10) {
		t.Error("expected all slots free after body close")
	}
}

func TestPool_Do_Error(t *testing.T) {
	p := newTestPool(1, nil)

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://127.0.0.1:1/nonexistent", nil)
	_, err := p.Do(req)
	if err == nil {
		t.Fatal("Do() expected error for unreachable host, got nil")
	}

	// The failed request must give its slot back.
	if !p.slots.TryAcquire(1) {
		t.Error("slot leaked after failed request")
	}
}

func TestPool_Do_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := newTestPool(10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/slow", nil)
	_, err := p.Do(req)
	if err == nil {
		t.Fatal("Do() expected error for canceled context, got nil")
	}
}

func TestPool_Do_QueuesAtBound(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/hold" {
			<-release
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()
	defer close(release)

	p := newTestPool(1, nil)

	// Occupy the only slot and keep the body open.
	holdReq, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/hold", nil)
	holdDone := make(chan *http.Response, 1)
	go func() {
		resp, err := p.Do(holdReq)
		if err != nil {
			t.Errorf("hold Do() error = %v", err)
			holdDone <- nil
			return
		}
		holdDone <- resp
	}()

	// Wait until the hold request owns the slot.
	deadline := time.Now().Add(2 * time.Second)
	for p.slots.TryAcquire(1) {
		p.slots.Release(1)
		if time.Now().After(deadline) {
			t.Fatal("hold request never acquired the slot")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A second request waits rather than failing; bound its wait with a deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/fast", nil)
	_, err := p.Do(req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() error = %v, want context.DeadlineExceeded while queued", err)
	}

	release <- struct{}{}
	if resp := <-holdDone; resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}

	// Once the slot is returned the next request proceeds.
	req, _ = http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/fast", nil)
	resp, err := p.Do(req)
	if err != nil {
		t.Fatalf("Do() after release error = %v", err)
	}
	_ = resp.Body.Close()
}

func TestPool_MaxSocketsDefault(t *testing.T) {
	p := newTestPool(0, nil)
	if p.MaxSockets() != 1000 {
		t.Errorf("MaxSockets() = %d, want 1000", p.MaxSockets())
	}
}
