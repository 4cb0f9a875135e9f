// Package client provides the shared upstream connection pool.
package client

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"modelproxy-http/internal/config"
	"modelproxy-http/internal/metrics"
)

// Pool is the process-wide keep-alive connection pool used for every
// upstream request. It is created once at startup and shared by reference.
//
// At most MaxSockets requests hold a slot at a time; a slot is held from the
// moment the request is sent until its response body is closed. Further
// requests wait for a free slot instead of failing.
type Pool struct {
	httpClient *http.Client
	transport  *http.Transport
	slots      *semaphore.Weighted
	maxSockets int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewPool creates a Pool sized from cfg.Pool.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewPool(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Pool {
	maxSockets := cfg.Pool.MaxSockets
	if maxSockets <= 0 {
		maxSockets = 1000
	}
	idle := cfg.Pool.IdleConnections
	if idle <= 0 {
		idle = 100
	}
	idleTimeout := time.Duration(cfg.Pool.IdleTimeoutSeconds) * time.Second
	if idleTimeout <= 0 {
		idleTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        idle,
		MaxIdleConnsPerHost: idle,
		MaxConnsPerHost:     maxSockets,
		IdleConnTimeout:     idleTimeout,
		// Bodies are decoded by the caller; ask upstreams for identity encoding.
		DisableCompression: true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &Pool{
		httpClient: &http.Client{
			Transport: transport,
			// Redirects are returned to the caller as-is.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		transport:  transport,
		slots:      semaphore.NewWeighted(int64(maxSockets)),
		maxSockets: maxSockets,
		logger:     logger.With("component", "pool"),
		metrics:    m,
	}
}

// MaxSockets returns the concurrent request bound.
func (p *Pool) MaxSockets() int {
	return p.maxSockets
}

// Do sends req once a slot is free and returns the upstream response.
// Timeouts are the caller's business, expressed through the request context,
// which also bounds the wait for a slot. The caller must close the response body.
func (p *Pool) Do(req *http.Request) (*http.Response, error) {
	if err := p.slots.Acquire(req.Context(), 1); err != nil {
		return nil, fmt.Errorf("acquire pool slot: %w", err)
	}
	if p.metrics != nil {
		p.metrics.PoolInFlight.Inc()
	}
	release := sync.OnceFunc(func() {
		p.slots.Release(1)
		if p.metrics != nil {
			p.metrics.PoolInFlight.Dec()
		}
	})

	p.logger.Debug("upstream request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := p.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		release()
		if p.metrics != nil {
			p.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if p.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		p.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		p.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}

	resp.Body = &slotBody{ReadCloser: resp.Body, release: release}
	return resp, nil
}

// Close drops idle keep-alive connections.
func (p *Pool) Close() {
	p.transport.CloseIdleConnections()
}

// slotBody returns the pool slot when the response body is closed.
type slotBody struct {
	io.ReadCloser
	release func()
}

func (b *slotBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}
