package engine

import (
	"log/slog"
	"net"
	"net/url"
	"strings"

	"modelproxy-http/internal/client"
	"modelproxy-http/internal/metrics"
	"modelproxy-http/internal/model"
	"modelproxy-http/internal/profile"
)

// HTTPName is the engine name of the HTTP engine.
const HTTPName = "http"

// HTTPEngine forwards calls and relays requests over HTTP through the shared pool.
type HTTPEngine struct {
	pool    *client.Pool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHTTPEngine creates the HTTP engine.
// The metrics parameter is optional; pass nil to disable outcome recording.
func NewHTTPEngine(pool *client.Pool, logger *slog.Logger, m *metrics.Metrics) *HTTPEngine {
	return &HTTPEngine{
		pool:    pool,
		logger:  logger.With("component", "http_engine"),
		metrics: m,
	}
}

// Name implements Engine.
func (e *HTTPEngine) Name() string { return HTTPName }

// Verify implements Engine.
func (e *HTTPEngine) Verify(raw model.RawProfile, defaults profile.Defaults) (*model.Profile, error) {
	return profile.Normalize(raw, defaults)
}

// Bind implements Engine. Profiles in a mock status bind to a proxy with no
// upstream; any other profile must resolve to an http or https URL and use a
// supported method.
func (e *HTTPEngine) Bind(p *model.Profile) (Proxy, error) {
	return newHTTPProxy(p, e)
}

// HTTPProxy is the bound HTTP forwarder and relay for one profile.
type HTTPProxy struct {
	profile *model.Profile
	engine  *HTTPEngine
	logger  *slog.Logger

	// Resolved upstream; empty for mock statuses.
	scheme   string
	hostname string
	port     string
	// path carries the upstream path, its query, and the version parameter,
	// always ending in '&' so parameters can be appended directly.
	path string
}

func newHTTPProxy(p *model.Profile, e *HTTPEngine) (*HTTPProxy, error) {
	hp := &HTTPProxy{
		profile: p,
		engine:  e,
		logger:  e.logger.With("interface_id", p.ID),
	}
	if p.IsMock() {
		return hp, nil
	}

	if p.URL == "" {
		return nil, model.NewConfigError(p.ID, "no url can be proxied for status %q", p.Status)
	}
	if p.Method == "" {
		return nil, model.NewConfigError(p.ID, "unsupported method; use GET or POST")
	}

	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, model.NewConfigError(p.ID, "parse url %q: %v", p.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, model.NewConfigError(p.ID, "url %q must use http or https", p.URL)
	}
	if u.Hostname() == "" {
		return nil, model.NewConfigError(p.ID, "url %q has no host", p.URL)
	}

	hp.scheme = u.Scheme
	hp.hostname = u.Hostname()
	hp.port = u.Port()
	if hp.port == "" {
		hp.port = "80"
		if u.Scheme == "https" {
			hp.port = "443"
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" || u.ForceQuery {
		path += "?" + u.RawQuery
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	hp.path = path + sep + "version=" + p.Version + "&"

	return hp, nil
}

// Profile returns the profile this proxy was bound to.
func (hp *HTTPProxy) Profile() *model.Profile { return hp.profile }

// Path returns the resolved upstream path including the version parameter.
func (hp *HTTPProxy) Path() string { return hp.path }

func (hp *HTTPProxy) hostPort() string {
	return net.JoinHostPort(hp.hostname, hp.port)
}

func (hp *HTTPProxy) resolved() bool {
	return hp.hostname != ""
}

func (hp *HTTPProxy) recordForward(outcome string) {
	if m := hp.engine.metrics; m != nil {
		m.ForwardsTotal.WithLabelValues(hp.profile.ID, outcome).Inc()
	}
}

func (hp *HTTPProxy) recordRelay(outcome string) {
	if m := hp.engine.metrics; m != nil {
		m.RelaysTotal.WithLabelValues(hp.profile.ID, outcome).Inc()
	}
}
