// Package engine implements the transport engines that forward calls and
// relay requests for interface profiles.
package engine

import (
	"context"
	"net/http"
	"sort"

	"modelproxy-http/internal/model"
	"modelproxy-http/internal/profile"
)

// Engine is one transport. The interface manager picks an engine by the
// profile's engine name.
type Engine interface {
	Name() string
	// Verify normalizes a raw profile for this engine.
	Verify(raw model.RawProfile, defaults profile.Defaults) (*model.Profile, error)
	// Bind builds the per-profile proxy. It fails when the profile cannot be served.
	Bind(p *model.Profile) (Proxy, error)
}

// Proxy serves calls for one bound profile. Implementations are safe for
// concurrent use.
type Proxy interface {
	// Forward issues one upstream request and returns the decoded result.
	Forward(ctx context.Context, params any, cookie string) (*model.Result, error)
	// ForwardAsync is Forward with the outcome delivered on a channel that
	// receives exactly one value and is then closed.
	ForwardAsync(ctx context.Context, params any, cookie string) <-chan model.Outcome
	// Relay passes r through to the upstream and writes the upstream reply to w.
	Relay(w http.ResponseWriter, r *http.Request)
}

// Registry maps engine names to engines.
type Registry struct {
	engines map[string]Engine
}

// NewRegistry builds a registry. A later engine replaces an earlier one with the same name.
func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{engines: make(map[string]Engine, len(engines))}
	for _, e := range engines {
		r.engines[e.Name()] = e
	}
	return r
}

// Lookup returns the engine registered under name.
func (r *Registry) Lookup(name string) (Engine, bool) {
	e, ok := r.engines[name]
	return e, ok
}

// Names returns the registered engine names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.engines))
	for n := range r.engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
