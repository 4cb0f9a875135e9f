// Package service owns the loaded interfaces and dispatches calls to their
// engines or to the mock source.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"modelproxy-http/internal/config"
	"modelproxy-http/internal/engine"
	"modelproxy-http/internal/mock"
	"modelproxy-http/internal/model"
	"modelproxy-http/internal/profile"
)

// ErrUnknownInterface is returned for an interface id that is not loaded.
var ErrUnknownInterface = errors.New("unknown interface")

type binding struct {
	profile *model.Profile
	proxy   engine.Proxy
}

// Manager holds the bound interfaces. It supplies the registry defaults used
// when a profile omits its status or engine. Safe for concurrent use; a
// reload swaps the whole set at once.
type Manager struct {
	cfg      *config.Config
	registry *engine.Registry
	mock     *mock.Source
	logger   *slog.Logger

	mu       sync.RWMutex
	bindings map[string]*binding
}

// NewManager creates a Manager and loads the configured profile path, if any.
// Bad profile files and profiles are skipped with a warning, even when that
// leaves no interfaces; only a path that cannot be stat'ed or listed fails.
func NewManager(cfg *config.Config, registry *engine.Registry, src *mock.Source, logger *slog.Logger) (*Manager, error) {
	m := &Manager{
		cfg:      cfg,
		registry: registry,
		mock:     src,
		logger:   logger.With("component", "interface_manager"),
		bindings: make(map[string]*binding),
	}

	if cfg.Profiles.Path == "" {
		m.logger.Warn("no profile path configured; starting with no interfaces")
		return m, nil
	}

	raws, err := profile.LoadPath(cfg.Profiles.Path)
	if errors.Is(err, profile.ErrPathUnreadable) {
		return nil, err
	}
	if err := multierr.Append(err, m.Load(raws)); err != nil {
		for _, e := range multierr.Errors(err) {
			m.logger.Warn("profile skipped", "err", e)
		}
	}
	m.logger.Info("interfaces loaded", "count", m.Len(), "path", cfg.Profiles.Path)
	return m, nil
}

// Status implements profile.Defaults.
func (m *Manager) Status() string { return m.cfg.Profiles.DefaultStatus }

// Engine implements profile.Defaults.
func (m *Manager) Engine() string { return m.cfg.Profiles.DefaultEngine }

// Load binds raws and replaces the current set with every profile that bound.
// Profiles that fail are left out and their errors combined.
func (m *Manager) Load(raws []model.RawProfile) error {
	bindings, err := m.build(raws)
	m.swap(bindings)
	return err
}

// Reload re-reads the configured profile path. On any failure the current
// set stays in place.
func (m *Manager) Reload() error {
	raws, err := profile.LoadPath(m.cfg.Profiles.Path)
	if err != nil {
		return err
	}
	bindings, err := m.build(raws)
	if err != nil {
		return err
	}
	m.swap(bindings)
	m.mock.Reset()
	return nil
}

// Watch reloads profiles on file changes until ctx is done. It returns
// immediately when watching is disabled.
func (m *Manager) Watch(ctx context.Context) error {
	if !m.cfg.Profiles.Watch || m.cfg.Profiles.Path == "" {
		return nil
	}
	w, err := profile.NewWatcher(m.cfg.Profiles.Path, profile.DefaultDebounce, m.logger)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	return w.Watch(ctx, m.Reload)
}

func (m *Manager) build(raws []model.RawProfile) (map[string]*binding, error) {
	bindings := make(map[string]*binding, len(raws))
	var errs error

	for _, raw := range raws {
		b, err := m.bind(raw)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, dup := bindings[b.profile.ID]; dup {
			errs = multierr.Append(errs, model.NewConfigError(b.profile.ID, "duplicate interface id"))
			continue
		}
		bindings[b.profile.ID] = b
	}
	return bindings, errs
}

func (m *Manager) bind(raw model.RawProfile) (*binding, error) {
	if raw.ID == "" {
		return nil, model.NewConfigError("", "interface has no id")
	}

	name := raw.Engine
	if name == "" {
		name = m.Engine()
	}
	e, ok := m.registry.Lookup(name)
	if !ok {
		return nil, model.NewConfigError(raw.ID, "unknown engine %q", name)
	}

	p, err := e.Verify(raw, m)
	if err != nil {
		return nil, err
	}
	px, err := e.Bind(p)
	if err != nil {
		return nil, err
	}
	return &binding{profile: p, proxy: px}, nil
}

func (m *Manager) swap(bindings map[string]*binding) {
	m.mu.Lock()
	m.bindings = bindings
	m.mu.Unlock()
}

func (m *Manager) lookup(id string) (*binding, error) {
	m.mu.RLock()
	b, ok := m.bindings[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInterface, id)
	}
	return b, nil
}

// Len returns the number of loaded interfaces.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bindings)
}

// Profile returns the profile loaded under id.
func (m *Manager) Profile(id string) (*model.Profile, bool) {
	b, err := m.lookup(id)
	if err != nil {
		return nil, false
	}
	return b.profile, true
}

// Profiles returns every loaded profile ordered by id.
func (m *Manager) Profiles() []*model.Profile {
	m.mu.RLock()
	out := make([]*model.Profile, 0, len(m.bindings))
	for _, b := range m.bindings {
		out = append(out, b.profile)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Call invokes interface id. Mock profiles are answered by the mock source;
// a mockerr profile returns a *mock.Error.
func (m *Manager) Call(ctx context.Context, id string, params any, cookie string) (*model.Result, error) {
	b, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if b.profile.IsMock() {
		return m.mock.Respond(b.profile)
	}
	return b.proxy.Forward(ctx, params, cookie)
}

// Relay passes r through to interface id and writes the reply to w. Mock
// profiles are answered with their rule as JSON, status 500 for mockerr.
// An error is returned only when nothing was written.
func (m *Manager) Relay(w http.ResponseWriter, r *http.Request, id string) error {
	b, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !b.profile.IsMock() {
		b.proxy.Relay(w, r)
		return nil
	}

	res, err := m.mock.Respond(b.profile)
	var me *mock.Error
	switch {
	case errors.As(err, &me):
		return writeJSON(w, http.StatusInternalServerError, me.Body)
	case err != nil:
		return err
	default:
		return writeJSON(w, http.StatusOK, res.Body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode mock response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
	return nil
}
