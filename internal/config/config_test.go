package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// cliWithPath returns a CLI struct pointing at the given config file.
func cliWithPath(path string) *CLI {
	return &CLI{Config: path}
}

// writeConfig writes data to a config.toml in a fresh temp dir and returns its path.
func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9000
body_max_bytes = 5242880

[pool]
max_sockets = 200
idle_connections = 50
idle_timeout_seconds = 30

[profiles]
path = "/srv/interfaces.yaml"
watch = true
default_status = "daily"
default_engine = "http"

[log]
level = "debug"
format = "text"
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Pool.MaxSockets != 200 {
		t.Errorf("Pool.MaxSockets = %d, want %d", cfg.Pool.MaxSockets, 200)
	}
	if cfg.Pool.IdleTimeoutSeconds != 30 {
		t.Errorf("Pool.IdleTimeoutSeconds = %d, want %d", cfg.Pool.IdleTimeoutSeconds, 30)
	}
	if cfg.Profiles.Path != "/srv/interfaces.yaml" || !cfg.Profiles.Watch {
		t.Errorf("Profiles = %+v", cfg.Profiles)
	}
	if cfg.Profiles.DefaultStatus != "daily" {
		t.Errorf("Profiles.DefaultStatus = %q, want %q", cfg.Profiles.DefaultStatus, "daily")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "verbose"
`)

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for invalid log level, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "# empty\n")

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default Server.Port = %d, want %d", cfg.Server.Port, 8000)
	}
	if cfg.Server.BodyMaxBytes != 10*1024*1024 {
		t.Errorf("default Server.BodyMaxBytes = %d, want %d", cfg.Server.BodyMaxBytes, 10*1024*1024)
	}
	if cfg.Pool.MaxSockets != 1000 {
		t.Errorf("default Pool.MaxSockets = %d, want %d", cfg.Pool.MaxSockets, 1000)
	}
	if cfg.Pool.IdleConnections != 100 {
		t.Errorf("default Pool.IdleConnections = %d, want %d", cfg.Pool.IdleConnections, 100)
	}
	if cfg.Profiles.DefaultStatus != "online" {
		t.Errorf("default Profiles.DefaultStatus = %q, want %q", cfg.Profiles.DefaultStatus, "online")
	}
	if cfg.Profiles.DefaultEngine != "http" {
		t.Errorf("default Profiles.DefaultEngine = %q, want %q", cfg.Profiles.DefaultEngine, "http")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("default Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(cliWithPath("/nonexistent/config.toml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "0.0.0.0"
port = 8000

[profiles]
path = "toml.yaml"
default_status = "online"

[log]
level = "info"
`)

	cli := &CLI{
		Config:   path,
		Host:     "127.0.0.1",
		Port:     3000,
		Profiles: "cli.yaml",
		Status:   "prepub",
		LogLevel: "debug",
	}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q (CLI override)", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want %d (CLI override)", cfg.Server.Port, 3000)
	}
	if cfg.Profiles.Path != "cli.yaml" {
		t.Errorf("Profiles.Path = %q, want %q (CLI override)", cfg.Profiles.Path, "cli.yaml")
	}
	if cfg.Profiles.DefaultStatus != "prepub" {
		t.Errorf("Profiles.DefaultStatus = %q, want %q (CLI override)", cfg.Profiles.DefaultStatus, "prepub")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (CLI override)", cfg.Log.Level, "debug")
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		mention string
	}{
		{"negative port", "[server]\nport = -1\n", "server.port"},
		{"negative body_max_bytes", "[server]\nbody_max_bytes = -1\n", "body_max_bytes"},
		{"negative max_sockets", "[pool]\nmax_sockets = -5\n", "pool.max_sockets"},
		{"negative idle_connections", "[pool]\nidle_connections = -1\n", "pool.idle_connections"},
		{"negative idle timeout", "[pool]\nidle_timeout_seconds = -1\n", "idle_timeout_seconds"},
		{"watch without path", "[profiles]\nwatch = true\n", "profiles.watch"},
		{"mock default status", "[profiles]\ndefault_status = \"mock\"\n", "default_status"},
		{"bad log format", "[log]\nformat = \"xml\"\n", "log.format"},
		{"rate limit zero", "[server.rate_limit]\nenabled = true\nrequests_per_second = 0\n", "requests_per_second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(cliWithPath(writeConfig(t, tt.data)))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.mention) {
				t.Errorf("error = %q, want mention of %q", err, tt.mention)
			}
		})
	}
}

func TestLoad_RateLimitConfig_Enabled(t *testing.T) {
	path := writeConfig(t, `
[server.rate_limit]
enabled = true
requests_per_second = 50.0
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Server.RateLimit.Enabled {
		t.Error("expected RateLimit.Enabled = true")
	}
	if cfg.Server.RateLimit.RequestsPerSecond != 50.0 {
		t.Errorf("RateLimit.RequestsPerSecond = %v, want 50.0", cfg.Server.RateLimit.RequestsPerSecond)
	}
}

func TestWarnPermissions_Loose(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("# test"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if !strings.Contains(buf.String(), "readable by group/others") {
		t.Errorf("expected permission warning, got: %q", buf.String())
	}
}

func TestWarnPermissions_Strict(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("# test"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if buf.Len() != 0 {
		t.Errorf("expected no warning for 0600 file, got: %q", buf.String())
	}
}

func TestFindConfigInPaths(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	path1 := filepath.Join(dir1, "config.toml")
	path2 := filepath.Join(dir2, "config.toml")
	for _, p := range []string{path1, path2} {
		if err := os.WriteFile(p, []byte("[log]\nlevel = \"info\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if got := findConfigInPaths([]string{"/nonexistent/a.toml", path2, path1}); got != path2 {
		t.Errorf("findConfigInPaths() = %q, want first existing %q", got, path2)
	}
	if got := findConfigInPaths([]string{"/nonexistent/a.toml", "/nonexistent/b.toml"}); got != "" {
		t.Errorf("findConfigInPaths() = %q, want empty", got)
	}
}

func TestLoad_MetricsPath(t *testing.T) {
	cfg, err := Load(cliWithPath(writeConfig(t, "[metrics]\nenabled = true\n")))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	_, err = Load(cliWithPath(writeConfig(t, "[metrics]\nenabled = true\npath = \"metrics\"\n")))
	if err == nil || !strings.Contains(err.Error(), "metrics.path") {
		t.Errorf("Load() error = %v, want metrics.path leading-slash error", err)
	}

	_, err = Load(cliWithPath(writeConfig(t, "[metrics]\nenabled = false\npath = \"bad-no-slash\"\n")))
	if err != nil {
		t.Errorf("Load() error = %v; disabled metrics should skip path validation", err)
	}
}

func TestLoad_MetricsPathConflictsWithRoutes(t *testing.T) {
	for _, p := range []string{"/interfaces", "/interfaces/metrics", "/model", "/healthz", "/proxy/status"} {
		t.Run(p, func(t *testing.T) {
			_, err := Load(cliWithPath(writeConfig(t, "[metrics]\nenabled = true\npath = \""+p+"\"\n")))
			if err == nil {
				t.Fatalf("Load() expected error for metrics.path=%q conflicting with route, got nil", p)
			}
			if !strings.Contains(err.Error(), "conflicts") {
				t.Errorf("error = %q, want mention of conflict", err)
			}
		})
	}
}

func TestServerConfig_Addr(t *testing.T) {
	sc := &ServerConfig{Host: "127.0.0.1", Port: 3000}
	want := "127.0.0.1:3000"
	if got := sc.Addr(); got != want {
		t.Errorf("Addr() = %q, want %q", got, want)
	}
}
