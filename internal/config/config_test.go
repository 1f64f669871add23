package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/someipd/someipd/internal/config"
	"github.com/someipd/someipd/internal/sdtypes"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Admin.Addr != ":50051" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":50051")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.IPC.BackpressureThreshold != 100 {
		t.Errorf("IPC.BackpressureThreshold = %d, want %d", cfg.IPC.BackpressureThreshold, 100)
	}

	if cfg.IPC.MaxApplications != 256 {
		t.Errorf("IPC.MaxApplications = %d, want %d", cfg.IPC.MaxApplications, 256)
	}

	if cfg.ServiceDiscovery.MulticastPort != 30490 {
		t.Errorf("ServiceDiscovery.MulticastPort = %d, want %d", cfg.ServiceDiscovery.MulticastPort, 30490)
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
admin:
  addr: ":60000"
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
ipc:
  socket_path: "/tmp/custom.sock"
  backpressure_threshold: 50
  max_applications: 10
service_discovery:
  multicast_addr: "239.1.2.3"
  multicast_port: 30499
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Admin.Addr != ":60000" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":60000")
	}
	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}
	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
	if cfg.IPC.SocketPath != "/tmp/custom.sock" {
		t.Errorf("IPC.SocketPath = %q, want %q", cfg.IPC.SocketPath, "/tmp/custom.sock")
	}
	if cfg.IPC.BackpressureThreshold != 50 {
		t.Errorf("IPC.BackpressureThreshold = %d, want %d", cfg.IPC.BackpressureThreshold, 50)
	}
	if cfg.ServiceDiscovery.MulticastAddr != "239.1.2.3" {
		t.Errorf("ServiceDiscovery.MulticastAddr = %q, want %q", cfg.ServiceDiscovery.MulticastAddr, "239.1.2.3")
	}
	if cfg.ServiceDiscovery.MulticastPort != 30499 {
		t.Errorf("ServiceDiscovery.MulticastPort = %d, want %d", cfg.ServiceDiscovery.MulticastPort, 30499)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override admin.addr and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
admin:
  addr: ":55555"
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Admin.Addr != ":55555" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":55555")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}
	if cfg.IPC.SocketPath != "/run/someipd/someipd.sock" {
		t.Errorf("IPC.SocketPath = %q, want default", cfg.IPC.SocketPath)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty admin addr",
			modify: func(cfg *config.Config) {
				cfg.Admin.Addr = ""
			},
			wantErr: config.ErrEmptyAdminAddr,
		},
		{
			name: "empty socket path",
			modify: func(cfg *config.Config) {
				cfg.IPC.SocketPath = ""
			},
			wantErr: config.ErrEmptySocketPath,
		},
		{
			name: "zero backpressure threshold",
			modify: func(cfg *config.Config) {
				cfg.IPC.BackpressureThreshold = 0
			},
			wantErr: config.ErrInvalidBackpressureThreshold,
		},
		{
			name: "zero max applications",
			modify: func(cfg *config.Config) {
				cfg.IPC.MaxApplications = 0
			},
			wantErr: config.ErrInvalidMaxApplications,
		},
		{
			name: "empty multicast addr",
			modify: func(cfg *config.Config) {
				cfg.ServiceDiscovery.MulticastAddr = ""
			},
			wantErr: config.ErrEmptyMulticastAddr,
		},
		{
			name: "zero cyclic offer delay",
			modify: func(cfg *config.Config) {
				cfg.ServiceDiscovery.CyclicOfferDelay = 0
			},
			wantErr: config.ErrInvalidCyclicOfferDelay,
		},
		{
			name: "zero offer repetition count",
			modify: func(cfg *config.Config) {
				cfg.ServiceDiscovery.OfferRepetitionCount = 0
			},
			wantErr: config.ErrInvalidOfferRepetitionCount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

// -------------------------------------------------------------------------
// Required Service Instance Config Tests
// -------------------------------------------------------------------------

func TestLoadWithRequiredServiceInstances(t *testing.T) {
	t.Parallel()

	yamlContent := `
admin:
  addr: ":50051"
required_service_instances:
  - deployment: "climate-control"
    service: 0x1234
    major: 1
    minor: 0
    instance: 1
    minor_version_policy: "minimum"
    initial_delay_min: "10ms"
    initial_delay_max: "50ms"
    repetition_base_delay: "100ms"
    repetition_max: 3
    find_service_ttl: "3s"
    eventgroups: [1, 2]
  - deployment: "diagnostics"
    service: 0x5678
    major: 2
    instance: 65535
    minor_version_policy: "exact_or_any"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if len(cfg.RequiredServiceInstances) != 2 {
		t.Fatalf("RequiredServiceInstances count = %d, want 2", len(cfg.RequiredServiceInstances))
	}

	rc1 := cfg.RequiredServiceInstances[0]
	if rc1.Deployment != "climate-control" {
		t.Errorf("RequiredServiceInstances[0].Deployment = %q, want %q", rc1.Deployment, "climate-control")
	}
	if rc1.Service != 0x1234 {
		t.Errorf("RequiredServiceInstances[0].Service = %#x, want %#x", rc1.Service, 0x1234)
	}
	if rc1.Policy() != sdtypes.MinimumMinorVersion {
		t.Errorf("RequiredServiceInstances[0].Policy() = %v, want MinimumMinorVersion", rc1.Policy())
	}
	if rc1.RepetitionBase != 100*time.Millisecond {
		t.Errorf("RequiredServiceInstances[0].RepetitionBase = %v, want %v", rc1.RepetitionBase, 100*time.Millisecond)
	}
	if len(rc1.Eventgroups) != 2 {
		t.Errorf("RequiredServiceInstances[0].Eventgroups = %v, want 2 entries", rc1.Eventgroups)
	}

	rc2 := cfg.RequiredServiceInstances[1]
	if rc2.Instance != uint16(sdtypes.InstanceIdAll) {
		t.Errorf("RequiredServiceInstances[1].Instance = %#x, want ALL (%#x)", rc2.Instance, sdtypes.InstanceIdAll)
	}
	if rc2.Policy() != sdtypes.ExactOrAnyMinorVersion {
		t.Errorf("RequiredServiceInstances[1].Policy() = %v, want ExactOrAnyMinorVersion", rc2.Policy())
	}
}

func TestValidateRequiredServiceInstanceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "invalid minor version policy",
			modify: func(cfg *config.Config) {
				cfg.RequiredServiceInstances = []config.RequiredServiceInstanceConfig{
					{Deployment: "x", Service: 1, MinorVersionPolicy: "bogus"},
				}
			},
			wantErr: config.ErrInvalidMinorVersionPolicy,
		},
		{
			name: "duplicate required service instance",
			modify: func(cfg *config.Config) {
				cfg.RequiredServiceInstances = []config.RequiredServiceInstanceConfig{
					{Deployment: "a", Service: 1, Major: 1, Instance: 1},
					{Deployment: "b", Service: 1, Major: 1, Instance: 1},
				}
			},
			wantErr: config.ErrDuplicateRequiredServiceInstance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequiredServiceInstanceServiceInstanceId(t *testing.T) {
	t.Parallel()

	rc := config.RequiredServiceInstanceConfig{Service: 0x1234, Major: 1, Minor: 2, Instance: 7}
	id := rc.ServiceInstanceId()

	if id.Service != 0x1234 || id.Major != 1 || id.Minor != 2 || id.Instance != 7 {
		t.Errorf("ServiceInstanceId() = %+v, want {0x1234 1 2 7}", id)
	}
}

// -------------------------------------------------------------------------
// Environment Variable Override Tests
// -------------------------------------------------------------------------

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
admin:
  addr: ":50051"
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("SOMEIPD_ADMIN_ADDR", ":60000")
	t.Setenv("SOMEIPD_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Admin.Addr != ":60000" {
		t.Errorf("Admin.Addr = %q, want %q (from env)", cfg.Admin.Addr, ":60000")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestLoadEnvOverridesMetrics(t *testing.T) {
	yamlContent := `
admin:
  addr: ":50051"
metrics:
  addr: ":9100"
  path: "/metrics"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("SOMEIPD_METRICS_ADDR", ":9200")
	t.Setenv("SOMEIPD_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}
	if cfg.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", cfg.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "someipd.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
