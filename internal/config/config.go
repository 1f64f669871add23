// Package config manages the someipd daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/someipd/someipd/internal/sdtypes"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete someipd configuration.
type Config struct {
	Admin                    AdminConfig                     `koanf:"admin"`
	Metrics                  MetricsConfig                   `koanf:"metrics"`
	Log                      LogConfig                        `koanf:"log"`
	IPC                      IPCConfig                        `koanf:"ipc"`
	ServiceDiscovery         ServiceDiscoveryConfig           `koanf:"service_discovery"`
	RequiredServiceInstances []RequiredServiceInstanceConfig  `koanf:"required_service_instances"`
}

// AdminConfig holds the ConnectRPC admin/monitoring server configuration
// (ListRequiredServiceInstances, ListApplications, WatchServiceEvents).
type AdminConfig struct {
	// Addr is the admin server listen address (e.g., ":50051").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// IPCConfig holds the application-facing IPC listener configuration
// (spec.md §4.2, §4.6).
type IPCConfig struct {
	// SocketPath is the Unix domain socket path applications connect to.
	SocketPath string `koanf:"socket_path"`
	// BackpressureThreshold is the TX queue size above which the IPC
	// Connection logs a backpressure warning (spec.md §4.2, default 100).
	// It is validated but not passed to internal/ipc, which uses its own
	// constant of 100.
	BackpressureThreshold int `koanf:"backpressure_threshold"`
	// MaxApplications bounds the number of simultaneously connected
	// applications (spec.md §3 "Application Manager", default 256).
	// It is validated but not passed to internal/application, which uses
	// its own constant of 256.
	MaxApplications int `koanf:"max_applications"`
}

// ServiceDiscoveryConfig holds the SOME/IP-SD network endpoint (spec.md §2,
// §4.12's Target).
type ServiceDiscoveryConfig struct {
	// MulticastAddr is the SD multicast group address.
	MulticastAddr string `koanf:"multicast_addr"`
	// MulticastPort is the SD multicast group's UDP port (IANA default
	// 30490). The unicast SD socket binds an ephemeral port instead.
	MulticastPort uint16 `koanf:"multicast_port"`
	// Interface is the network interface to join the multicast group on.
	Interface string `koanf:"interface"`

	// CyclicOfferDelay is the period at which a provided instance
	// re-announces itself via multicast OfferService once it has entered
	// its main phase (spec.md Glossary "Cyclic offer delay").
	CyclicOfferDelay time.Duration `koanf:"cyclic_offer_delay"`
	// OfferRepetitionBase is the base delay of a provided instance's
	// initial OfferService repetition phase: offers are sent at
	// base*2^k for k=0..OfferRepetitionCount-1 before the main phase
	// begins (spec.md §4.12 "Repetition").
	OfferRepetitionBase time.Duration `koanf:"offer_repetition_base"`
	// OfferRepetitionCount is the number of initial repetition-phase
	// offers sent before a provided instance enters its cyclic main
	// phase.
	OfferRepetitionCount int `koanf:"offer_repetition_count"`
	// OfferTTL is the TTL advertised on each OfferService entry.
	OfferTTL time.Duration `koanf:"offer_ttl"`
}

// RequiredServiceInstanceConfig declares one statically-configured RSI
// (spec.md §3 "RequiredServiceInstance"). Each entry creates an RSI (C8)
// on daemon startup.
type RequiredServiceInstanceConfig struct {
	// Deployment names this RSI for logging/admin listing.
	Deployment string `koanf:"deployment"`

	// Service, Major, Minor identify the required service version.
	Service uint16 `koanf:"service"`
	Major   uint8  `koanf:"major"`
	Minor   uint32 `koanf:"minor"`

	// Instance is the required instance id, or 0xFFFF ("ALL") to accept
	// any instance of (Service, Major) (spec.md Glossary "Instance id ALL").
	Instance uint16 `koanf:"instance"`

	// MinorVersionPolicy selects "minimum" (MinimumMinorVersion) or
	// "exact_or_any" (ExactOrAnyMinorVersion) matching (spec.md §4.9.1).
	MinorVersionPolicy string `koanf:"minor_version_policy"`

	// InitialMin/InitialMax bound the FindService initial-wait jitter.
	InitialMin time.Duration `koanf:"initial_delay_min"`
	InitialMax time.Duration `koanf:"initial_delay_max"`

	// RepetitionBase and RepetitionCount drive the FindService repetition
	// phase's exponential backoff (spec.md §4.9).
	RepetitionBase  time.Duration `koanf:"repetition_base_delay"`
	RepetitionCount int           `koanf:"repetition_max"`

	// FindServiceTTL is the TTL advertised on outgoing FindService entries.
	FindServiceTTL time.Duration `koanf:"find_service_ttl"`

	// Eventgroups lists eventgroup ids for this RSI (spec.md §3
	// "RequiredEventgroup"). The value is loaded but not passed to the
	// RSI; eventgroup subscriptions come only from applications'
	// SubscribeEvent commands.
	Eventgroups []uint16 `koanf:"eventgroups"`
}

// ServiceInstanceId converts this entry into the sdtypes identity tuple
// used to key the RSI table.
func (rc RequiredServiceInstanceConfig) ServiceInstanceId() sdtypes.ServiceInstanceId {
	return sdtypes.ServiceInstanceId{
		Service:  sdtypes.ServiceId(rc.Service),
		Major:    sdtypes.MajorVersion(rc.Major),
		Minor:    sdtypes.MinorVersion(rc.Minor),
		Instance: sdtypes.InstanceId(rc.Instance),
	}
}

// Policy resolves the configured minor-version policy string to its
// sdtypes enum, defaulting to MinimumMinorVersion.
func (rc RequiredServiceInstanceConfig) Policy() sdtypes.MinorVersionPolicy {
	if rc.MinorVersionPolicy == "exact_or_any" {
		return sdtypes.ExactOrAnyMinorVersion
	}
	return sdtypes.MinimumMinorVersion
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
//
// The SD timing defaults cover the offer side (cyclic delay, repetition,
// TTL); FindService timing is set per required service instance and has
// no default here. 30490 is SOME/IP-SD's IANA-assigned default port.
func DefaultConfig() *Config {
	return &Config{
		Admin: AdminConfig{
			Addr: ":50051",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		IPC: IPCConfig{
			SocketPath:            "/run/someipd/someipd.sock",
			BackpressureThreshold: 100,
			MaxApplications:       256,
		},
		ServiceDiscovery: ServiceDiscoveryConfig{
			MulticastAddr:        "224.244.224.245",
			MulticastPort:        30490,
			CyclicOfferDelay:     1 * time.Second,
			OfferRepetitionBase:  200 * time.Millisecond,
			OfferRepetitionCount: 3,
			OfferTTL:             3 * time.Second,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for someipd configuration.
// Variables are named SOMEIPD_<section>_<key>, e.g., SOMEIPD_ADMIN_ADDR.
const envPrefix = "SOMEIPD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (SOMEIPD_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	SOMEIPD_ADMIN_ADDR       -> admin.addr
//	SOMEIPD_METRICS_ADDR     -> metrics.addr
//	SOMEIPD_METRICS_PATH     -> metrics.path
//	SOMEIPD_LOG_LEVEL        -> log.level
//	SOMEIPD_LOG_FORMAT       -> log.format
//	SOMEIPD_IPC_SOCKET_PATH  -> ipc.socket_path
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first.
	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	// Load YAML file on top of defaults.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	// Load environment variable overrides on top of YAML.
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms SOMEIPD_ADMIN_ADDR -> admin.addr.
// Strips the SOMEIPD_ prefix, lowercases, and replaces the first _ (the
// section separator) with ., so SOMEIPD_IPC_SOCKET_PATH -> ipc.socket_path.
// Sections whose own name contains an underscore (service_discovery,
// required_service_instances) cannot be set this way.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"admin.addr":                         defaults.Admin.Addr,
		"metrics.addr":                       defaults.Metrics.Addr,
		"metrics.path":                       defaults.Metrics.Path,
		"log.level":                          defaults.Log.Level,
		"log.format":                         defaults.Log.Format,
		"ipc.socket_path":                    defaults.IPC.SocketPath,
		"ipc.backpressure_threshold":         defaults.IPC.BackpressureThreshold,
		"ipc.max_applications":               defaults.IPC.MaxApplications,
		"service_discovery.multicast_addr":          defaults.ServiceDiscovery.MulticastAddr,
		"service_discovery.multicast_port":          defaults.ServiceDiscovery.MulticastPort,
		"service_discovery.cyclic_offer_delay":      defaults.ServiceDiscovery.CyclicOfferDelay,
		"service_discovery.offer_repetition_base":   defaults.ServiceDiscovery.OfferRepetitionBase,
		"service_discovery.offer_repetition_count":  defaults.ServiceDiscovery.OfferRepetitionCount,
		"service_discovery.offer_ttl":               defaults.ServiceDiscovery.OfferTTL,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyAdminAddr indicates the admin server listen address is empty.
	ErrEmptyAdminAddr = errors.New("admin.addr must not be empty")

	// ErrEmptySocketPath indicates the IPC socket path is empty.
	ErrEmptySocketPath = errors.New("ipc.socket_path must not be empty")

	// ErrInvalidBackpressureThreshold indicates a non-positive threshold.
	ErrInvalidBackpressureThreshold = errors.New("ipc.backpressure_threshold must be > 0")

	// ErrInvalidMaxApplications indicates a non-positive application pool size.
	ErrInvalidMaxApplications = errors.New("ipc.max_applications must be > 0")

	// ErrEmptyMulticastAddr indicates the SD multicast address is empty.
	ErrEmptyMulticastAddr = errors.New("service_discovery.multicast_addr must not be empty")

	// ErrInvalidCyclicOfferDelay indicates a non-positive cyclic offer delay.
	ErrInvalidCyclicOfferDelay = errors.New("service_discovery.cyclic_offer_delay must be > 0")

	// ErrInvalidOfferRepetitionCount indicates a non-positive offer
	// repetition count.
	ErrInvalidOfferRepetitionCount = errors.New("service_discovery.offer_repetition_count must be > 0")

	// ErrInvalidMinorVersionPolicy indicates an unrecognized minor-version
	// policy string.
	ErrInvalidMinorVersionPolicy = errors.New("minor_version_policy must be minimum or exact_or_any")

	// ErrDuplicateRequiredServiceInstance indicates two entries share the
	// same (service, major, instance) identity.
	ErrDuplicateRequiredServiceInstance = errors.New("duplicate required service instance")
)

// ValidMinorVersionPolicies lists the recognized policy strings.
var ValidMinorVersionPolicies = map[string]bool{
	"":             true, // defaults to "minimum"
	"minimum":      true,
	"exact_or_any": true,
}

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Admin.Addr == "" {
		return ErrEmptyAdminAddr
	}
	if cfg.IPC.SocketPath == "" {
		return ErrEmptySocketPath
	}
	if cfg.IPC.BackpressureThreshold <= 0 {
		return ErrInvalidBackpressureThreshold
	}
	if cfg.IPC.MaxApplications <= 0 {
		return ErrInvalidMaxApplications
	}
	if cfg.ServiceDiscovery.MulticastAddr == "" {
		return ErrEmptyMulticastAddr
	}
	if cfg.ServiceDiscovery.CyclicOfferDelay <= 0 {
		return ErrInvalidCyclicOfferDelay
	}
	if cfg.ServiceDiscovery.OfferRepetitionCount <= 0 {
		return ErrInvalidOfferRepetitionCount
	}

	return validateRequiredServiceInstances(cfg.RequiredServiceInstances)
}

func validateRequiredServiceInstances(rsis []RequiredServiceInstanceConfig) error {
	type key struct {
		service, major, instance uint16
	}
	seen := make(map[key]struct{}, len(rsis))

	for i, rc := range rsis {
		if !ValidMinorVersionPolicies[rc.MinorVersionPolicy] {
			return fmt.Errorf("required_service_instances[%d]: %w: %q", i, ErrInvalidMinorVersionPolicy, rc.MinorVersionPolicy)
		}

		k := key{service: rc.Service, major: uint16(rc.Major), instance: rc.Instance}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("required_service_instances[%d]: %w", i, ErrDuplicateRequiredServiceInstance)
		}
		seen[k] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
