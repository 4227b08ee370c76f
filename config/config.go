package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TLSConfig holds TLS-specific configurations for the debug HTTP surface.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ServerConfig holds the composition root's listen configuration.
type ServerConfig struct {
	ListenAddress       string    `yaml:"listen_address"`
	HealthCheckInterval string    `yaml:"health_check_interval"`
	TLS                 TLSConfig `yaml:"tls"`
}

// BackendConfig holds the embedded ordered KV store's tunables (spec §6).
type BackendConfig struct {
	MemTableSizeBytes int64 `yaml:"memtable_size_bytes"`
	CacheSizeBytes    int64 `yaml:"cache_size_bytes"`
}

// ManagerConfig holds the qbuf table's admission and lifecycle tunables
// (spec §3 manager state).
type ManagerConfig struct {
	RootPath             string `yaml:"root_path"`
	MaxQueryDataSizeBytes int64  `yaml:"max_query_data_size_bytes"`
	SoftWatermarkBytes    int64  `yaml:"soft_watermark_bytes"`
	HardWatermarkBytes    int64  `yaml:"hard_watermark_bytes"`
	InmemMaxBytes         int64  `yaml:"inmem_max_bytes"`
	DefaultExpire         string `yaml:"default_expire"`
	IncompleteRelease     string `yaml:"incomplete_release"`
	TickInterval          string `yaml:"tick_interval"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // e.g., "stdout", "file", "none"
	File   string `yaml:"file"`   // Path to the log file, used if output is "file"
}

// DebugConfig holds debugging-related configurations.
type DebugConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ListenAddress    string `yaml:"listen_address"`
	PProfEnabled     bool   `yaml:"pprof_enabled"`
	ExpvarEnabled    bool   `yaml:"expvar_enabled"`
	StatsvizEnabled  bool   `yaml:"statsviz_enabled"`
}

// SelfMonitoringConfig holds the metrics-namespace configuration.
type SelfMonitoringConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Interval     string `yaml:"interval"`
	MetricPrefix string `yaml:"metric_prefix"`
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // e.g., "localhost:4317" for gRPC OTLP collector
	Protocol string `yaml:"protocol"` // "grpc" or "http"
}

// Config is the top-level configuration struct for qbufd.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Backend        BackendConfig        `yaml:"backend"`
	Manager        ManagerConfig        `yaml:"manager"`
	Debug          DebugConfig          `yaml:"debug"`
	Logging        LoggingConfig        `yaml:"logging"`
	SelfMonitoring SelfMonitoringConfig `yaml:"self_monitoring"`
	Tracing        TracingConfig        `yaml:"tracing"`
}

// ParseDuration parses a duration string. Returns the default duration if the string is empty or invalid.
// Logs a warning if the string is invalid but not empty.
func ParseDuration(durationStr string, defaultDuration time.Duration, logger *slog.Logger) time.Duration {
	if durationStr == "" || durationStr == "0" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		if logger != nil {
			logger.Warn("Invalid duration format, using default", "input", durationStr, "default", defaultDuration.String(), "error", err)
		}
		return defaultDuration
	}
	return d
}

// Load reads configuration from an io.Reader.
// This is the core logic, separated for testability.
func Load(r io.Reader) (*Config, error) {
	// Set default values
	cfg := &Config{
		Server: ServerConfig{
			ListenAddress:       ":50060",
			HealthCheckInterval: "5s",
			TLS: TLSConfig{
				Enabled:  false,
				CertFile: "certs/server.crt",
				KeyFile:  "certs/server.key",
			},
		},
		Backend: BackendConfig{
			MemTableSizeBytes: 10 * 1024 * 1024, // 10 MiB
			CacheSizeBytes:    8 * 1024 * 1024,  // 8 MiB
		},
		Manager: ManagerConfig{
			RootPath:              "./data/qbuf",
			MaxQueryDataSizeBytes: 256 * 1024 * 1024, // 256 MiB
			SoftWatermarkBytes:    512 * 1024 * 1024, // 512 MiB
			HardWatermarkBytes:    768 * 1024 * 1024, // 768 MiB
			InmemMaxBytes:         128 * 1024 * 1024, // 128 MiB
			DefaultExpire:         "30s",
			IncompleteRelease:     "60s",
			TickInterval:          "1s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			File:   "qbufd.log",
		},
		SelfMonitoring: SelfMonitoringConfig{
			Enabled:      true,
			Interval:     "15s",
			MetricPrefix: "qbuf",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
			Protocol: "grpc",
		},
		Debug: DebugConfig{
			Enabled:         true,
			ListenAddress:   "0.0.0.0:6060",
			PProfEnabled:    true,
			ExpvarEnabled:   true,
			StatsvizEnabled: true,
		},
	}

	// If the reader is nil, it's like an empty file, return defaults.
	if r == nil {
		return cfg, nil
	}

	// Read all data from the reader
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}

	// If data is empty, return defaults.
	if len(data) == 0 {
		return cfg, nil
	}

	// Unmarshal YAML into the config struct, overwriting defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// If file doesn't exist, return default config by calling Load with a nil reader.
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}
