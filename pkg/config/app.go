package config

import (
	"fmt"
	"math"
	"time"
)

// EnvPrefix prefixes every environment override, e.g. TASKPOOL_POOL_WORKERS.
const EnvPrefix = "TASKPOOL"

// AppConfig is the configuration of the taskpool server.
type AppConfig struct {
	Pool     PoolConfig     `yaml:"pool"`
	Listener ListenerConfig `yaml:"listener"`
	Pages    PagesConfig    `yaml:"pages"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Faults   FaultsConfig   `yaml:"faults"`
}

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	Name            string        `yaml:"name"`
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	Backpressure    string        `yaml:"backpressure"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ListenerConfig configures the TCP listener.
type ListenerConfig struct {
	Addr         string        `yaml:"addr"`
	MaxConns     int           `yaml:"max_conns"`
	MaxAccept    int           `yaml:"max_accept"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	TLSCert      string        `yaml:"tls_cert"`
	TLSKey       string        `yaml:"tls_key"`
}

// PagesConfig selects where page bodies come from.
type PagesConfig struct {
	// Source is "file" or "sql".
	Source string `yaml:"source"`
	Dir    string `yaml:"dir"`

	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
	// Seed copies the files in Dir into the table at startup.
	Seed bool `yaml:"seed"`
}

// AdminConfig configures the admin HTTP server.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig configures core.NewLogger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate"`
	ServiceName string  `yaml:"service_name"`
}

// FaultsConfig enables publishing task faults to NATS when NATSURL is set.
type FaultsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	return &AppConfig{
		Pool: PoolConfig{
			Name:            "responder",
			Workers:         4,
			QueueSize:       1024,
			Backpressure:    "block",
			ShutdownTimeout: 30 * time.Second,
		},
		Listener: ListenerConfig{
			Addr:         "127.0.0.1:8888",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Pages: PagesConfig{
			Source: "file",
			Dir:    "./pages",
			Table:  "pages",
		},
		Admin: AdminConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			SampleRate:  1,
			ServiceName: "taskpool",
		},
		Faults: FaultsConfig{
			Subject: "taskpool.faults",
		},
	}
}

// LoadApp reads path (YAML, or JSON when it ends in .json) over the
// defaults, applies TASKPOOL_* overrides and validates the result. An empty
// path skips the file.
func LoadApp(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		if err := LoadWithEnv(path, EnvPrefix, cfg); err != nil {
			return nil, err
		}
	} else if err := ApplyEnvOverrides(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	if err := Validate(cfg, AppValidators()...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AppValidators returns the checks LoadApp runs.
func AppValidators() []Validator {
	return []Validator{
		RequiredFields("Listener.Addr"),
		AddrValidator("Listener.Addr"),
		StringLengthValidator("Pool.Name", 1, 64),
		RangeValidator("Pool.Workers", 1, 4096),
		RangeValidator("Pool.QueueSize", 1, 1<<24),
		OneOfValidator("Pool.Backpressure", "block", "reject"),
		RangeValidator("Listener.MaxConns", 0, math.MaxInt32),
		RangeValidator("Listener.MaxAccept", 0, math.MaxInt32),
		DurationValidator("Pool.ShutdownTimeout", time.Millisecond, time.Hour),
		DurationValidator("Listener.ReadTimeout", time.Millisecond, time.Hour),
		DurationValidator("Listener.WriteTimeout", time.Millisecond, time.Hour),
		OneOfValidator("Pages.Source", "file", "sql"),
		OneOfValidator("Logging.Level", "debug", "info", "warn", "error"),
		OneOfValidator("Logging.Format", "text", "json"),
		OneOfValidator("Tracing.Exporter", "none", "stdout", "zipkin"),
		RangeValidator("Tracing.SampleRate", 0, 1),
		ValidatorFunc(validateDependentFields),
	}
}

func validateDependentFields(c interface{}) error {
	cfg, ok := c.(*AppConfig)
	if !ok {
		return fmt.Errorf("expected *AppConfig, got %T", c)
	}
	if cfg.Pages.Source == "sql" {
		if err := Validate(cfg,
			RequiredFields("Pages.DSN", "Pages.Table"),
			OneOfValidator("Pages.Driver", "sqlite3", "postgres", "pgx"),
		); err != nil {
			return err
		}
	}
	if cfg.Admin.Enabled {
		if err := Validate(cfg, AddrValidator("Admin.Addr")); err != nil {
			return err
		}
	}
	if (cfg.Listener.TLSCert == "") != (cfg.Listener.TLSKey == "") {
		return fmt.Errorf("listener tls_cert and tls_key must be set together")
	}
	if cfg.Tracing.Exporter == "zipkin" && cfg.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required for the zipkin exporter")
	}
	return nil
}
