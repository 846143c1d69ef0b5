package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type TestConfig struct {
	Database struct {
		DSN      string        `yaml:"dsn" json:"dsn"`
		MaxConns int           `yaml:"max_conns" json:"max_conns"`
		Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"database" json:"database"`
	Server struct {
		Port  int      `yaml:"port" json:"port"`
		Host  string   `yaml:"host" json:"host"`
		Debug bool     `yaml:"debug" json:"debug"`
		Tags  []string `yaml:"tags" json:"tags"`
	} `yaml:"server" json:"server"`
}

func createTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	yamlContent := `
database:
  dsn: "postgres://localhost/test"
  max_conns: 25
  timeout: 3s
server:
  port: 8080
  host: "localhost"
`
	var cfg TestConfig
	if err := Load(createTempFile(t, "test.yaml", yamlContent), &cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.DSN != "postgres://localhost/test" {
		t.Errorf("Database.DSN = %v, want postgres://localhost/test", cfg.Database.DSN)
	}
	if cfg.Database.MaxConns != 25 {
		t.Errorf("Database.MaxConns = %v, want 25", cfg.Database.MaxConns)
	}
	if cfg.Database.Timeout != 3*time.Second {
		t.Errorf("Database.Timeout = %v, want 3s", cfg.Database.Timeout)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %v, want 8080", cfg.Server.Port)
	}
}

func TestLoadJSON(t *testing.T) {
	jsonContent := `{
  "database": {"dsn": "postgres://localhost/test", "max_conns": 25},
  "server": {"port": 8080, "host": "localhost"}
}`
	var cfg TestConfig
	if err := Load(createTempFile(t, "test.json", jsonContent), &cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.DSN != "postgres://localhost/test" {
		t.Errorf("Database.DSN = %v, want postgres://localhost/test", cfg.Database.DSN)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %v, want 8080", cfg.Server.Port)
	}
}

func TestLoadJSON_RejectsNonJSON(t *testing.T) {
	var cfg TestConfig
	err := Load(createTempFile(t, "test.json", "server: {port: 8080}"), &cfg)
	if err == nil || !strings.Contains(err.Error(), "JSON") {
		t.Errorf("Load() error = %v, want a JSON error", err)
	}
}

func TestAddrValidator(t *testing.T) {
	type listen struct{ Addr string }
	for addr, wantErr := range map[string]bool{
		"127.0.0.1:8888": false,
		":0":             false,
		"[::1]:80":       false,
		"localhost":      true,
		"host:http":      true,
		"host:70000":     true,
	} {
		err := Validate(&listen{Addr: addr}, AddrValidator("Addr"))
		if (err != nil) != wantErr {
			t.Errorf("AddrValidator(%q) error = %v, wantErr %v", addr, err, wantErr)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg TestConfig
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("Load of a missing file should fail")
	}
}

func TestLoadWithEnv(t *testing.T) {
	yamlContent := `
database:
  dsn: "postgres://localhost/test"
  max_conns: 25
server:
  port: 8080
`
	t.Setenv("APP_DATABASE_DSN", "postgres://env/test")
	t.Setenv("APP_DATABASE_TIMEOUT", "250ms")
	t.Setenv("APP_SERVER_PORT", "9090")
	t.Setenv("APP_SERVER_DEBUG", "true")
	t.Setenv("APP_SERVER_TAGS", "a, b")
	t.Setenv("APP_SERVER_HOST", "")

	var cfg TestConfig
	cfg.Server.Host = "default-host"
	if err := LoadWithEnv(createTempFile(t, "test.yaml", yamlContent), "APP", &cfg); err != nil {
		t.Fatalf("LoadWithEnv failed: %v", err)
	}

	if cfg.Database.DSN != "postgres://env/test" {
		t.Errorf("Database.DSN = %v, want postgres://env/test", cfg.Database.DSN)
	}
	if cfg.Database.MaxConns != 25 {
		t.Errorf("Database.MaxConns = %v, want 25 (not overridden)", cfg.Database.MaxConns)
	}
	if cfg.Database.Timeout != 250*time.Millisecond {
		t.Errorf("Database.Timeout = %v, want 250ms", cfg.Database.Timeout)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %v, want 9090", cfg.Server.Port)
	}
	if !cfg.Server.Debug {
		t.Error("Server.Debug = false, want true")
	}
	if len(cfg.Server.Tags) != 2 || cfg.Server.Tags[1] != "b" {
		t.Errorf("Server.Tags = %v, want [a b]", cfg.Server.Tags)
	}
	if cfg.Server.Host != "" {
		t.Errorf("Server.Host = %q, want empty (set-but-empty overrides)", cfg.Server.Host)
	}
}

func TestApplyEnvOverrides_Errors(t *testing.T) {
	var cfg TestConfig
	if err := ApplyEnvOverrides("APP", cfg); err == nil {
		t.Error("non-pointer target should fail")
	}

	t.Setenv("BAD_SERVER_PORT", "eighty")
	if err := ApplyEnvOverrides("BAD", &cfg); err == nil || !strings.Contains(err.Error(), "BAD_SERVER_PORT") {
		t.Errorf("ApplyEnvOverrides error = %v, want mention of BAD_SERVER_PORT", err)
	}

	t.Setenv("DUR_DATABASE_TIMEOUT", "soon")
	if err := ApplyEnvOverrides("DUR", &cfg); err == nil {
		t.Error("invalid duration should fail")
	}
}

func TestValidators(t *testing.T) {
	var cfg TestConfig
	cfg.Database.DSN = "dsn"
	cfg.Database.MaxConns = 10
	cfg.Server.Host = "localhost"
	cfg.Database.Timeout = 3 * time.Second

	tests := []struct {
		name      string
		validator Validator
		wantErr   bool
	}{
		{"required ok", RequiredFields("Database.DSN"), false},
		{"required missing", RequiredFields("Server.Port"), true},
		{"required unknown", RequiredFields("Nope"), true},
		{"range ok", RangeValidator("Database.MaxConns", 1, 100), false},
		{"range out", RangeValidator("Database.MaxConns", 20, 100), true},
		{"range not numeric", RangeValidator("Server.Host", 0, 1), true},
		{"length ok", StringLengthValidator("Server.Host", 1, 20), false},
		{"length out", StringLengthValidator("Server.Host", 10, 20), true},
		{"one of ok", OneOfValidator("Server.Host", "localhost", "0.0.0.0"), false},
		{"one of out", OneOfValidator("Server.Host", "0.0.0.0"), true},
		{"duration ok", DurationValidator("Database.Timeout", time.Second, time.Minute), false},
		{"duration out", DurationValidator("Database.Timeout", 5*time.Second, time.Minute), true},
		{"duration wrong type", DurationValidator("Database.MaxConns", 0, time.Minute), true},
		{"addr not host:port", AddrValidator("Server.Host"), true},
		{"addr not a string", AddrValidator("Database.MaxConns"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&cfg, tt.validator)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
