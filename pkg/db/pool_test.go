package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultPoolConfig(t *testing.T) {
	config := DefaultPoolConfig("test-dsn", "postgres")

	if config.DSN != "test-dsn" {
		t.Errorf("DSN = %v, want test-dsn", config.DSN)
	}
	if config.DriverName != "postgres" {
		t.Errorf("DriverName = %v, want postgres", config.DriverName)
	}
	if config.MaxOpenConns != 8 {
		t.Errorf("MaxOpenConns = %v, want 8", config.MaxOpenConns)
	}
	if config.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want 5m", config.ConnMaxLifetime)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestPoolConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PoolConfig)
	}{
		{"empty dsn", func(c *PoolConfig) { c.DSN = "" }},
		{"empty driver", func(c *PoolConfig) { c.DriverName = "" }},
		{"unknown driver", func(c *PoolConfig) { c.DriverName = "mysql" }},
		{"zero max open", func(c *PoolConfig) { c.MaxOpenConns = 0 }},
		{"negative idle", func(c *PoolConfig) { c.MaxIdleConns = -1 }},
		{"idle above open", func(c *PoolConfig) { c.MaxIdleConns = c.MaxOpenConns + 1 }},
		{"negative lifetime", func(c *PoolConfig) { c.ConnMaxLifetime = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultPoolConfig(":memory:", DriverSQLite)
			tt.mutate(&config)

			err := config.Validate()
			var dbErr *Error
			if !errors.As(err, &dbErr) || dbErr.Code != "INVALID_CONFIG" {
				t.Errorf("Validate() = %v, want INVALID_CONFIG", err)
			}
			if _, err := NewPool(context.Background(), config); err == nil {
				t.Errorf("NewPool() should fail")
			}
		})
	}
}

func TestNewPool_SQLite(t *testing.T) {
	config := DefaultPoolConfig(":memory:", DriverSQLite)
	config.MaxOpenConns = 1
	config.MaxIdleConns = 1

	pool, err := NewPool(context.Background(), config)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Close()

	var one int
	if err := pool.DB().QueryRow("SELECT 1").Scan(&one); err != nil || one != 1 {
		t.Fatalf("SELECT 1 = %d, %v", one, err)
	}
	if pool.Driver() != DriverSQLite {
		t.Errorf("Driver() = %q", pool.Driver())
	}
	if pool.Stats().MaxOpenConnections != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", pool.Stats().MaxOpenConnections)
	}
}

func TestNewPool_UnreachablePostgres(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverPgx} {
		t.Run(driver, func(t *testing.T) {
			config := DefaultPoolConfig("postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1", driver)
			config.PingTimeout = 2 * time.Second
			if _, err := NewPool(context.Background(), config); err == nil {
				t.Fatalf("NewPool() against a closed port should fail")
			}
		})
	}
}

func TestPlaceholder(t *testing.T) {
	tests := []struct {
		driver string
		n      int
		want   string
	}{
		{DriverSQLite, 1, "?"},
		{DriverSQLite, 2, "?"},
		{DriverPostgres, 1, "$1"},
		{DriverPgx, 2, "$2"},
	}
	for _, tt := range tests {
		if got := Placeholder(tt.driver, tt.n); got != tt.want {
			t.Errorf("Placeholder(%q, %d) = %q, want %q", tt.driver, tt.n, got, tt.want)
		}
	}
}

func TestPool_CloseNil(t *testing.T) {
	var p *Pool
	if err := p.Close(); err == nil {
		t.Error("Close() on nil pool should fail")
	}
	if p.Stats().OpenConnections != 0 {
		t.Error("Stats() on nil pool should be empty")
	}
}
