// Package db wraps database/sql with pool configuration and the drivers the
// page store supports.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PoolConfig configures a database connection pool.
type PoolConfig struct {
	// DriverName is one of Drivers.
	DriverName string
	// DSN is the driver-specific connection string.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// PingTimeout bounds the connectivity check in NewPool.
	PingTimeout time.Duration
}

// DefaultPoolConfig returns defaults for a small read-mostly workload.
func DefaultPoolConfig(dsn string, driverName string) PoolConfig {
	return PoolConfig{
		DSN:             dsn,
		DriverName:      driverName,
		MaxOpenConns:    8,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// Error is a configuration or state error raised by this package.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Validate checks config without opening anything.
func (c PoolConfig) Validate() error {
	switch {
	case c.DSN == "":
		return &Error{Code: "INVALID_CONFIG", Message: "DSN cannot be empty"}
	case c.DriverName == "":
		return &Error{Code: "INVALID_CONFIG", Message: "DriverName cannot be empty"}
	case !knownDriver(c.DriverName):
		return &Error{Code: "INVALID_CONFIG", Message: fmt.Sprintf("unsupported driver %q", c.DriverName)}
	case c.MaxOpenConns <= 0:
		return &Error{Code: "INVALID_CONFIG", Message: "MaxOpenConns must be positive"}
	case c.MaxIdleConns < 0:
		return &Error{Code: "INVALID_CONFIG", Message: "MaxIdleConns cannot be negative"}
	case c.MaxIdleConns > c.MaxOpenConns:
		return &Error{Code: "INVALID_CONFIG", Message: "MaxIdleConns cannot exceed MaxOpenConns"}
	case c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0:
		return &Error{Code: "INVALID_CONFIG", Message: "connection lifetimes cannot be negative"}
	}
	return nil
}

// Pool is an open *sql.DB plus the config it was opened with.
type Pool struct {
	db     *sql.DB
	config PoolConfig
}

// NewPool validates config, opens the pool and pings it.
func NewPool(ctx context.Context, config PoolConfig) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(config.DriverName, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.DriverName, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	timeout := config.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", config.DriverName, err)
	}

	return &Pool{db: db, config: config}, nil
}

// DB returns the underlying *sql.DB.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Driver returns the driver name the pool was opened with.
func (p *Pool) Driver() string {
	return p.config.DriverName
}

// Placeholder returns the n-th bind parameter for this pool's driver.
func (p *Pool) Placeholder(n int) string {
	return Placeholder(p.config.DriverName, n)
}

// Stats returns database/sql pool statistics.
func (p *Pool) Stats() sql.DBStats {
	if p == nil || p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}

// Close closes the pool.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return &Error{Code: "INVALID_STATE", Message: "pool not initialized"}
	}
	return p.db.Close()
}
