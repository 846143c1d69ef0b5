package db

import (
	"fmt"

	// Registered database/sql drivers: "sqlite3", "postgres" and "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// Drivers lists the driver names accepted by NewPool.
var Drivers = []string{DriverSQLite, DriverPostgres, DriverPgx}

// Placeholder returns the n-th (1-based) bind parameter for driver.
func Placeholder(driver string, n int) string {
	switch driver {
	case DriverPostgres, DriverPgx:
		return fmt.Sprintf("$%d", n)
	default:
		return "?"
	}
}

func knownDriver(name string) bool {
	for _, d := range Drivers {
		if d == name {
			return true
		}
	}
	return false
}
