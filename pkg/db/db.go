package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Drivers accepted by Open. "sqlite3" is mattn/go-sqlite3 (cgo), "sqlite"
// is the pure Go modernc driver.
const (
	DriverCGO  = "sqlite3"
	DriverPure = "sqlite"
)

// Open connects to the database at path with the named driver. The store is
// owned by a single process and a single connection, so the pool is pinned
// to one connection; this also keeps ":memory:" databases coherent.
func Open(ctx context.Context, driver, path string) (*sql.DB, error) {
	switch driver {
	case "":
		driver = DriverCGO
	case DriverCGO, DriverPure:
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}
	conn, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	return conn, nil
}
