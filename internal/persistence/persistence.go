// Package persistence selects a concrete PersistenceAdapter backend from the
// environment.
package persistence

import (
	"fmt"
	"os"

	"cytogate/internal/persistence/memory"
	"cytogate/internal/persistence/postgres"
	"cytogate/internal/persistence/sqlite"
	"cytogate/pkg/domain"
)

// Driver identifies a concrete snapshot storage implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Open selects a backend using environment variables. Defaults to sqlite when
// unset.
//
//	CYTOGATE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	CYTOGATE_SQLITE_PATH: path to sqlite file (default ./cytogate.db)
//	CYTOGATE_POSTGRES_DSN: postgres DSN when driver=postgres
func Open() (domain.PersistenceAdapter, error) {
	driver := os.Getenv("CYTOGATE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		return sqlite.NewStore(os.Getenv("CYTOGATE_SQLITE_PATH"))
	case DriverPostgres:
		return postgres.NewStore(os.Getenv("CYTOGATE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
