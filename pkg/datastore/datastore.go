// Package datastore selects a concrete persistence driver for the repository
// layer and provides snapshot archiving of committed state to a blob sink.
package datastore

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"specstore/internal/infra/persistence/memory"
	"specstore/internal/infra/persistence/postgres"
	"specstore/internal/infra/persistence/sqlite"
	"specstore/pkg/query"
)

// Driver identifies a concrete persistent storage implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Store is the driver surface the repository layer opens sessions from.
type Store interface {
	OpenSession() query.Session
	ExportState() query.Snapshot
	ImportState(query.Snapshot)
	Close() error
}

// Compile-time assertions that every shipped driver satisfies Store.
var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

type openConfig struct {
	logger zerolog.Logger
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

// WithLogger attaches a structured logger to driver selection.
func WithLogger(logger zerolog.Logger) OpenOption {
	return func(c *openConfig) { c.logger = logger }
}

// Open selects a backend using environment variables. Defaults to sqlite
// when unset.
//
//	SPECSTORE_DRIVER: memory|sqlite|postgres (default sqlite)
//	SPECSTORE_SQLITE_PATH: path to sqlite file (default ./specstore.db)
//	SPECSTORE_POSTGRES_DSN: postgres DSN when driver=postgres
func Open(opts ...OpenOption) (Store, error) {
	cfg := openConfig{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	driver := os.Getenv("SPECSTORE_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	cfg.logger.Debug().Str("driver", driver).Msg("opening datastore")
	switch Driver(driver) {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		return sqlite.NewStore(os.Getenv("SPECSTORE_SQLITE_PATH"))
	case DriverPostgres:
		return postgres.NewStore(os.Getenv("SPECSTORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
