package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Database wraps a Postgres connection handle together with its ownership.
// A Database created from a configuration owns its pool and closes it on
// Close. A Database wrapping an externally supplied client never closes it;
// the caller keeps the lifecycle.
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger

	ownsConnection bool
}

// NewDatabase opens a new connection pool from the given configuration.
// The returned Database owns the pool.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) (*Database, error) {
	if config == nil {
		return nil, NewError("database configuration validation", fmt.Errorf("database configuration is nil"))
	}

	instance, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, NewError("open database", err)
	}

	instance.SetMaxOpenConns(config.MaxOpenConnections)
	instance.SetConnMaxIdleTime(5 * time.Minute)

	return &Database{
		Name:           name,
		Instance:       instance,
		Logger:         logger,
		ownsConnection: true,
	}, nil
}

// NewDatabaseFromClient wraps an externally managed client. The returned
// Database does not own the handle and Close is a no-op on it.
func NewDatabaseFromClient(name string, client *sql.DB, logger *slog.Logger) (*Database, error) {
	if client == nil {
		return nil, NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	return &Database{
		Name:           name,
		Instance:       client,
		Logger:         logger,
		ownsConnection: false,
	}, nil
}

// Connect verifies liveness with an acquire-release roundtrip. An external
// client reporting that it is already connected counts as success.
func (d *Database) Connect(ctx context.Context) error {
	err := d.Instance.PingContext(ctx)
	if err != nil {
		if !d.ownsConnection && strings.Contains(err.Error(), "already connected") {
			return nil
		}
		return NewError("ping database", err)
	}

	d.Logger.Info("Connected to database", slog.String("database", d.Name))

	return nil
}

// OwnsConnection reports whether Close would release the underlying handle.
func (d *Database) OwnsConnection() bool {
	return d.ownsConnection
}

// Close releases the underlying pool when this Database owns it.
func (d *Database) Close() error {
	if !d.ownsConnection || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}
