package storage

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	maxOpenConns    = 20
	connMaxIdleTime = 5 * time.Minute
)

// InitStore opens the store shared by the CLI and the server and bounds its
// connection pool.
func InitStore(dbConnStr string) (*PostgresStore, error) {
	store, err := NewPostgresStore(dbConnStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres store")
	}
	if db, ok := store.db.(*sqlx.DB); ok {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetConnMaxIdleTime(connMaxIdleTime)
	}
	return store, nil
}
