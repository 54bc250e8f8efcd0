package postgres

import (
	"database/sql"
	"fmt"

	// Postgres driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// DB is the postgres implementation of store.Driver.
type DB struct {
	db *sql.DB
}

// NewDB opens a postgres connection with the given DSN.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn required")
	}
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return &DB{db: sqldb}, nil
}

// GetDB returns the raw handle.
func (d *DB) GetDB() any {
	return d.db
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// placeholder returns the n-th positional parameter, e.g. $1.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
