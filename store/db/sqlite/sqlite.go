package sqlite

import (
	"database/sql"

	"github.com/pkg/errors"
	// Pure-Go sqlite driver.
	_ "modernc.org/sqlite"
)

// DB is the sqlite implementation of store.Driver.
type DB struct {
	db *sql.DB
}

// NewDB opens the sqlite database at dsn.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("sqlite dsn required")
	}
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY.
	sqldb.SetMaxOpenConns(1)
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
