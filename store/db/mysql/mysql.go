package mysql

import (
	"database/sql"

	// MySQL driver.
	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// DB is the mysql implementation of store.Driver.
type DB struct {
	db *sql.DB
}

// NewDB opens a mysql connection with the given DSN.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn required")
	}
	sqldb, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
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
