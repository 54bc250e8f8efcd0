// Package db provides the database driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/openseek/openseek/server/profile"
	"github.com/openseek/openseek/store"
	"github.com/openseek/openseek/store/db/mysql"
	"github.com/openseek/openseek/store/db/postgres"
	"github.com/openseek/openseek/store/db/sqlite"
)

// NewDriver creates a store driver based on the profile's database settings.
func NewDriver(p *profile.Profile) (store.Driver, error) {
	switch p.Driver {
	case "sqlite":
		return sqlite.NewDB(p.DSN)
	case "postgres":
		return postgres.NewDB(p.DSN)
	case "mysql":
		return mysql.NewDB(p.DSN)
	default:
		return nil, errors.Errorf("unknown db driver %q", p.Driver)
	}
}
