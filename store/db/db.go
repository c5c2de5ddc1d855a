// Package db provides the database driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/store"
	"github.com/todoflow/todoflow/store/db/postgres"
	"github.com/todoflow/todoflow/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
// PostgreSQL is the reference implementation for production; SQLite covers
// single-node and development deployments.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
