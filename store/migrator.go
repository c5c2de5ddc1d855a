package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

//go:embed migration
var migrationFS embed.FS

// Migrate initializes the schema on a fresh database. Upgrades are applied as
// full-schema rewrites of LATEST.sql per driver; the schema is small enough
// that incremental migration files are not worth their bookkeeping yet.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		return nil
	}

	schemaPath := fmt.Sprintf("migration/%s/LATEST.sql", s.profile.Driver)
	buf, err := migrationFS.ReadFile(schemaPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema %q", schemaPath)
	}

	if _, err := s.driver.GetDB().ExecContext(ctx, string(buf)); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}

	slog.Info("database initialized", "driver", s.profile.Driver)
	return nil
}
