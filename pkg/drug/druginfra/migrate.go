package druginfra

import (
	"embed"
	"errors"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/logx"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the drug_content migrations. The drugs and drug_labels
// tables belong to the catalog service and are never touched here.
func Migrate(db *sqlx.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errx.Wrap(err, "migration up failed", errx.TypeInternal)
	}
	version, dirty, _ := m.Version()
	logx.Component("druginfra").WithFields(logx.Fields{"version": version, "dirty": dirty}).Info("migrations applied")
	return nil
}

// MigrateDown rolls back the last applied migration.
func MigrateDown(db *sqlx.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errx.Wrap(err, "migration down failed", errx.TypeInternal)
	}
	return nil
}

func newMigrator(db *sqlx.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, errx.Wrap(err, "failed to open embedded migrations", errx.TypeInternal)
	}
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{MigrationsTable: "drug_content_migrations"})
	if err != nil {
		return nil, errx.Wrap(err, "migration driver error", errx.TypeInternal)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, errx.Wrap(err, "migration instance error", errx.TypeInternal)
	}
	return m, nil
}
