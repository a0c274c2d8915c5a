package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/biomatch-server/migrations"
)

// MigrationRunner applies the review queue schema
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// NewMigrationRunner uses migrationsPath on disk, or the embedded migrations when it is empty
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	var (
		m   *migrate.Migrate
		err error
	)

	if migrationsPath != "" {
		m, err = migrate.New("file://"+migrationsPath, databaseURL)
	} else {
		src, srcErr := iofs.New(migrations.FS, ".")
		if srcErr != nil {
			return nil, fmt.Errorf("opening embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, databaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}

	return &MigrationRunner{migrate: m, log: logger}, nil
}

// Up applies all pending migrations
func (mr *MigrationRunner) Up() error {
	mr.log.Info("Running database migrations up")
	if err := mr.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations up: %w", err)
	}
	mr.logVersion("Migrations applied")
	return nil
}

// Down rolls back steps migrations
func (mr *MigrationRunner) Down(steps int) error {
	if steps < 1 {
		steps = 1
	}
	mr.log.WithField("steps", steps).Info("Rolling back migrations")
	if err := mr.migrate.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	mr.logVersion("Migrations rolled back")
	return nil
}

func (mr *MigrationRunner) logVersion(msg string) {
	version, dirty, err := mr.migrate.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		mr.log.Info(msg + " (no schema version)")
	case err != nil:
		mr.log.WithError(err).Warn("Could not read migration version")
	default:
		mr.log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info(msg)
	}
}

// Version returns the current schema version
func (mr *MigrationRunner) Version() (uint, bool, error) {
	return mr.migrate.Version()
}

// Close releases the source and database handles
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}
