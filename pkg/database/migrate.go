package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations
var migrationFS embed.FS

// ErrNoChange is returned when Up/Down has nothing to do.
var ErrNoChange = migrate.ErrNoChange

// Migrate applies the embedded migrations for db's driver in the given
// direction ("up" or "down"). The caller keeps ownership of db.
func Migrate(ctx context.Context, db *sqlx.DB, direction string) error {
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	var (
		dir     string
		name    string
		target  migratedb.Driver
		release func() error
	)
	switch db.DriverName() {
	case DriverSQLite:
		drv, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
		if err != nil {
			return fmt.Errorf("migrate sqlite driver: %w", err)
		}
		dir, name, target = "migrations/sqlite", "sqlite", drv
		release = func() error { return nil }
	case DriverPostgres, DriverPgx:
		// a dedicated connection so closing the driver leaves the pool open
		conn, err := db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("migrate conn: %w", err)
		}
		drv, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			conn.Close()
			return fmt.Errorf("migrate postgres driver: %w", err)
		}
		dir, name, target = "migrations/postgres", "postgres", drv
		release = drv.Close
	default:
		return fmt.Errorf("no migrations for driver %q", db.DriverName())
	}
	defer release()

	src, err := iofs.New(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	defer src.Close()

	m, err := migrate.NewWithInstance("iofs", src, name, target)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
