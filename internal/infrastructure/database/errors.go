package database

import "errors"

var (
	// ErrNoPath is returned by Open when no database path is configured.
	ErrNoPath = errors.New("database: no path configured")

	// ErrMigrationMissing is returned when an applied migration has no file.
	ErrMigrationMissing = errors.New("database: applied migration not found")

	// ErrNoDownMigration is returned when rolling back a migration without down SQL.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")
)
