// Package database provides SQLite storage for netstated.
//
// The daemon persists its network event log here so the history survives
// restarts and can be served by the API. The package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Applying versioned schema migrations from an fs.FS
//   - Health checks and lifecycle management
//
// The database file is created with 0600 permissions and all queries use
// parameterised statements.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
package database
