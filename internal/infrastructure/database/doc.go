// Package database provides SQLite connectivity for the fridge event log.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations from an embedded filesystem
//   - Connection lifecycle management
//
// The controller never restores its state from this database; the event
// log is an audit trail only.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are registered by the migrations package.
package database
