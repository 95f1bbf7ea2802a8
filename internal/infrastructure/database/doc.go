// Package database provides SQLite persistence for ShowSync Core.
//
// It wraps database/sql with lifecycle management (directory creation, WAL
// mode, busy timeout, restricted file permissions), health checks, and an
// embedded-migration runner.
//
// The dispatch log is the only writer; SQLite's single-writer model fits the
// scheduler's serial dispatch ordering, so the pool is capped at one open
// connection.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil { ... }
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil { ... }
package database
