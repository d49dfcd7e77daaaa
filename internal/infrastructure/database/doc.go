// Package database provides SQLite connectivity and schema migrations.
//
// The timeline is a small, single-writer dataset, so the pool holds one
// connection and every transaction takes the write lock up front
// (BEGIN IMMEDIATE). Concurrent operator actions therefore serialise in the
// database; the loser waits up to busy_timeout and then fails atomically.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are pairs of YYYYMMDD_HHMMSS_name.up.sql and .down.sql files,
// recorded in schema_migrations once applied.
package database
