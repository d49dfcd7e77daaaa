package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Path: MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestOpen(t *testing.T) {
	t.Run("creates nested directory and file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "overlay.db")

		db, err := Open(context.Background(), Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("in memory", func(t *testing.T) {
		db := openTestDB(t)
		if db.Path() != MemoryPath {
			t.Errorf("Path() = %v, want %v", db.Path(), MemoryPath)
		}
	})

	t.Run("foreign keys enforced", func(t *testing.T) {
		db := openTestDB(t)
		ctx := context.Background()

		mustExec(t, db, `CREATE TABLE parent (id INTEGER PRIMARY KEY)`)
		mustExec(t, db, `CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER NOT NULL REFERENCES parent(id))`)

		if _, err := db.ExecContext(ctx, `INSERT INTO child (id, parent_id) VALUES (1, 99)`); err == nil {
			t.Error("expected foreign key violation")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(context.Background(), Config{Path: MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() after Close() should fail")
	}
}

func TestInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		db := openTestDB(t)
		mustExec(t, db, `CREATE TABLE runs (id INTEGER PRIMARY KEY, name TEXT)`)

		err := InTx(ctx, db.DB, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO runs (name) VALUES ('Any%')`)
			return err
		})
		if err != nil {
			t.Fatalf("InTx() error = %v", err)
		}

		if got := countRows(t, db, "runs"); got != 1 {
			t.Errorf("row count = %d, want 1", got)
		}
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db := openTestDB(t)
		mustExec(t, db, `CREATE TABLE runs (id INTEGER PRIMARY KEY, name TEXT)`)

		sentinel := errors.New("boom")
		err := InTx(ctx, db.DB, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `INSERT INTO runs (name) VALUES ('Any%')`); err != nil {
				return err
			}
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Fatalf("InTx() error = %v, want %v", err, sentinel)
		}

		if got := countRows(t, db, "runs"); got != 0 {
			t.Errorf("row count = %d, want 0 after rollback", got)
		}
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		db := openTestDB(t)
		mustExec(t, db, `CREATE TABLE runs (id INTEGER PRIMARY KEY, name TEXT)`)

		func() {
			defer func() {
				if recover() == nil {
					t.Error("expected panic to propagate")
				}
			}()
			_ = InTx(ctx, db.DB, func(tx *sql.Tx) error { //nolint:errcheck // panics
				if _, err := tx.ExecContext(ctx, `INSERT INTO runs (name) VALUES ('x')`); err != nil {
					return err
				}
				panic("mid-transaction")
			})
		}()

		if got := countRows(t, db, "runs"); got != 0 {
			t.Errorf("row count = %d, want 0 after panic", got)
		}
	})
}

func mustExec(t *testing.T, db *DB, query string) {
	t.Helper()
	if _, err := db.ExecContext(context.Background(), query); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}
