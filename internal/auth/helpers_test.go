package auth

import (
	"context"
	"database/sql"
	"testing"

	"github.com/nerrad567/overlay-core/internal/infrastructure/database"
	"github.com/nerrad567/overlay-core/migrations"
)

// testDB returns a migrated in-memory database.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

// seedOperator creates an active operator whose password is "password123".
func seedOperator(t *testing.T, repo OperatorRepository, username string, role Role) *Operator {
	t.Helper()

	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	op := &Operator{Username: username, PasswordHash: hash, Role: role, IsActive: true}
	if err := repo.Create(context.Background(), op); err != nil {
		t.Fatalf("creating operator %s: %v", username, err)
	}
	return op
}
