package tablestore

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func TestMigrateSQLiteIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", "file:migrate_idempotent?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := Migrate(ctx, db, DBSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Migrate(ctx, db, DBSQLite); err != nil {
		t.Fatalf("migrate second: %v", err)
	}

	var name string
	if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='table_rows'`).Scan(&name); err != nil {
		t.Fatalf("expected table_rows table: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 migrations applied, got %d", count)
	}
}

func TestMigrationHelpers(t *testing.T) {
	if _, err := dialectFor(DBPostgres); err != nil {
		t.Fatalf("expected postgres dialect, got %v", err)
	}
	if err := Migrate(context.Background(), &sql.DB{}, DBDriver("nope")); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if err := Migrate(context.Background(), nil, DBSQLite); err == nil {
		t.Fatalf("expected error for nil db")
	}

	files, err := migrationFiles("migrations/postgres")
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if len(files) != 2 || files[0] != "migrations/postgres/0001_table_rows.sql" {
		t.Fatalf("unexpected migration files: %v", files)
	}
}
