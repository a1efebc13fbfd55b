package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens (or creates) a local SQLite database file and applies pending migrations.
// Migrations are the goose-annotated .sql files under internal/db/migrations.
// Use RollbackLast to revert the last applied migration.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		path = "certificates.db"
	}
	d, err := sql.Open("sqlite3", withConnParams(path))
	if err != nil {
		return nil, err
	}
	if isMemory(path) {
		// Shared-cache memory databases fail with SQLITE_LOCKED under concurrent pooled connections.
		d.SetMaxOpenConns(1)
	}
	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, err
	}
	// journal_mode may not be supported in some contexts (e.g., in-memory). Ignore errors.
	_, _ = d.Exec(`PRAGMA journal_mode=WAL`)
	if err := Migrate(context.Background(), d); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// withConnParams adds the per-connection pragmas as DSN parameters so that
// every pooled connection gets them, not only the first one.
func withConnParams(path string) string {
	params := []string{"_busy_timeout=5000", "_foreign_keys=on"}
	var add []string
	for _, p := range params {
		if !strings.Contains(path, strings.SplitN(p, "=", 2)[0]+"=") {
			add = append(add, p)
		}
	}
	if len(add) == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(add, "&")
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

func setupGoose() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	return goose.SetDialect("sqlite3")
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, d *sql.DB) error {
	if d == nil {
		return errors.New("nil db")
	}
	if err := setupGoose(); err != nil {
		return err
	}
	return goose.UpContext(ctx, d, "migrations")
}

// RollbackLast rolls back the most recently applied migration.
func RollbackLast(ctx context.Context, d *sql.DB) error {
	if d == nil {
		return errors.New("nil db")
	}
	if err := setupGoose(); err != nil {
		return err
	}
	return goose.DownContext(ctx, d, "migrations")
}

// Version reports the current schema version.
func Version(ctx context.Context, d *sql.DB) (int64, error) {
	if err := setupGoose(); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, d)
}
