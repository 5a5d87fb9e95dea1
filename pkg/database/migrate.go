package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Migrate applies the idempotent schema bundled with the binary.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	schema, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
