package postgres

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"

	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every pending migration in migrations/ to db, the step
// SchemaValidator's startup check assumes has already run (spec.md §11.1).
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "setting goose dialect")
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "running postgres migrations")
	}
	return nil
}
