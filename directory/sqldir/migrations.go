package sqldir

import (
	"context"
	"embed"
	"path"

	"github.com/goliatone/go-errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = goose.UpContext

// Migrate creates or upgrades the users table for the directory's dialect
func (d *Directory) Migrate(ctx context.Context) error {
	gooseDialect := "sqlite3"
	if d.dialect == DialectPostgres {
		gooseDialect = "postgres"
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "unsupported migration dialect")
	}

	dir := path.Join("migrations", string(d.dialect))
	if err := gooseUpContext(ctx, d.db.DB, dir); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to run user directory migrations").
			WithMetadata(map[string]any{"dialect": string(d.dialect)})
	}
	return nil
}
