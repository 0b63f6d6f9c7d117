// Package sqldir is a UserDirectory backed by a SQL users table through bun.
// SQLite and PostgreSQL are supported; the schema ships as embedded goose
// migrations.
package sqldir

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-pwauth"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Dialect names a supported database
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// UserModel is the Bun model for the users table.
type UserModel struct {
	bun.BaseModel `bun:"table:users"`

	ID             uuid.UUID  `bun:"id,pk,type:uuid"`
	Identifier     string     `bun:"identifier,notnull,unique"`
	DisplayName    string     `bun:"display_name,notnull"`
	Email          string     `bun:"email,notnull"`
	Active         bool       `bun:"active,notnull"`
	PasswordDigest string     `bun:"password_digest,notnull"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

// Directory implements auth.UserDirectory using Bun.
type Directory struct {
	db      *bun.DB
	dialect Dialect
	now     func() time.Time
}

var (
	_ auth.UserDirectory  = (*Directory)(nil)
	_ auth.EmailDirectory = (*Directory)(nil)
)

// New wraps an existing bun.DB
func New(db *bun.DB, dialect Dialect) *Directory {
	return &Directory{db: db, dialect: dialect, now: time.Now}
}

// Open connects to dsn with the driver matching dialect
func Open(dialect Dialect, dsn string) (*Directory, error) {
	switch dialect {
	case DialectSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite database")
		}
		// a single connection keeps :memory: databases alive and serialises writes
		sqldb.SetMaxOpenConns(1)
		return New(bun.NewDB(sqldb, sqlitedialect.New()), dialect), nil
	case DialectPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open postgres database")
		}
		return New(bun.NewDB(sqldb, pgdialect.New()), dialect), nil
	default:
		return nil, errors.New("unsupported sql dialect", errors.CategoryBadInput).
			WithMetadata(map[string]any{"dialect": string(dialect)})
	}
}

// DB returns the underlying bun.DB
func (d *Directory) DB() *bun.DB {
	return d.db
}

// Close closes the database
func (d *Directory) Close() error {
	return d.db.Close()
}

// FindByIdentifier looks the user up by identifier
func (d *Directory) FindByIdentifier(ctx context.Context, identifier string) (*auth.UserRecord, error) {
	return d.findWhere(ctx, "identifier = ?", identifier)
}

// FindByEmail looks the user up by a case insensitive email match
func (d *Directory) FindByEmail(ctx context.Context, email string) (*auth.UserRecord, error) {
	if email == "" {
		return nil, auth.ErrUserNotFound
	}
	return d.findWhere(ctx, "LOWER(email) = LOWER(?)", email)
}

func (d *Directory) findWhere(ctx context.Context, query string, arg string) (*auth.UserRecord, error) {
	model := &UserModel{}
	err := d.db.NewSelect().
		Model(model).
		Where(query, arg).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}

	return toRecord(model), nil
}

// Save inserts record or updates the row with the same identifier
func (d *Directory) Save(ctx context.Context, record auth.UserRecord) (*auth.UserRecord, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	model := fromRecord(record)
	now := d.now().UTC()
	if model.ID == uuid.Nil {
		model.ID = uuid.New()
	}
	if model.CreatedAt == nil {
		model.CreatedAt = &now
	}
	model.UpdatedAt = &now

	_, err := d.db.NewInsert().
		Model(model).
		On("CONFLICT (identifier) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("email = EXCLUDED.email").
		Set("active = EXCLUDED.active").
		Set("password_digest = EXCLUDED.password_digest").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return d.FindByIdentifier(ctx, record.Identifier)
}

// SetActive flips the active flag for identifier
func (d *Directory) SetActive(ctx context.Context, identifier string, active bool) error {
	res, err := d.db.NewUpdate().
		Model((*UserModel)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", d.now().UTC()).
		Where("identifier = ?", identifier).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// Delete removes identifier
func (d *Directory) Delete(ctx context.Context, identifier string) error {
	_, err := d.db.NewDelete().
		Model((*UserModel)(nil)).
		Where("identifier = ?", identifier).
		Exec(ctx)
	return err
}

func toRecord(m *UserModel) *auth.UserRecord {
	return &auth.UserRecord{
		ID:             m.ID,
		Identifier:     m.Identifier,
		DisplayName:    m.DisplayName,
		Email:          m.Email,
		Active:         m.Active,
		PasswordDigest: m.PasswordDigest,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func fromRecord(r auth.UserRecord) *UserModel {
	return &UserModel{
		ID:             r.ID,
		Identifier:     r.Identifier,
		DisplayName:    r.DisplayName,
		Email:          r.Email,
		Active:         r.Active,
		PasswordDigest: r.PasswordDigest,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
