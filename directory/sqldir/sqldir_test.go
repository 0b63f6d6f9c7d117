package sqldir_test

import (
	"context"
	"strings"
	"testing"

	auth "github.com/goliatone/go-pwauth"
	"github.com/goliatone/go-pwauth/directory/sqldir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDirectory(t *testing.T) *sqldir.Directory {
	t.Helper()

	dir, err := sqldir.Open(sqldir.DialectSQLite, "file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dir.Close() })

	require.NoError(t, dir.Migrate(context.Background()))
	return dir
}

func TestDirectory_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	dir := setupDirectory(t)

	_, err := dir.FindByIdentifier(ctx, "johndoe")
	assert.True(t, auth.IsNotFound(err))

	saved, err := dir.Save(ctx, auth.UserRecord{
		Identifier:     "johndoe",
		DisplayName:    "John Doe",
		Email:          "JohnDoe@Example.com",
		Active:         true,
		PasswordDigest: "$argon2id$digest",
	})
	require.NoError(t, err)
	assert.Equal(t, "johndoe", saved.Identifier)

	found, err := dir.FindByIdentifier(ctx, "johndoe")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, found.ID)
	assert.Equal(t, "John Doe", found.DisplayName)
	assert.Equal(t, "$argon2id$digest", found.PasswordDigest)
	assert.True(t, found.Active)

	byEmail, err := dir.FindByEmail(ctx, "johndoe@example.com")
	require.NoError(t, err)
	assert.Equal(t, "johndoe", byEmail.Identifier)

	// identifiers never match an email
	_, err = dir.FindByIdentifier(ctx, "johndoe@example.com")
	assert.True(t, auth.IsNotFound(err))

	_, err = dir.FindByEmail(ctx, "nobody@example.com")
	assert.True(t, auth.IsNotFound(err))

	_, err = dir.FindByEmail(ctx, "")
	assert.True(t, auth.IsNotFound(err))
}

func TestDirectory_UpsertKeepsID(t *testing.T) {
	ctx := context.Background()
	dir := setupDirectory(t)

	first, err := dir.Save(ctx, auth.UserRecord{Identifier: "johndoe", Active: true, PasswordDigest: "$a$1"})
	require.NoError(t, err)

	second, err := dir.Save(ctx, auth.UserRecord{Identifier: "johndoe", DisplayName: "Johnny", Active: true, PasswordDigest: "$a$2"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Johnny", second.DisplayName)
	assert.Equal(t, "$a$2", second.PasswordDigest)
}

func TestDirectory_SetActiveAndDelete(t *testing.T) {
	ctx := context.Background()
	dir := setupDirectory(t)

	_, err := dir.Save(ctx, auth.UserRecord{Identifier: "johndoe", Active: true, PasswordDigest: "$a$1"})
	require.NoError(t, err)

	require.NoError(t, dir.SetActive(ctx, "johndoe", false))
	found, err := dir.FindByIdentifier(ctx, "johndoe")
	require.NoError(t, err)
	assert.False(t, found.Active)

	assert.True(t, auth.IsNotFound(dir.SetActive(ctx, "nobody", false)))

	require.NoError(t, dir.Delete(ctx, "johndoe"))
	_, err = dir.FindByIdentifier(ctx, "johndoe")
	assert.True(t, auth.IsNotFound(err))
}

func TestDirectory_MigrateIsIdempotent(t *testing.T) {
	dir := setupDirectory(t)
	assert.NoError(t, dir.Migrate(context.Background()))
}

func TestOpen_UnknownDialect(t *testing.T) {
	_, err := sqldir.Open("oracle", "dsn")
	assert.Error(t, err)
}
