package boltdir_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	auth "github.com/goliatone/go-pwauth"
	"github.com/goliatone/go-pwauth/directory/boltdir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDirectory(t *testing.T) (*boltdir.Directory, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.db")
	dir, err := boltdir.Open(path)
	require.NoError(t, err)
	return dir, path
}

func TestOpen_CreatesFile(t *testing.T) {
	dir, path := openDirectory(t)
	defer dir.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestDirectory_SaveFindAndPersist(t *testing.T) {
	ctx := context.Background()
	dir, path := openDirectory(t)

	_, err := dir.FindByIdentifier(ctx, "johndoe")
	assert.True(t, auth.IsNotFound(err))

	saved, err := dir.Save(ctx, auth.UserRecord{
		Identifier:     "johndoe",
		DisplayName:    "John Doe",
		Email:          "johndoe@example.com",
		Active:         true,
		PasswordDigest: "$argon2id$digest",
	})
	require.NoError(t, err)

	byEmail, err := dir.FindByEmail(ctx, "JohnDoe@example.com")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byEmail.ID)

	require.NoError(t, dir.Close())

	reopened, err := boltdir.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	found, err := reopened.FindByIdentifier(ctx, "johndoe")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, found.ID)
	assert.Equal(t, "John Doe", found.DisplayName)
	assert.True(t, found.Active)
}

func TestDirectory_EmailChangeMovesIndex(t *testing.T) {
	ctx := context.Background()
	dir, _ := openDirectory(t)
	defer dir.Close()

	_, err := dir.Save(ctx, auth.UserRecord{Identifier: "johndoe", Email: "old@example.com", Active: true, PasswordDigest: "$a$1"})
	require.NoError(t, err)
	_, err = dir.Save(ctx, auth.UserRecord{Identifier: "johndoe", Email: "new@example.com", Active: true, PasswordDigest: "$a$1"})
	require.NoError(t, err)

	_, err = dir.FindByEmail(ctx, "old@example.com")
	assert.True(t, auth.IsNotFound(err))

	found, err := dir.FindByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "johndoe", found.Identifier)
}

func TestDirectory_SetActiveAndDelete(t *testing.T) {
	ctx := context.Background()
	dir, _ := openDirectory(t)
	defer dir.Close()

	_, err := dir.Save(ctx, auth.UserRecord{Identifier: "johndoe", Email: "johndoe@example.com", Active: true, PasswordDigest: "$a$1"})
	require.NoError(t, err)

	require.NoError(t, dir.SetActive(ctx, "johndoe", false))
	found, err := dir.FindByIdentifier(ctx, "johndoe")
	require.NoError(t, err)
	assert.False(t, found.Active)

	assert.True(t, auth.IsNotFound(dir.SetActive(ctx, "nobody", true)))

	require.NoError(t, dir.Delete(ctx, "johndoe"))
	_, err = dir.FindByEmail(ctx, "johndoe@example.com")
	assert.True(t, auth.IsNotFound(err))
	assert.NoError(t, dir.Delete(ctx, "johndoe"))
}

func TestOpen_InvalidPath(t *testing.T) {
	dir, err := boltdir.Open(filepath.Join(t.TempDir(), "missing", "users.db"))
	assert.Error(t, err)
	assert.Nil(t, dir)
}

func TestDirectory_FindByIdentifierIsExact(t *testing.T) {
	ctx := context.Background()
	dir, _ := openDirectory(t)
	defer dir.Close()

	_, err := dir.Save(ctx, auth.UserRecord{Identifier: "johndoe", Email: "johndoe@example.com", Active: true, PasswordDigest: "$a$1"})
	require.NoError(t, err)

	_, err = dir.FindByIdentifier(ctx, "johndoe@example.com")
	assert.True(t, auth.IsNotFound(err))
}

func TestDirectory_DeleteKeepsEmailOwnedByAnotherUser(t *testing.T) {
	ctx := context.Background()
	dir, _ := openDirectory(t)
	defer dir.Close()

	_, err := dir.Save(ctx, auth.UserRecord{Identifier: "alice", Email: "shared@example.com", Active: true, PasswordDigest: "$a$1"})
	require.NoError(t, err)
	// bob takes over the address, the index now points at bob
	_, err = dir.Save(ctx, auth.UserRecord{Identifier: "bob", Email: "shared@example.com", Active: true, PasswordDigest: "$a$1"})
	require.NoError(t, err)

	require.NoError(t, dir.Delete(ctx, "alice"))

	found, err := dir.FindByEmail(ctx, "shared@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bob", found.Identifier)
}

func TestDirectory_EmailChangeKeepsAddressTakenOver(t *testing.T) {
	ctx := context.Background()
	dir, _ := openDirectory(t)
	defer dir.Close()

	_, err := dir.Save(ctx, auth.UserRecord{Identifier: "alice", Email: "shared@example.com", Active: true, PasswordDigest: "$a$1"})
	require.NoError(t, err)
	_, err = dir.Save(ctx, auth.UserRecord{Identifier: "bob", Email: "shared@example.com", Active: true, PasswordDigest: "$a$1"})
	require.NoError(t, err)

	_, err = dir.Save(ctx, auth.UserRecord{Identifier: "alice", Email: "alice@example.com", Active: true, PasswordDigest: "$a$1"})
	require.NoError(t, err)

	found, err := dir.FindByEmail(ctx, "shared@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bob", found.Identifier)
}
