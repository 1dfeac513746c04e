package fakeuserrepo_test

import (
	"testing"
	"time"

	autherrors "github.com/jrsteele09/rally-session/internal/errors"
	"github.com/jrsteele09/rally-session/users"
	fakeuserrepo "github.com/jrsteele09/rally-session/users/repofake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()

	hash, err := users.HashPassword("s3cret")
	require.NoError(t, err)
	ana := &users.User{Username: "Ana", PasswordHash: hash, Scopes: []string{"admin"}}
	require.NoError(t, repo.Upsert(ana))
	require.Equal(t, 1, ana.ID)
	assert.Equal(t, "1", ana.Subject())
	assert.False(t, ana.DateJoined.IsZero())

	found, err := repo.GetByUsername("ana")
	require.NoError(t, err)
	assert.True(t, found.CheckPassword("s3cret"))
	assert.False(t, found.CheckPassword("S3CRET"))
	assert.True(t, found.IsAdmin())

	_, err = repo.GetByUsername("bob")
	require.ErrorIs(t, err, autherrors.ErrUserNotFound)

	// Upserting the same username updates the existing account
	require.NoError(t, repo.Upsert(&users.User{Username: "ana", Name: "Ana Staff"}))
	list, err := repo.List(0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana Staff", list[0].Name)

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetLastLogin(1, at))
	got, err := repo.GetByID(1)
	require.NoError(t, err)
	assert.Equal(t, at, got.LastLogin)
	require.ErrorIs(t, repo.SetLastLogin(42, at), autherrors.ErrUserNotFound)
}
