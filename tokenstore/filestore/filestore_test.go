package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/rally-session/identity"
	"github.com/jrsteele09/rally-session/internal/utils"
	"github.com/jrsteele09/rally-session/tokenstore"
	"github.com/jrsteele09/rally-session/tokenstore/filestore"
	"github.com/stretchr/testify/require"
)

func TestStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	first, err := filestore.New(path)
	require.NoError(t, err)
	require.NoError(t, tokenstore.New(first).Write(ctx, identity.Team, "tok1",
		tokenstore.Metadata{TeamID: utils.Ptr(3), TeamName: "Team Gamma"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := filestore.New(path)
	require.NoError(t, err)
	entry, err := tokenstore.New(second).Read(ctx, identity.Team)
	require.NoError(t, err)
	require.Equal(t, "tok1", entry.Token)
	require.Equal(t, "Team Gamma", entry.Metadata.TeamName)
}

func TestStore_DeleteRemovesKeys(t *testing.T) {
	ctx := context.Background()
	store, err := filestore.New(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, map[string]string{"a": "1", "b": "2", "c": "3"}))
	require.NoError(t, store.Delete(ctx, "a", "b", "missing"))

	_, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, found)

	value, found, err := store.Get(ctx, "c")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "3", value)
}

func TestStore_CorruptFileReadsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0600))

	store, err := filestore.New(path)
	require.NoError(t, err)

	_, found, err := store.Get(ctx, "rally_token")
	require.NoError(t, err)
	require.False(t, found)

	// The next write replaces the corrupt content
	require.NoError(t, store.Put(ctx, map[string]string{"rally_token": "tok"}))
	value, found, err := store.Get(ctx, "rally_token")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "tok", value)
}

func TestStore_MissingFileReadsEmpty(t *testing.T) {
	store, err := filestore.New(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "rally_token"))
	_, err = os.Stat(store.Path())
	require.True(t, os.IsNotExist(err), "deleting nothing must not create the file")
}
