package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajramos/chatfolders/internal/folders"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "folders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_ValidationErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, "")
	assert.Error(t, err)

	_, err = Open(ctx, "../../etc/passwd.db")
	assert.Error(t, err)
}

func TestFolders_SeedsDefaultsOnFirstRun(t *testing.T) {
	s := openTestStore(t)
	list, err := s.Folders(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, folders.FolderAll, list[0].ID)
}

func TestSaveFolders_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	list := folders.DefaultList()
	f := folders.Find(list, folders.FolderClients)
	require.NotNil(t, f)
	f.Chats = append(f.Chats, folders.ChatRef{Name: "123456 Иван", AutoAdded: true})

	require.NoError(t, s.SaveFolders(ctx, list))

	got, err := s.Folders(ctx)
	require.NoError(t, err)
	clients := folders.Find(got, folders.FolderClients)
	require.NotNil(t, clients)
	require.Len(t, clients.Chats, 1)
	assert.Equal(t, folders.DisplayName("123456 Иван"), clients.Chats[0].Name)
	assert.True(t, clients.Chats[0].AutoAdded)
}

func TestOpen_MigratesStoredFolders(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "folders.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	// Simulate an older dataset missing system folders and with "all" out
	// of position.
	require.NoError(t, s.SaveFolders(ctx, []folders.Folder{
		{ID: "custom", Name: "Моя"},
		{ID: folders.FolderAll, Name: "Все"},
	}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	list, err := s.Folders(ctx)
	require.NoError(t, err)
	assert.Equal(t, folders.FolderAll, list[0].ID)
	for _, id := range []string{folders.FolderPrivate, folders.FolderClients, folders.FolderOthers, "custom"} {
		assert.True(t, folders.ContainsID(list, id), "missing %s", id)
	}
}

func TestSelectedFolder_DefaultsToAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sel, err := s.SelectedFolder(ctx)
	require.NoError(t, err)
	assert.Equal(t, folders.FolderAll, sel)

	require.NoError(t, s.SetSelectedFolder(ctx, folders.FolderClients))
	sel, err = s.SelectedFolder(ctx)
	require.NoError(t, err)
	assert.Equal(t, folders.FolderClients, sel)
}

func TestEnabled_DefaultsTrue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	enabled, err := s.Enabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, s.SetEnabled(ctx, false))
	enabled, err = s.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestFolders_DiscardsCorruptData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.set(ctx, keyFolders, "{not json"))

	list, err := s.Folders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, folders.FolderAll, list[0].ID)
}
