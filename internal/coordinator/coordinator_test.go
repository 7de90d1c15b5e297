package coordinator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajramos/chatfolders/internal/folders"
	"github.com/ajramos/chatfolders/internal/services"
	"github.com/ajramos/chatfolders/internal/store"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "folders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st, nil)
}

func TestSetState_PersistsAndBroadcasts(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	id, ch := c.Subscribe()
	defer c.Unsubscribe(id)

	require.NoError(t, c.SetState(ctx, false))

	enabled, err := c.GetState(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	b := <-ch
	assert.Equal(t, services.BroadcastStateChanged, b.Kind)
	assert.False(t, b.Enabled)
}

func TestUpdateFolders_PersistsAndBroadcasts(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	id, ch := c.Subscribe()
	defer c.Unsubscribe(id)

	custom := folders.NewUserFolder("Моя")
	list := append(folders.DefaultList(), custom)
	require.NoError(t, c.UpdateFolders(ctx, list))

	got, err := c.GetFolders(ctx)
	require.NoError(t, err)
	assert.True(t, folders.ContainsID(got, custom.ID))

	b := <-ch
	assert.Equal(t, services.BroadcastFoldersChanged, b.Kind)
	assert.True(t, folders.ContainsID(b.Folders, custom.ID))
}

func TestUpdateFolders_RejectsInvalidData(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	err := c.UpdateFolders(ctx, []folders.Folder{{ID: "", Name: ""}})
	assert.ErrorIs(t, err, services.ErrDataInvalid)

	// The stored list is untouched.
	got, err := c.GetFolders(ctx)
	require.NoError(t, err)
	assert.Equal(t, folders.FolderAll, got[0].ID)
}

func TestUpdateFolders_NormalizesBeforeSaving(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.UpdateFolders(ctx, []folders.Folder{
		{ID: "custom", Name: "Моя"},
		{ID: folders.FolderAll, Name: "Все"},
	}))

	got, err := c.GetFolders(ctx)
	require.NoError(t, err)
	assert.Equal(t, folders.FolderAll, got[0].ID)
	assert.True(t, folders.ContainsID(got, folders.FolderClients))
}

func TestUpdateFolders_ResetsStaleSelection(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	custom := folders.NewUserFolder("Моя")
	require.NoError(t, c.UpdateFolders(ctx, append(folders.DefaultList(), custom)))
	require.NoError(t, c.SetSelectedFolder(ctx, custom.ID))

	// The custom folder is deleted elsewhere.
	require.NoError(t, c.UpdateFolders(ctx, folders.DefaultList()))

	sel, err := c.GetSelectedFolder(ctx)
	require.NoError(t, err)
	assert.Equal(t, folders.FolderAll, sel)
}

func TestSetSelectedFolder_NotBroadcast(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	id, ch := c.Subscribe()
	defer c.Unsubscribe(id)

	require.NoError(t, c.SetSelectedFolder(ctx, folders.FolderClients))

	select {
	case b := <-ch:
		t.Fatalf("unexpected broadcast %v", b.Kind)
	default:
	}

	sel, err := c.GetSelectedFolder(ctx)
	require.NoError(t, err)
	assert.Equal(t, folders.FolderClients, sel)
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	c := newTestCoordinator(t)
	id, ch := c.Subscribe()
	c.Unsubscribe(id)
	c.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)

	// Broadcasting with no subscribers is a no-op.
	require.NoError(t, c.SetState(context.Background(), true))
}

func TestBroadcast_DoesNotBlockOnSlowSubscriber(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	id, _ := c.Subscribe()
	defer c.Unsubscribe(id)

	// Overflow the subscriber buffer; SetState must keep returning.
	for i := 0; i < 40; i++ {
		require.NoError(t, c.SetState(ctx, i%2 == 0))
	}
}
