package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/procost/enquiry-api/internal/config"
	"github.com/procost/enquiry-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalStorage_PutGetDelete(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	size, err := store.Put(ctx, "a/b/c.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	// Put replaces
	_, err = store.Put(ctx, "a/b/c.txt", "text/plain", strings.NewReader("bye"))
	require.NoError(t, err)

	rc, err := store.Get(ctx, "a/b/c.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "bye", string(data))

	require.NoError(t, store.Delete(ctx, "a/b/c.txt"))
	require.NoError(t, store.Delete(ctx, "a/b/c.txt"))

	_, err = store.Get(ctx, "a/b/c.txt")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestLocalStorage_RejectsEscapingNames(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside.txt", "text/plain", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestNewStorage_UnknownMode(t *testing.T) {
	_, err := storage.NewStorage(&config.StorageConfig{Mode: "tape"}, zap.NewNop())
	assert.Error(t, err)

	_, err = storage.NewStorage(&config.StorageConfig{Mode: "azure"}, zap.NewNop())
	assert.Error(t, err)
}

func TestEmailArchive(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	archive := storage.NewEmailArchive(store)
	received := time.Date(2025, 3, 4, 23, 30, 0, 0, time.UTC)

	name, err := archive.Archive(context.Background(), received, "<m1@mail>", "<html><p>hi</p></html>")
	require.NoError(t, err)
	assert.Equal(t, storage.ArchiveName(received, "<m1@mail>"), name)
	assert.True(t, strings.HasPrefix(name, "emails/2025/03/04/"))
	assert.True(t, strings.HasSuffix(name, ".eml"))

	rc, err := store.Get(context.Background(), name)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "<html><p>hi</p></html>", string(data))

	require.NoError(t, archive.Discard(context.Background(), name))
	_, err = store.Get(context.Background(), name)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	require.NoError(t, archive.Discard(context.Background(), name))
}
