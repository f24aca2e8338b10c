package blobstore

import (
	"context"
	"testing"

	"graphitti-backend/domain/versioning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, "mem://")
	require.NoError(t, err)
	defer store.Close()

	payload := []byte(`{"concepts":[{"id":"c1"}]}`)
	locator, err := store.Store(ctx, "id-1", "full_graph_20260829T120000Z", payload, versioning.SnapshotTypeFullGraph)
	require.NoError(t, err)
	assert.NotEmpty(t, locator)

	loaded, err := store.Load(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, payload, loaded)

	size, err := store.Size(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), size)
}

func TestStore_SameVersionDistinctIDs(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, "mem://")
	require.NoError(t, err)
	defer store.Close()

	version := "full_graph_20260829T120000Z"
	first, err := store.Store(ctx, "id-1", version, []byte("one"), versioning.SnapshotTypeFullGraph)
	require.NoError(t, err)
	second, err := store.Store(ctx, "id-2", version, []byte("two"), versioning.SnapshotTypeFullGraph)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	loaded, err := store.Load(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), loaded)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, "mem://")
	require.NoError(t, err)
	defer store.Close()

	locator, err := store.Store(ctx, "id-1", "daily_backup_20260829T120000Z", []byte("x"), versioning.SnapshotTypeDailyBackup)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, locator))

	_, err = store.Load(ctx, locator)
	assert.Error(t, err)
}
