package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "nested", "plugin_config.json"))

	_, err := store.Read(ctx)
	assert.ErrorIs(t, err, ErrNotExist)

	require.NoError(t, store.Write(ctx, []byte(`{"a":1}`)))
	require.NoError(t, store.Write(ctx, []byte(`{"a":2}`)))

	data, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "plugin_config.json", entries[0].Name())

	assert.Equal(t, "file:"+store.Path(), store.String())
}

func TestFileStore_FailedWriteKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin_config.json")
	store := NewFileStore(path)
	require.NoError(t, store.Write(ctx, []byte("old")))

	// A directory at the rename target makes the final step fail.
	blocked := NewFileStore(filepath.Join(dir, "blocked"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blocked", "child"), 0755))
	require.Error(t, blocked.Write(ctx, []byte("new")))

	data, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestFileStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewFileStore(filepath.Join(t.TempDir(), "plugin_config.json"))
	assert.ErrorIs(t, store.Write(ctx, []byte("x")), context.Canceled)
	_, err := store.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ""), mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniredisStore(t)

	assert.Equal(t, "redis:"+DefaultRedisKey, store.String())
	require.NoError(t, store.Ping(ctx))

	_, err := store.Read(ctx)
	assert.ErrorIs(t, err, ErrNotExist)

	require.NoError(t, store.Write(ctx, []byte(`{"plugins":{}}`)))

	raw, err := mr.Get(DefaultRedisKey)
	require.NoError(t, err)
	assert.Equal(t, `{"plugins":{}}`, raw)

	data, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"plugins":{}}`, string(data))
}

func TestRedisStore_RegistryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newMiniredisStore(t)

	first := newTestRegistry(t, store)
	require.NoError(t, first.Load(ctx))
	_, err := first.Register(ctx, "datetime", map[string]any{"include_seconds": true})
	require.NoError(t, err)

	second := newTestRegistry(t, store)
	require.NoError(t, second.Load(ctx))
	assert.Equal(t, first.Snapshot(), second.Snapshot())
	assert.True(t, second.IsEnabled("datetime"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniredisStore(t)
	mr.Close()

	reg := newTestRegistry(t, store)
	require.Error(t, reg.Load(ctx))
	assert.True(t, reg.IsKnown(DefaultPluginName), "registry usable after read failure")
	assert.Error(t, reg.Ping(ctx))
}

func TestDialRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	store, err := DialRedisStore(ctx, "redis://"+mr.Addr()+"/0", "custom")
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "redis:custom", store.String())

	_, err = DialRedisStore(ctx, "not a url", "")
	assert.Error(t, err)
}
