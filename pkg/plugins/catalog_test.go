package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Register(t *testing.T) {
	c := NewCatalog()
	factory := func() Plugin { return &minimal{} }

	require.NoError(t, c.Register("b", factory))
	require.NoError(t, c.Register("a", factory))

	assert.Error(t, c.Register("a", factory), "duplicate")
	assert.Error(t, c.Register("", factory))
	assert.Error(t, c.Register("nil", nil))

	assert.Equal(t, []string{"a", "b"}, c.Names())

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.IsType(t, &minimal{}, got())

	require.NoError(t, c.Unregister("a"))
	assert.ErrorIs(t, c.Unregister("a"), ErrFactoryNotFound)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestCatalogLoader(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register("known", func() Plugin { return &minimal{} }))

	l := NewCatalogLoader(c)
	assert.Equal(t, RuntimeBuiltin, l.Runtime())

	factory, err := l.LoadPackage(context.Background(), &Package{Manifest: &Manifest{Factory: "known"}})
	require.NoError(t, err)
	assert.NotNil(t, factory())

	_, err = l.LoadPackage(context.Background(), &Package{Manifest: &Manifest{Factory: "unknown"}})
	assert.ErrorIs(t, err, ErrFactoryNotFound)
}

func TestCatalogLoader_DefaultCatalog(t *testing.T) {
	l := NewCatalogLoader(nil)
	assert.Same(t, DefaultCatalog(), l.catalog)
}
