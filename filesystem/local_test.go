package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFullPath(t *testing.T) {
	root := t.TempDir()
	l, err := NewLocal(root)
	require.NoError(t, err)

	p, err := l.FullPath("product")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.Root(), "_product.liquid"), p)

	p, err = l.FullPath("shop/cart")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.Root(), "shop", "_cart.liquid"), p)

	for _, bad := range []string{"../secret", "/etc/passwd", ".hidden", "a b", ""} {
		_, err := l.FullPath(bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

func TestLocalPattern(t *testing.T) {
	l, err := NewLocal(t.TempDir(), WithPattern("%s.html"))
	require.NoError(t, err)
	p, err := l.FullPath("page")
	require.NoError(t, err)
	assert.Equal(t, "page.html", filepath.Base(p))

	name, ok := l.templateName(p)
	assert.True(t, ok)
	assert.Equal(t, "page", name)

	_, err = NewLocal(t.TempDir(), WithPattern("no-placeholder"))
	assert.Error(t, err)
}

func TestLocalReadWrite(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = l.ReadTemplate(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, l.WriteTemplate(ctx, "shop/cart", "{{ cart.size }}"))
	s, err := l.ReadTemplate(ctx, "shop/cart")
	require.NoError(t, err)
	assert.Equal(t, "{{ cart.size }}", s)

	require.NoError(t, l.WriteTemplate(ctx, "shop/cart", "v2"))
	s, err = l.ReadTemplate(ctx, "shop/cart")
	require.NoError(t, err)
	assert.Equal(t, "v2", s)
}

func TestNewLocalRequiresDirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err := NewLocal(f)
	assert.Error(t, err)
}

func TestLocalWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	changed := make(chan string, 16)
	require.NoError(t, l.Watch(ctx, func(name string) { changed <- name }))

	require.NoError(t, os.WriteFile(filepath.Join(l.Root(), "_header.liquid"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(l.Root(), "notes.txt"), []byte("x"), 0o644))

	select {
	case name := <-changed:
		assert.Equal(t, "header", name)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}
