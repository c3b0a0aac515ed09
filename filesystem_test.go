package liquid

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluidity/liquid/filesystem"
)

type countingFS struct {
	reads atomic.Int32
	fs    *filesystem.Memory
}

func (c *countingFS) ReadTemplate(ctx context.Context, name string) (string, error) {
	c.reads.Add(1)
	return c.fs.ReadTemplate(ctx, name)
}

type slowFS struct {
	delay time.Duration
	fs    *filesystem.Memory
}

func (s *slowFS) ReadTemplate(ctx context.Context, name string) (string, error) {
	time.Sleep(s.delay)
	return s.fs.ReadTemplate(ctx, name)
}

func TestCachedFileSystemSharedParseError(t *testing.T) {
	src := &slowFS{delay: 20 * time.Millisecond, fs: filesystem.NewMemory(map[string]string{"broken": "{% if a %}x"})}
	e := NewEngine(WithCachedFileSystem(src))
	tmpl, err := e.Parse("a\n{% include 'broken' %}")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, err := e.NewContext(RenderParameters{})
			require.NoError(t, err)
			var out strings.Builder
			require.NoError(t, tmpl.RenderTo(&out, ctx))
			assert.Contains(t, out.String(), "Liquid syntax error: ")
			assert.Len(t, ctx.Errors(), 1)
		}()
	}
	wg.Wait()
}

func TestCachedFileSystem(t *testing.T) {
	mem := filesystem.NewMemory(map[string]string{"item": "<{{ item }}>"})
	src := &countingFS{fs: mem}
	e := NewEngine(WithCachedFileSystem(src))
	cached := e.FileSystem().(*CachedFileSystem)

	tmpl, err := e.Parse("{% include 'item' for items %}")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := tmpl.Render(map[string]any{"items": []any{1, 2}})
			assert.NoError(t, err)
			assert.Equal(t, "<1><2>", out)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), src.reads.Load())
	assert.Equal(t, 1, cached.Len())

	require.NoError(t, mem.WriteTemplate(context.Background(), "item", "[{{ item }}]"))
	out, err := tmpl.Render(map[string]any{"items": []any{1}})
	require.NoError(t, err)
	assert.Equal(t, "<1>", out)

	cached.Invalidate("item")
	assert.Equal(t, 0, cached.Len())
	out, err = tmpl.Render(map[string]any{"items": []any{1}})
	require.NoError(t, err)
	assert.Equal(t, "[1]", out)
	assert.Equal(t, int32(2), src.reads.Load())

	cached.InvalidateAll()
	assert.Equal(t, 0, cached.Len())
}

func TestFileSystemRegisterOverridesEngine(t *testing.T) {
	e := NewEngine(WithFileSystem(filesystem.NewMemory(map[string]string{"p": "engine"})))
	tmpl, err := e.Parse("{% include 'p' %}")
	require.NoError(t, err)

	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "engine", out)

	out, err = tmpl.RenderWith(RenderParameters{
		Registers: map[string]any{"file_system": filesystem.NewMemory(map[string]string{"p": "register"})},
	})
	require.NoError(t, err)
	assert.Equal(t, "register", out)
}

func TestLocalFileSystemInclude(t *testing.T) {
	local, err := filesystem.NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, local.WriteTemplate(ctx, "shop/cart", "{{ cart.size }} items"))

	e := NewEngine(WithCachedFileSystem(local))
	tmpl, err := e.Parse("{% include 'shop/cart' %}")
	require.NoError(t, err)
	out, err := tmpl.Render(map[string]any{"cart": []any{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "2 items", out)
}

func TestIncludeWithoutFileSystem(t *testing.T) {
	e := NewEngine(WithErrorsOutputMode(Rethrow))
	tmpl, err := e.Parse("{% include 'x' %}")
	require.NoError(t, err)
	_, err = tmpl.Render(nil)
	assert.ErrorIs(t, err, ErrFileSystem)
}
