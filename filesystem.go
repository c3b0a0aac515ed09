package liquid

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FileSystem supplies template source to include and extends.
type FileSystem interface {
	ReadTemplate(ctx context.Context, name string) (string, error)
}

// TemplateFileSystem is a FileSystem that can also return compiled
// templates, which lets it cache them.
type TemplateFileSystem interface {
	FileSystem
	GetCompiledTemplate(ctx context.Context, name string) (*Template, error)
}

// CachedFileSystem compiles each template of an underlying FileSystem once.
// Concurrent requests for a template that is not cached yet share a single
// read and compile.
type CachedFileSystem struct {
	engine *Engine
	fs     FileSystem
	group  singleflight.Group

	mu    sync.RWMutex
	cache map[string]*Template
}

// NewCachedFileSystem wraps fs. Templates are compiled with e.
func NewCachedFileSystem(e *Engine, fs FileSystem) *CachedFileSystem {
	return &CachedFileSystem{engine: e, fs: fs, cache: make(map[string]*Template)}
}

// WithCachedFileSystem sets fs, wrapped in a CachedFileSystem bound to the
// engine being created, as the engine's file system.
func WithCachedFileSystem(fs FileSystem) Option {
	return func(e *Engine) { e.fs = NewCachedFileSystem(e, fs) }
}

func (c *CachedFileSystem) ReadTemplate(ctx context.Context, name string) (string, error) {
	return c.fs.ReadTemplate(ctx, name)
}

// GetCompiledTemplate returns the cached template or reads and compiles it.
func (c *CachedFileSystem) GetCompiledTemplate(ctx context.Context, name string) (*Template, error) {
	c.mu.RLock()
	t, ok := c.cache[name]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		c.mu.RLock()
		hit, ok := c.cache[name]
		c.mu.RUnlock()
		if ok {
			return hit, nil
		}
		source, err := c.fs.ReadTemplate(ctx, name)
		if err != nil {
			return nil, err
		}
		t, err := c.engine.ParseNamed(name, source)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[name] = t
		c.mu.Unlock()
		c.engine.logger.Debug("liquid template compiled", "template", name)
		return t, nil
	})
	if le, ok := err.(*Error); ok {
		// Waiters share the error; each render annotates its own copy.
		cp := *le
		return nil, &cp
	}
	if err != nil {
		return nil, err
	}
	return v.(*Template), nil
}

// Invalidate drops name from the cache.
func (c *CachedFileSystem) Invalidate(name string) {
	c.mu.Lock()
	_, ok := c.cache[name]
	delete(c.cache, name)
	c.mu.Unlock()
	if ok {
		c.engine.logger.Info("liquid template invalidated", "template", name)
	}
}

// InvalidateAll empties the cache.
func (c *CachedFileSystem) InvalidateAll() {
	c.mu.Lock()
	n := len(c.cache)
	c.cache = make(map[string]*Template)
	c.mu.Unlock()
	c.engine.logger.Info("liquid template cache cleared", "templates", n)
}

// Len returns the number of cached templates.
func (c *CachedFileSystem) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
