package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/natefinch/atomic"
)

// DefaultPattern maps the template name "product" to the file
// "_product.liquid". Directories in the name are kept: "shop/cart" is
// "shop/_cart.liquid".
const DefaultPattern = "_%s.liquid"

// Local reads templates from a directory.
type Local struct {
	root    string
	pattern string
	logger  *slog.Logger
}

// LocalOption configures a Local file system.
type LocalOption func(*Local)

// WithPattern sets the file name pattern. It must contain a single %s.
func WithPattern(pattern string) LocalOption {
	return func(l *Local) { l.pattern = pattern }
}

// WithLogger sets the logger used by Watch.
func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) { l.logger = logger }
}

// NewLocal creates a Local file system rooted at root, which must be an
// existing directory.
func NewLocal(root string, opts ...LocalOption) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template root %s is not a directory", root)
	}
	l := &Local{
		root:    abs,
		pattern: DefaultPattern,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	if strings.Count(l.pattern, "%s") != 1 {
		return nil, fmt.Errorf("template pattern %q must contain one %%s", l.pattern)
	}
	return l, nil
}

// Root returns the absolute template directory.
func (l *Local) Root() string { return l.root }

// FullPath returns the file that holds the template name.
func (l *Local) FullPath(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	dir, base := path.Split(name)
	full := filepath.Join(l.root, filepath.FromSlash(dir), fmt.Sprintf(l.pattern, base))
	rel, err := filepath.Rel(l.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w '%s': outside of %s", ErrInvalidName, name, l.root)
	}
	return full, nil
}

// templateName is the inverse of FullPath. It reports false for files that
// do not match the pattern.
func (l *Local) templateName(file string) (string, bool) {
	rel, err := filepath.Rel(l.root, file)
	if err != nil {
		return "", false
	}
	dir, base := filepath.Split(rel)
	prefix, suffix, _ := strings.Cut(l.pattern, "%s")
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, suffix) || len(base) <= len(prefix)+len(suffix) {
		return "", false
	}
	name := filepath.ToSlash(dir) + base[len(prefix):len(base)-len(suffix)]
	return name, validateName(name) == nil
}

func (l *Local) ReadTemplate(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := l.FullPath(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return "", notFound(name)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteTemplate stores source under name. The file is replaced atomically,
// so concurrent readers see either the old or the new template.
func (l *Local) WriteTemplate(ctx context.Context, name, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := l.FullPath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(full, strings.NewReader(source))
}

// Watch calls changed with the template name whenever a template file is
// created, written, removed or renamed, until ctx is done. It returns once
// the watcher is set up.
func (l *Local) Watch(ctx context.Context, changed func(name string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	err = filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return err
	}
	go l.watchLoop(ctx, w, changed)
	return nil
}

func (l *Local) watchLoop(ctx context.Context, w *fsnotify.Watcher, changed func(string)) {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.Add(ev.Name); err != nil {
						l.logger.Warn("watching template directory failed", "dir", ev.Name, "error", err)
					}
					continue
				}
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if name, ok := l.templateName(ev.Name); ok {
				l.logger.Debug("template changed", "template", name, "op", ev.Op.String())
				changed(name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.logger.Warn("template watcher error", "error", err)
		}
	}
}
