// Package config loads engine settings from a configuration file and LIQUID_
// environment variables using Viper, and builds a configured engine from
// them.
package config

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"golang.org/x/text/language"
	_ "modernc.org/sqlite"

	"github.com/fluidity/liquid"
	"github.com/fluidity/liquid/filesystem"
	"github.com/fluidity/liquid/naming"
)

// EnvPrefix prefixes environment overrides: LIQUID_MAX_ITERATIONS,
// LIQUID_FILE_SYSTEM_ROOT and so on.
const EnvPrefix = "LIQUID"

// Config holds engine settings loaded from a file and the environment.
// Zero values select the engine defaults.
type Config struct {
	ErrorsOutputMode string           `mapstructure:"errors_output_mode"`
	MaxIterations    int              `mapstructure:"max_iterations"`
	Timeout          time.Duration    `mapstructure:"timeout"`
	Locale           string           `mapstructure:"locale"`
	Syntax           string           `mapstructure:"syntax"`
	Naming           string           `mapstructure:"naming"`
	StrictVariables  bool             `mapstructure:"strict_variables"`
	FileSystem       FileSystemConfig `mapstructure:"file_system"`
}

// FileSystemConfig selects the template source used by include and extends.
type FileSystemConfig struct {
	// Driver is one of memory, local or sql. Empty means no file system.
	Driver string `mapstructure:"driver"`
	// Root is the directory of the local driver.
	Root string `mapstructure:"root"`
	// Pattern maps a template name to a file name, e.g. _%s.liquid.
	Pattern string `mapstructure:"pattern"`
	// DSN and Table locate the templates of the sql driver.
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
	// Watch invalidates cached templates when local files change.
	Watch bool `mapstructure:"watch"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("errors_output_mode", "display")
	v.SetDefault("max_iterations", 0)
	v.SetDefault("timeout", "0s")
	v.SetDefault("locale", "und")
	v.SetDefault("syntax", "modern")
	v.SetDefault("naming", "exact")
	v.SetDefault("strict_variables", false)
	v.SetDefault("file_system.driver", "")
	v.SetDefault("file_system.root", "")
	v.SetDefault("file_system.pattern", filesystem.DefaultPattern)
	v.SetDefault("file_system.dsn", "")
	v.SetDefault("file_system.table", "templates")
	v.SetDefault("file_system.watch", false)
}

// Load reads the configuration file at path, which may be empty to use
// defaults and environment variables only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every setting names something that exists.
func (c *Config) Validate() error {
	var errs error
	if _, err := liquid.ParseErrorsOutputMode(c.ErrorsOutputMode); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := liquid.ParseSyntaxCompatibility(c.Syntax); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, ok := naming.ByName(c.Naming); !ok && c.Naming != "" {
		errs = multierr.Append(errs, fmt.Errorf("unknown naming convention %q", c.Naming))
	}
	if _, err := language.Parse(c.locale()); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("invalid locale %q: %w", c.Locale, err))
	}
	if c.MaxIterations < 0 {
		errs = multierr.Append(errs, fmt.Errorf("max_iterations must not be negative"))
	}
	if c.Timeout < 0 {
		errs = multierr.Append(errs, fmt.Errorf("timeout must not be negative"))
	}
	switch c.FileSystem.Driver {
	case "", "memory":
	case "local":
		if c.FileSystem.Root == "" {
			errs = multierr.Append(errs, fmt.Errorf("file_system.root is required for the local driver"))
		}
	case "sql":
		if c.FileSystem.DSN == "" {
			errs = multierr.Append(errs, fmt.Errorf("file_system.dsn is required for the sql driver"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown file_system.driver %q", c.FileSystem.Driver))
	}
	return errs
}

func (c *Config) locale() string {
	if c.Locale == "" {
		return "und"
	}
	return c.Locale
}

// Options converts the render settings into engine options. The file system
// is not included; NewEngine sets it up.
func (c *Config) Options() ([]liquid.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mode, _ := liquid.ParseErrorsOutputMode(c.ErrorsOutputMode)
	syntax, _ := liquid.ParseSyntaxCompatibility(c.Syntax)
	tag, _ := language.Parse(c.locale())
	conv := naming.Exact
	if n, ok := naming.ByName(c.Naming); ok {
		conv = n
	}
	return []liquid.Option{
		liquid.WithErrorsOutputMode(mode),
		liquid.WithSyntax(syntax),
		liquid.WithLocale(tag),
		liquid.WithNamingConvention(conv),
		liquid.WithMaxIterations(c.MaxIterations),
		liquid.WithTimeout(c.Timeout),
		liquid.WithStrictVariables(c.StrictVariables),
	}, nil
}

// NewEngine builds an engine with the configured settings and file system.
// Templates from the file system are compiled once and cached; with the
// local driver and watch enabled, changed files are dropped from the cache
// until ctx is done. The returned Closer releases the database connection
// of the sql driver.
func (c *Config) NewEngine(ctx context.Context, logger *slog.Logger, extra ...liquid.Option) (*liquid.Engine, io.Closer, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts = append(opts, liquid.WithLogger(logger))

	var closers closerFunc
	var cached *liquid.CachedFileSystem
	var local *filesystem.Local

	fsc := c.FileSystem
	switch fsc.Driver {
	case "memory":
		opts = append(opts, liquid.WithFileSystem(filesystem.NewMemory(nil)))
	case "local":
		local, err = filesystem.NewLocal(fsc.Root, filesystem.WithPattern(fsc.Pattern), filesystem.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, liquid.WithCachedFileSystem(local))
	case "sql":
		db, err := sql.Open("sqlite", fsc.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening template database: %w", err)
		}
		store, err := filesystem.NewSQL(db, fsc.Table)
		if err == nil {
			err = store.EnsureSchema(ctx)
		}
		if err != nil {
			return nil, nil, multierr.Append(err, db.Close())
		}
		closers = db.Close
		opts = append(opts, liquid.WithCachedFileSystem(store))
	}
	opts = append(opts, extra...)

	e := liquid.NewEngine(opts...)
	cached, _ = e.FileSystem().(*liquid.CachedFileSystem)

	if local != nil && fsc.Watch && cached != nil {
		if err := local.Watch(ctx, cached.Invalidate); err != nil {
			return nil, nil, err
		}
		logger.Info("watching liquid templates", "root", local.Root())
	}
	return e, closers, nil
}

type closerFunc func() error

func (f closerFunc) Close() error {
	if f == nil {
		return nil
	}
	return f()
}
