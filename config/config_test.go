package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluidity/liquid"
	"github.com/fluidity/liquid/filesystem"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "liquid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "display", c.ErrorsOutputMode)
	assert.Equal(t, "modern", c.Syntax)
	assert.Equal(t, "exact", c.Naming)
	assert.Equal(t, filesystem.DefaultPattern, c.FileSystem.Pattern)
	assert.Equal(t, "templates", c.FileSystem.Table)
	assert.Zero(t, c.Timeout)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
errors_output_mode: rethrow
max_iterations: 1000
timeout: 2s
locale: de-DE
syntax: legacy
naming: permissive
strict_variables: true
file_system:
  driver: memory
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rethrow", c.ErrorsOutputMode)
	assert.Equal(t, 1000, c.MaxIterations)
	assert.Equal(t, 2*time.Second, c.Timeout)
	assert.Equal(t, "de-DE", c.Locale)
	assert.True(t, c.StrictVariables)
	assert.Equal(t, "memory", c.FileSystem.Driver)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LIQUID_MAX_ITERATIONS", "7")
	t.Setenv("LIQUID_FILE_SYSTEM_TABLE", "partials")
	c, err := Load(writeConfig(t, "max_iterations: 100\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, c.MaxIterations)
	assert.Equal(t, "partials", c.FileSystem.Table)
}

func TestValidate(t *testing.T) {
	_, err := Load(writeConfig(t, `
errors_output_mode: loud
naming: kebab
file_system:
  driver: s3
`))
	require.Error(t, err)
	assert.ErrorContains(t, err, "errors output mode")
	assert.ErrorContains(t, err, "naming convention")
	assert.ErrorContains(t, err, "file_system.driver")

	_, err = Load(writeConfig(t, "file_system:\n  driver: local\n"))
	assert.ErrorContains(t, err, "file_system.root")
}

func TestNewEngineRendersWithSettings(t *testing.T) {
	c, err := Load(writeConfig(t, "max_iterations: 2\nerrors_output_mode: rethrow\n"))
	require.NoError(t, err)
	e, closer, err := c.NewEngine(context.Background(), nil)
	require.NoError(t, err)
	defer closer.Close()

	tmpl, err := e.Parse("{% for i in (1..5) %}{{ i }}{% endfor %}")
	require.NoError(t, err)
	_, err = tmpl.Render(nil)
	assert.ErrorIs(t, err, liquid.ErrMaxIterations)
}

func TestNewEngineLocalWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "_greeting.liquid"), []byte("hello"), 0o644))

	c := &Config{FileSystem: FileSystemConfig{Driver: "local", Root: root, Pattern: filesystem.DefaultPattern, Watch: true}}
	e, closer, err := c.NewEngine(ctx, nil)
	require.NoError(t, err)
	defer closer.Close()

	tmpl, err := e.Parse("{% include 'greeting' %}")
	require.NoError(t, err)
	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	cached := e.FileSystem().(*liquid.CachedFileSystem)
	assert.Equal(t, 1, cached.Len())

	require.NoError(t, os.WriteFile(filepath.Join(root, "_greeting.liquid"), []byte("bye"), 0o644))
	require.Eventually(t, func() bool { return cached.Len() == 0 }, 5*time.Second, 10*time.Millisecond)

	out, err = tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "bye", out)
}

func TestNewEngineSQL(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "templates.db")
	c := &Config{FileSystem: FileSystemConfig{Driver: "sql", DSN: dsn, Table: "templates"}}
	e, closer, err := c.NewEngine(context.Background(), nil)
	require.NoError(t, err)
	defer closer.Close()

	tmpl, err := e.Parse("{% include 'missing' %}")
	require.NoError(t, err)
	_, err = tmpl.RenderWith(liquid.RenderParameters{ErrorsOutputMode: liquid.Rethrow})
	assert.ErrorIs(t, err, liquid.ErrFileSystem)
}
