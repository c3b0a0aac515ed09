package filesystem

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSQL(t *testing.T) *SQL {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewSQL(db, "")
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestSQL(t *testing.T) {
	ctx := context.Background()
	s := openSQL(t)

	_, err := s.ReadTemplate(ctx, "layout")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.WriteTemplate(ctx, "layout", "<body>{% block main %}{% endblock %}</body>"))
	require.NoError(t, s.WriteTemplate(ctx, "page", "v1"))
	require.NoError(t, s.WriteTemplate(ctx, "page", "v2"))

	src, err := s.ReadTemplate(ctx, "page")
	require.NoError(t, err)
	assert.Equal(t, "v2", src)

	names, err := s.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"layout", "page"}, names)

	_, err = s.ReadTemplate(ctx, "../page")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestNewSQLRejectsTableName(t *testing.T) {
	_, err := NewSQL(nil, "t; DROP TABLE x")
	assert.Error(t, err)
}
