package filesystem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(map[string]string{"b": "B"})
	require.NoError(t, m.WriteTemplate(ctx, "a", "A"))

	s, err := m.ReadTemplate(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A", s)

	_, err = m.ReadTemplate(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"a", "b"}, m.Names())
}
