package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeta_GetSetDelete(t *testing.T) {
	db := setupDB(t)
	r := NewMetaRepository(db)
	ctx := context.Background()

	got, err := r.Get(ctx, "last_sync.default")
	require.NoError(t, err)
	assert.Equal(t, "", got, "absent key reads as empty")

	require.NoError(t, r.Set(ctx, "last_sync.default", "1700000000"))
	got, err = r.Get(ctx, "last_sync.default")
	require.NoError(t, err)
	assert.Equal(t, "1700000000", got)

	require.NoError(t, r.Set(ctx, "last_sync.default", "1700000100"), "set overwrites")
	got, err = r.Get(ctx, "last_sync.default")
	require.NoError(t, err)
	assert.Equal(t, "1700000100", got)

	require.NoError(t, r.Delete(ctx, "last_sync.default"))
	got, err = r.Get(ctx, "last_sync.default")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	require.NoError(t, r.Delete(ctx, "never-existed"), "deleting absent key is a no-op")
}
