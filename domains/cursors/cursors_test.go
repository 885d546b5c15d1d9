package cursors

import (
	"context"
	"testing"

	"github.com/gomantics/gitwatch/db"
	"github.com/gomantics/gitwatch/domains/repos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutDatabase(t *testing.T) {
	require.False(t, db.Enabled())

	store := New()
	assert.IsType(t, repos.NopCursors{}, store)

	hash, err := store.Load(context.Background(), repos.CursorKey{ShortName: "r1"})
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestStoreWithoutDatabase(t *testing.T) {
	key := repos.CursorKey{ShortName: "r1", URL: "https://example.com/r1.git", Branch: "origin/master"}

	assert.ErrorIs(t, Store{}.Save(context.Background(), key, "abcdef"), db.ErrDisabled)

	_, err := Get(context.Background(), key)
	assert.ErrorIs(t, err, db.ErrDisabled)
}
