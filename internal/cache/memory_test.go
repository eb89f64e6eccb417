package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemory()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "weather:10.85:76.27", `{"temp":31}`, time.Minute))
	val, ok, err := store.Get(ctx, "weather:10.85:76.27")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"temp":31}`, val)

	now = now.Add(time.Minute)
	_, ok, err = store.Get(ctx, "weather:10.85:76.27")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_NoTTLAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	_, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)
}
