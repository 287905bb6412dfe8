package repositories

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nppfbt/ndi-verifier/internal/cache"
	"github.com/nppfbt/ndi-verifier/internal/redis"
)

func TestProfileCached(t *testing.T) {
	ctx := context.Background()
	instance := miniredis.RunT(t)
	client, err := redis.Open(ctx, "redis://"+instance.Addr())
	require.NoError(t, err)
	defer func() { assert.NoError(t, client.Close()) }()
	repo := NewProfileCached(cache.NewRedisCache(client))

	t.Run("empty before any login", func(t *testing.T) {
		cid, pensionID := repo.Identity(ctx)
		assert.Empty(t, cid)
		assert.Empty(t, pensionID)
	})

	t.Run("saved identity survives a reload", func(t *testing.T) {
		require.NoError(t, repo.SaveIdentity(ctx, "11410000465", "PID-7"))
		require.True(t, instance.Exists(keyCIDNumber), "identity must reach the backing store")

		cid, pensionID := repo.Identity(ctx)
		assert.Equal(t, "11410000465", cid)
		assert.Equal(t, "PID-7", pensionID)
	})

	t.Run("clear removes both fields", func(t *testing.T) {
		require.NoError(t, repo.SaveIdentity(ctx, "11410000465", "PID-7"))
		require.NoError(t, repo.Clear(ctx))

		cid, pensionID := repo.Identity(ctx)
		assert.Empty(t, cid)
		assert.Empty(t, pensionID)
	})
}
