package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nppfbt/ndi-verifier/internal/cache"
	"github.com/nppfbt/ndi-verifier/internal/redis"
)

func TestQrStoreService(t *testing.T) {
	ctx := context.Background()
	instance := miniredis.RunT(t)
	client, err := redis.Open(ctx, "redis://"+instance.Addr())
	require.NoError(t, err)
	defer func() { assert.NoError(t, client.Close()) }()
	s := NewQrStoreService(cache.NewRedisCache(client))

	t.Run("store and find round trip", func(t *testing.T) {
		body := []byte("https://backend/proof-request-url")
		id, err := s.Store(ctx, body, DefaultQRBodyTTL)
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, id)

		got, err := s.Find(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("find unknown id", func(t *testing.T) {
		_, err := s.Find(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrQRCodeLinkNotFound)
	})

	t.Run("expired body is gone", func(t *testing.T) {
		id, err := s.Store(ctx, []byte("short lived"), time.Second)
		require.NoError(t, err)

		instance.FastForward(2 * time.Second)

		_, err = s.Find(ctx, id)
		assert.ErrorIs(t, err, ErrQRCodeLinkNotFound)
	})

	t.Run("url shape", func(t *testing.T) {
		id := uuid.MustParse("8ba2e14a-5b07-4a2d-8dc9-3a9e27f64b90")
		assert.Equal(t,
			"https://verifier.example.com/v1/qr-store?id=8ba2e14a-5b07-4a2d-8dc9-3a9e27f64b90",
			s.ToURL("https://verifier.example.com", id),
		)
	})
}
