package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/structlog-decoder/pkg/redis"
)

func TestNew(t *testing.T) {
	s := miniredis.RunT(t)

	for _, addr := range []string{s.Addr(), "redis://" + s.Addr()} {
		config := &redis.Config{Address: addr}

		client, err := redis.New(context.Background(), config)
		require.NoError(t, err)
		assert.Equal(t, "structlog-decoder", config.Prefix)

		require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
		require.NoError(t, client.Close())
	}

	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestNew_Invalid(t *testing.T) {
	_, err := redis.New(context.Background(), &redis.Config{})
	require.Error(t, err)

	_, err = redis.New(context.Background(), &redis.Config{Address: "127.0.0.1:1"})
	require.Error(t, err)
}
