package imagecache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	config := DefaultRedisConfig()
	config.Addr = mr.Addr()
	config.TTL = time.Minute

	cache, err := NewRedis(config, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = cache.Close()
		mr.Close()
	})
	return mr, cache
}

func TestNewRedis_ConnectionFailure(t *testing.T) {
	config := DefaultRedisConfig()
	config.Addr = "127.0.0.1:1"

	_, err := NewRedis(config, zap.NewNop())
	assert.ErrorIs(t, err, ErrRedisConnect)
}

func TestRedis_PutGet(t *testing.T) {
	mr, cache := setupTestRedis(t)

	cache.Put("x^2_scale2", []byte("png-bytes"))

	data, ok := cache.Get("x^2_scale2")
	require.True(t, ok)
	assert.Equal(t, []byte("png-bytes"), data)

	// Stored under the prefixed key.
	assert.True(t, mr.Exists("mdlatex:img:x^2_scale2"))
}

func TestRedis_Miss(t *testing.T) {
	_, cache := setupTestRedis(t)

	_, ok := cache.Get("missing")
	assert.False(t, ok)
}

func TestRedis_TTL(t *testing.T) {
	mr, cache := setupTestRedis(t)

	cache.Put("k", []byte("v"))
	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get("k")
	assert.False(t, ok)
}

func TestRedis_ServerDownIsMiss(t *testing.T) {
	mr, cache := setupTestRedis(t)

	cache.Put("k", []byte("v"))
	mr.Close()

	_, ok := cache.Get("k")
	assert.False(t, ok)
	cache.Put("k2", []byte("v")) // logged, not returned
}
