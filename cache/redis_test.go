package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRemoteCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	config := DefaultRedisConfig()
	config.Addr = mr.Addr()
	tier, err := NewRedisTier(config, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { tier.Close() })

	c, _ := newTestCache(DefaultConfig(), WithRemote(tier))
	return mr, c
}

func TestRedisTierWriteThrough(t *testing.T) {
	mr, c := setupRemoteCache(t)
	ctx := context.Background()

	c.Set(ctx, NamespaceQueryResult, "q1", []byte("v"))

	// 写入应同步到远端
	key := Key(NamespaceQueryResult, "q1")
	val, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestRedisTierBackfillsLocal(t *testing.T) {
	mr, c := setupRemoteCache(t)
	ctx := context.Background()

	// 直接写远端，模拟其他进程共享的缓存条目
	key := Key(NamespaceQueryResult, "shared")
	require.NoError(t, mr.Set(key, "remote-value"))

	val, ok := c.Get(ctx, NamespaceQueryResult, "shared")
	require.True(t, ok)
	assert.Equal(t, []byte("remote-value"), val)

	// 回填后远端下线也能本地命中
	mr.Close()
	val, ok = c.Get(ctx, NamespaceQueryResult, "shared")
	require.True(t, ok)
	assert.Equal(t, []byte("remote-value"), val)
}

func TestRedisTierDownDegradesToLocal(t *testing.T) {
	mr, c := setupRemoteCache(t)
	ctx := context.Background()

	// 远端下线后读写只走本地，不报错
	mr.Close()

	c.Set(ctx, NamespaceQueryResult, "q1", []byte("v"))
	val, ok := c.Get(ctx, NamespaceQueryResult, "q1")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)
}

func TestRedisTierNamespaceInvalidation(t *testing.T) {
	mr, c := setupRemoteCache(t)
	ctx := context.Background()

	c.Set(ctx, NamespaceQueryResult, "q1", []byte("v"))
	c.Set(ctx, NamespaceQueryResult, "q2", []byte("v"))
	c.Set(ctx, NamespaceAssociation, "a1", []byte("v"))

	c.Invalidate(ctx, NamespaceQueryResult, nil)

	// 远端的 query_result 键应被清空，其他命名空间保留
	assert.False(t, mr.Exists(Key(NamespaceQueryResult, "q1")))
	assert.False(t, mr.Exists(Key(NamespaceQueryResult, "q2")))
	assert.True(t, mr.Exists(Key(NamespaceAssociation, "a1")))
}

func TestNewRedisTierUnreachable(t *testing.T) {
	config := DefaultRedisConfig()
	config.Addr = "127.0.0.1:1"

	_, err := NewRedisTier(config, zap.NewNop())
	assert.Error(t, err)
}

func TestRedisTierTTLPropagated(t *testing.T) {
	mr, c := setupRemoteCache(t)
	ctx := context.Background()

	c.Set(ctx, NamespaceQueryResult, "q1", []byte("v"), time.Minute)

	key := Key(NamespaceQueryResult, "q1")
	assert.InDelta(t, time.Minute, mr.TTL(key), float64(time.Second))
}
