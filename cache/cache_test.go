package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock 可推进的测试时钟
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestCache(config Config, opts ...Option) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append(opts, WithClock(clock.Now))
	return New(config, zap.NewNop(), opts...), clock
}

func TestCacheSetAndGet(t *testing.T) {
	c, _ := newTestCache(DefaultConfig())
	ctx := context.Background()

	// 未写入时未命中
	_, ok := c.Get(ctx, NamespaceQueryResult, "q1")
	assert.False(t, ok)

	c.Set(ctx, NamespaceQueryResult, "q1", []byte("result"))

	val, ok := c.Get(ctx, NamespaceQueryResult, "q1")
	require.True(t, ok)
	assert.Equal(t, []byte("result"), val)

	// 不同命名空间互不可见
	_, ok = c.Get(ctx, NamespaceKGExpansion, "q1")
	assert.False(t, ok)
}

func TestCacheJSONRoundTrip(t *testing.T) {
	c, _ := newTestCache(DefaultConfig())
	ctx := context.Background()

	type payload struct {
		Terms []string `json:"terms"`
		Score float64  `json:"score"`
	}
	in := payload{Terms: []string{"糖尿病", "血糖"}, Score: 0.82}
	c.SetJSON(ctx, NamespaceKGExpansion, "糖尿病", in)

	var out payload
	require.True(t, c.GetJSON(ctx, NamespaceKGExpansion, "糖尿病", &out))
	assert.Equal(t, in, out)
}

func TestCacheTTLExpiry(t *testing.T) {
	c, clock := newTestCache(DefaultConfig())
	ctx := context.Background()

	c.Set(ctx, NamespaceQueryResult, "q1", []byte("v"))

	// query_result 默认 TTL 为 30 分钟
	clock.Advance(29 * time.Minute)
	_, ok := c.Get(ctx, NamespaceQueryResult, "q1")
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = c.Get(ctx, NamespaceQueryResult, "q1")
	assert.False(t, ok)
}

func TestCachePerEntryTTLOverride(t *testing.T) {
	c, clock := newTestCache(DefaultConfig())
	ctx := context.Background()

	c.Set(ctx, NamespaceQueryResult, "short", []byte("v"), time.Minute)
	c.Set(ctx, NamespaceQueryResult, "long", []byte("v"), time.Hour)

	clock.Advance(5 * time.Minute)
	_, ok := c.Get(ctx, NamespaceQueryResult, "short")
	assert.False(t, ok)
	_, ok = c.Get(ctx, NamespaceQueryResult, "long")
	assert.True(t, ok)
}

func TestCacheEvictionKeepsHotEntries(t *testing.T) {
	c, _ := newTestCache(Config{MaxSize: 10, SweepEvery: 1000, EvictFraction: 0.2, DefaultTTL: time.Hour})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		c.Set(ctx, NamespaceQueryResult, fmt.Sprintf("key-%d", i), []byte("v"))
	}

	// 反复访问 key-0，使其成为热点
	for i := 0; i < 5; i++ {
		_, ok := c.Get(ctx, NamespaceQueryResult, "key-0")
		require.True(t, ok)
	}

	// 超过容量触发淘汰，热点条目必须存活
	c.Set(ctx, NamespaceQueryResult, "overflow", []byte("v"))

	_, ok := c.Get(ctx, NamespaceQueryResult, "key-0")
	assert.True(t, ok)
	assert.LessOrEqual(t, c.GetStats().TotalEntries, 10)
}

func TestCacheInvalidateSingleKey(t *testing.T) {
	c, _ := newTestCache(DefaultConfig())
	ctx := context.Background()

	c.Set(ctx, NamespaceQueryResult, "q1", []byte("v1"))
	c.Set(ctx, NamespaceQueryResult, "q2", []byte("v2"))

	c.Invalidate(ctx, NamespaceQueryResult, "q1")

	_, ok := c.Get(ctx, NamespaceQueryResult, "q1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, NamespaceQueryResult, "q2")
	assert.True(t, ok)
}

func TestCacheInvalidateNamespace(t *testing.T) {
	c, _ := newTestCache(DefaultConfig())
	ctx := context.Background()

	c.Set(ctx, NamespaceQueryResult, "q1", []byte("v"))
	c.Set(ctx, NamespaceQueryResult, "q2", []byte("v"))
	c.Set(ctx, NamespaceAssociation, "a1", []byte("v"))

	// keyData 为 nil 时整个命名空间失效，其他命名空间不受影响
	c.Invalidate(ctx, NamespaceQueryResult, nil)

	_, ok := c.Get(ctx, NamespaceQueryResult, "q1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, NamespaceQueryResult, "q2")
	assert.False(t, ok)
	_, ok = c.Get(ctx, NamespaceAssociation, "a1")
	assert.True(t, ok)
}

func TestCacheStats(t *testing.T) {
	c, clock := newTestCache(DefaultConfig())
	ctx := context.Background()

	c.Set(ctx, NamespaceQueryResult, "q1", []byte("v"))
	c.Set(ctx, NamespaceQueryResult, "q2", []byte("v"))
	c.Set(ctx, NamespaceKGExpansion, "e1", []byte("v"))
	c.Get(ctx, NamespaceQueryResult, "q1")
	c.Get(ctx, NamespaceQueryResult, "q1")

	stats := c.GetStats()
	assert.Equal(t, 3, stats.TotalEntries)
	assert.Equal(t, 2, stats.Namespaces[NamespaceQueryResult].Count)
	assert.Equal(t, uint64(2), stats.Namespaces[NamespaceQueryResult].TotalAccess)
	assert.Equal(t, 1, stats.Namespaces[NamespaceKGExpansion].Count)

	// 过期条目计数
	clock.Advance(31 * time.Minute)
	stats = c.GetStats()
	assert.Equal(t, 2, stats.ExpiredCount)
}

func TestCacheClear(t *testing.T) {
	c, _ := newTestCache(DefaultConfig())
	ctx := context.Background()

	c.Set(ctx, NamespaceQueryResult, "q1", []byte("v"))
	c.Clear(ctx)

	assert.Equal(t, 0, c.GetStats().TotalEntries)
}

func TestCacheStructuredKeyData(t *testing.T) {
	c, _ := newTestCache(DefaultConfig())
	ctx := context.Background()

	type key struct {
		Question   string `json:"question"`
		Department string `json:"department"`
		K          int    `json:"k"`
	}

	c.Set(ctx, NamespaceQueryResult, key{"糖尿病怎么治", "内科", 5}, []byte("v"))

	// 逻辑等价的键命中同一条目
	_, ok := c.Get(ctx, NamespaceQueryResult, key{"糖尿病怎么治", "内科", 5})
	assert.True(t, ok)

	// 任一字段不同则未命中
	_, ok = c.Get(ctx, NamespaceQueryResult, key{"糖尿病怎么治", "内科", 8})
	assert.False(t, ok)
}
