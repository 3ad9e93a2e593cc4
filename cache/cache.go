package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/canhui/medkb/internal/metrics"
)

// Namespace 缓存命名空间，每个命名空间有独立的默认 TTL
type Namespace string

const (
	NamespaceQueryResult       Namespace = "query_result"
	NamespaceEntityExtraction  Namespace = "entity_extraction"
	NamespaceIntentRecognition Namespace = "intent_recognition"
	NamespaceKGExpansion       Namespace = "kg_expansion"
	NamespaceAssociation       Namespace = "medical_association"
)

// DefaultTTLs 各命名空间的默认过期时间。
// KG 扩展查询代价最高，缓存时间最长。
func DefaultTTLs() map[Namespace]time.Duration {
	return map[Namespace]time.Duration{
		NamespaceQueryResult:       30 * time.Minute,
		NamespaceEntityExtraction:  time.Hour,
		NamespaceIntentRecognition: 30 * time.Minute,
		NamespaceKGExpansion:       2 * time.Hour,
		NamespaceAssociation:       time.Hour,
	}
}

// Config 缓存配置
type Config struct {
	// 最大条目数，达到上限触发淘汰
	MaxSize int `yaml:"max_size" json:"max_size"`

	// 未配置命名空间 TTL 时的默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	// 每 N 次写入触发一次过期清扫
	SweepEvery int `yaml:"sweep_every" json:"sweep_every"`

	// 每轮淘汰的条目比例
	EvictFraction float64 `yaml:"evict_fraction" json:"evict_fraction"`
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		MaxSize:       1000,
		DefaultTTL:    time.Hour,
		SweepEvery:    100,
		EvictFraction: 0.1,
	}
}

// entry 缓存条目
type entry struct {
	value       []byte
	createdAt   time.Time
	ttl         time.Duration
	accessCount uint64
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Cache 命名空间结果缓存。
// 本地内存为权威层；可选接入 Redis 远端层做跨进程共享，
// 远端不可用时透明回退本地，任何缓存故障都不会传播给调用方。
type Cache struct {
	config  Config
	ttls    map[Namespace]time.Duration
	remote  *RedisTier
	logger  *zap.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	entries map[string]*entry
	writes  uint64

	// 可注入时钟，测试用
	now func() time.Time
}

// Option 缓存可选项
type Option func(*Cache)

// WithRemote 接入 Redis 远端层
func WithRemote(tier *RedisTier) Option {
	return func(c *Cache) { c.remote = tier }
}

// WithMetrics 接入指标收集器
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Cache) { c.metrics = collector }
}

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New 创建缓存
func New(config Config, logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultConfig().MaxSize
	}
	if config.SweepEvery <= 0 {
		config.SweepEvery = DefaultConfig().SweepEvery
	}
	if config.EvictFraction <= 0 || config.EvictFraction > 1 {
		config.EvictFraction = DefaultConfig().EvictFraction
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultConfig().DefaultTTL
	}

	c := &Cache{
		config:  config,
		ttls:    DefaultTTLs(),
		entries: make(map[string]*entry),
		logger:  logger.With(zap.String("component", "cache")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTLFor 返回命名空间的默认 TTL
func (c *Cache) TTLFor(ns Namespace) time.Duration {
	if ttl, ok := c.ttls[ns]; ok {
		return ttl
	}
	return c.config.DefaultTTL
}

// Get 获取缓存值的原始字节。未设置、已过期或已被淘汰均返回 (nil, false)。
// 命中时递增访问计数，除此之外无副作用。
func (c *Cache) Get(ctx context.Context, ns Namespace, keyData any) ([]byte, bool) {
	key := Key(ns, keyData)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if !e.expired(c.now()) {
			e.accessCount++
			val := e.value
			c.mu.Unlock()
			c.metrics.CacheHit(string(ns))
			return val, true
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	// 本地未命中，尝试远端层
	if c.remote != nil {
		if val, ok := c.remote.get(ctx, key); ok {
			c.backfill(key, val, c.TTLFor(ns))
			c.metrics.CacheHit(string(ns))
			return val, true
		}
	}

	c.metrics.CacheMiss(string(ns))
	return nil, false
}

// GetJSON 获取并反序列化缓存值
func (c *Cache) GetJSON(ctx context.Context, ns Namespace, keyData any, dest any) bool {
	val, ok := c.Get(ctx, ns, keyData)
	if !ok {
		return false
	}
	if err := json.Unmarshal(val, dest); err != nil {
		c.logger.Warn("cached value unmarshal failed, treating as miss",
			zap.String("namespace", string(ns)), zap.Error(err))
		return false
	}
	return true
}

// Set 写入缓存。ttl 省略时使用命名空间默认值。
// 同一计算键的既有条目被整体覆盖。写入失败不影响调用方。
func (c *Cache) Set(ctx context.Context, ns Namespace, keyData any, value []byte, ttl ...time.Duration) {
	effective := c.TTLFor(ns)
	if len(ttl) > 0 && ttl[0] > 0 {
		effective = ttl[0]
	}
	key := Key(ns, keyData)
	now := c.now()

	c.mu.Lock()
	c.writes++
	if c.writes%uint64(c.config.SweepEvery) == 0 {
		c.sweepLocked(now)
	}
	if len(c.entries) >= c.config.MaxSize {
		c.evictLocked()
	}
	c.entries[key] = &entry{value: value, createdAt: now, ttl: effective}
	c.mu.Unlock()

	if c.remote != nil {
		c.remote.set(ctx, key, value, effective)
	}
}

// SetJSON 序列化后写入缓存
func (c *Cache) SetJSON(ctx context.Context, ns Namespace, keyData any, value any, ttl ...time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache value marshal failed, skipping write",
			zap.String("namespace", string(ns)), zap.Error(err))
		return
	}
	c.Set(ctx, ns, keyData, data, ttl...)
}

// Invalidate 失效缓存。keyData 为 nil 时失效整个命名空间
// （索引重建或分区删除后调用，避免返回陈旧检索结果）。
func (c *Cache) Invalidate(ctx context.Context, ns Namespace, keyData any) {
	if keyData == nil {
		prefix := string(ns) + ":"
		c.mu.Lock()
		for key := range c.entries {
			if strings.HasPrefix(key, prefix) {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
		if c.remote != nil {
			c.remote.deletePrefix(ctx, prefix)
		}
		c.logger.Debug("namespace invalidated", zap.String("namespace", string(ns)))
		return
	}

	key := Key(ns, keyData)
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	if c.remote != nil {
		c.remote.delete(ctx, key)
	}
}

// NamespaceStats 单命名空间统计
type NamespaceStats struct {
	Count       int    `json:"count"`
	TotalAccess uint64 `json:"total_access"`
}

// Stats 缓存统计信息
type Stats struct {
	TotalEntries int                          `json:"total_entries"`
	ExpiredCount int                          `json:"expired_count"`
	MaxSize      int                          `json:"max_size"`
	Namespaces   map[Namespace]NamespaceStats `json:"namespaces"`
}

// GetStats 返回缓存统计信息
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stats := Stats{
		TotalEntries: len(c.entries),
		MaxSize:      c.config.MaxSize,
		Namespaces:   make(map[Namespace]NamespaceStats),
	}
	for key, e := range c.entries {
		if e.expired(now) {
			stats.ExpiredCount++
		}
		ns := Namespace(key[:strings.IndexByte(key, ':')])
		s := stats.Namespaces[ns]
		s.Count++
		s.TotalAccess += e.accessCount
		stats.Namespaces[ns] = s
	}
	return stats
}

// Clear 清空所有缓存条目
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
	c.logger.Info("cache cleared")
}

// backfill 远端命中回填本地层
func (c *Cache) backfill(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.config.MaxSize {
		c.evictLocked()
	}
	c.entries[key] = &entry{value: value, createdAt: c.now(), ttl: ttl, accessCount: 1}
}

// sweepLocked 清理过期条目，调用方需持锁
func (c *Cache) sweepLocked(now time.Time) {
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("expired entries swept", zap.Int("removed", removed))
	}
}

// evictLocked 淘汰低访问条目，调用方需持锁。
// 按 (访问计数, 创建时间) 升序淘汰固定比例，摊薄单次写入的淘汰成本。
func (c *Cache) evictLocked() {
	type candidate struct {
		key         string
		accessCount uint64
		createdAt   time.Time
	}
	candidates := make([]candidate, 0, len(c.entries))
	for key, e := range c.entries {
		candidates = append(candidates, candidate{key, e.accessCount, e.createdAt})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].accessCount != candidates[j].accessCount {
			return candidates[i].accessCount < candidates[j].accessCount
		}
		return candidates[i].createdAt.Before(candidates[j].createdAt)
	})

	evictCount := max(1, int(float64(len(candidates))*c.config.EvictFraction))
	for i := 0; i < evictCount; i++ {
		delete(c.entries, candidates[i].key)
	}
	c.metrics.CacheEvicted(evictCount)
	c.logger.Debug("entries evicted", zap.Int("count", evictCount))
}
