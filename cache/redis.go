package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig Redis 远端层配置
type RedisConfig struct {
	// 是否启用远端层
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 单次操作超时
	OpTimeout time.Duration `yaml:"op_timeout" json:"op_timeout"`
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:   false,
		Addr:      "localhost:6379",
		Password:  "",
		DB:        0,
		PoolSize:  10,
		OpTimeout: 500 * time.Millisecond,
	}
}

// RedisTier Redis 远端缓存层。
// 所有操作尽力而为：远端故障只记日志，调用方落回本地层。
type RedisTier struct {
	client    *redis.Client
	opTimeout time.Duration
	logger    *zap.Logger
}

// NewRedisTier 创建远端层并验证连通性
func NewRedisTier(config RedisConfig, logger *zap.Logger) (*RedisTier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	opTimeout := config.OpTimeout
	if opTimeout <= 0 {
		opTimeout = DefaultRedisConfig().OpTimeout
	}
	logger.Info("redis cache tier connected", zap.String("addr", config.Addr))
	return &RedisTier{
		client:    client,
		opTimeout: opTimeout,
		logger:    logger.With(zap.String("component", "cache_redis")),
	}, nil
}

// Close 关闭远端层连接
func (t *RedisTier) Close() error {
	return t.client.Close()
}

func (t *RedisTier) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, t.opTimeout)
}

func (t *RedisTier) get(ctx context.Context, key string) ([]byte, bool) {
	opCtx, cancel := t.withTimeout(ctx)
	defer cancel()

	val, err := t.client.Get(opCtx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		t.logger.Debug("remote get failed, falling back to local", zap.Error(err))
		return nil, false
	}
	return val, true
}

func (t *RedisTier) set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	opCtx, cancel := t.withTimeout(ctx)
	defer cancel()

	if err := t.client.Set(opCtx, key, value, ttl).Err(); err != nil {
		t.logger.Debug("remote set failed, local tier only", zap.Error(err))
	}
}

func (t *RedisTier) delete(ctx context.Context, key string) {
	opCtx, cancel := t.withTimeout(ctx)
	defer cancel()

	if err := t.client.Del(opCtx, key).Err(); err != nil {
		t.logger.Debug("remote delete failed", zap.Error(err))
	}
}

// deletePrefix 按前缀批量删除（SCAN + DEL，避免阻塞服务端）
func (t *RedisTier) deletePrefix(ctx context.Context, prefix string) {
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	iter := t.client.Scan(opCtx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(opCtx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := t.client.Del(opCtx, keys...).Err(); err != nil {
				t.logger.Debug("remote prefix delete failed", zap.Error(err))
				return
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		t.logger.Debug("remote scan failed", zap.Error(err))
		return
	}
	if len(keys) > 0 {
		if err := t.client.Del(opCtx, keys...).Err(); err != nil {
			t.logger.Debug("remote prefix delete failed", zap.Error(err))
		}
	}
}
