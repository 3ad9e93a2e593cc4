package config

import (
	"time"

	"github.com/canhui/medkb/cache"
	"github.com/canhui/medkb/retrieval"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Store:     DefaultStoreConfig(),
		Cache:     cache.DefaultConfig(),
		Redis:     cache.DefaultRedisConfig(),
		Retrieval: retrieval.DefaultConfig(),
		Log:       DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultStoreConfig 返回默认分区存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		BasePath:        "data/knowledge_store",
		EmbedRatePerSec: 0,
		EmbedBurst:      32,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}
