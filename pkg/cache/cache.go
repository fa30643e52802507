package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss 键不存在
var ErrCacheMiss = errors.New("cache: key not found")

// Cache 缓存接口，值统一为字节切片，调用方负责序列化
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) bool
	Clear(ctx context.Context) error
	Close() error
}

// Config 缓存配置
type Config struct {
	Type  string // local 或 redis
	Redis RedisConfig
	Local LocalConfig
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

// LocalConfig 本地缓存配置
type LocalConfig struct {
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
}

// NewCache 根据配置创建缓存实例
func NewCache(config Config) (Cache, error) {
	switch config.Type {
	case "", "local", "memory":
		return NewLocalCache(config.Local), nil
	case "redis":
		return NewRedisCache(config.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}
