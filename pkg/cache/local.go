package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LocalCache 基于 go-cache 的进程内缓存
type LocalCache struct {
	c *gocache.Cache
}

// NewLocalCache 创建本地缓存
func NewLocalCache(config LocalConfig) *LocalCache {
	if config.DefaultExpiration <= 0 {
		config.DefaultExpiration = 5 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 10 * time.Minute
	}
	return &LocalCache{c: gocache.New(config.DefaultExpiration, config.CleanupInterval)}
}

func (l *LocalCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := l.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}

func (l *LocalCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.DefaultExpiration
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	l.c.Set(key, stored, expiration)
	return nil
}

func (l *LocalCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		l.c.Delete(key)
	}
	return nil
}

func (l *LocalCache) Exists(_ context.Context, key string) bool {
	_, ok := l.c.Get(key)
	return ok
}

func (l *LocalCache) Clear(_ context.Context) error {
	l.c.Flush()
	return nil
}

func (l *LocalCache) Close() error {
	return nil
}
