package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultExpiration      = 30 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// Local 进程内键值缓存（Redis 不可用时的降级实现）
// 方法签名与 pkg/redis.Client 的缓存部分保持一致
type Local struct {
	cache *gocache.Cache
}

// NewLocal 创建进程内缓存
func NewLocal(defaultExpiration, cleanupInterval time.Duration) *Local {
	if defaultExpiration <= 0 {
		defaultExpiration = DefaultExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Local{cache: gocache.New(defaultExpiration, cleanupInterval)}
}

// GetMany 批量读取，返回命中的键值
func (l *Local) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, found := l.cache.Get(k)
		if !found {
			continue
		}
		if b, ok := v.([]byte); ok {
			result[k] = b
		}
	}
	return result, nil
}

// SetMany 批量写入
func (l *Local) SetMany(_ context.Context, values map[string][]byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	for k, v := range values {
		l.cache.Set(k, v, ttl)
	}
	return nil
}

// Delete 删除键
func (l *Local) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		l.cache.Delete(k)
	}
	return nil
}

// ItemCount 当前缓存条目数
func (l *Local) ItemCount() int {
	return l.cache.ItemCount()
}
