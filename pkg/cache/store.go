// Package cache 提供带过期时间的键值缓存，值以JSON序列化存储。
package cache

import (
	"context"
	"time"
)

// Store 缓存存储接口
type Store interface {
	// Get 读取并反序列化到dest，键不存在时返回 false
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	// Set 写入，ttl<=0 表示使用存储的默认过期时间
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}
