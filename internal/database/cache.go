package database

import (
	"time"

	"mesa/pkg/cache"
	"mesa/pkg/config"
)

// 进程内缓存条目最长保留时间，需覆盖批处理的每日标记
const memoryCacheMaxTTL = 48 * time.Hour

// NewCacheStore 按配置创建缓存存储，默认使用Redis
func NewCacheStore(cfg *config.Config) cache.Store {
	if cfg.Cache.Driver == "memory" {
		return cache.NewMemoryStore(cfg.Cache.MemorySize, cfg.Cache.PermissionTTL, memoryCacheMaxTTL)
	}
	return cache.NewRedisStore(GetRedisClient(), cfg.Redis.Prefix, cfg.Cache.PermissionTTL)
}
