package services

import (
	"context"
	"fmt"
	"time"

	"mesa/internal/models"
	"mesa/pkg/cache"
	"mesa/pkg/logger"
	"mesa/pkg/metrics"
)

// PermissionCache 用户有效权限集缓存
type PermissionCache interface {
	Get(ctx context.Context, userID uint) (models.PermissionSet, bool)
	Set(ctx context.Context, userID uint, set models.PermissionSet, ttl time.Duration)
	Invalidate(ctx context.Context, userIDs ...uint)
}

type storePermissionCache struct {
	store cache.Store
}

// NewPermissionCache 基于缓存存储创建权限缓存。
// 缓存故障不影响鉴权结果，只记录日志后回退到实时计算。
func NewPermissionCache(store cache.Store) PermissionCache {
	return &storePermissionCache{store: store}
}

func permissionCacheKey(userID uint) string {
	return fmt.Sprintf("perm:user:%d", userID)
}

func (c *storePermissionCache) Get(ctx context.Context, userID uint) (models.PermissionSet, bool) {
	var set models.PermissionSet
	found, err := c.store.Get(ctx, permissionCacheKey(userID), &set)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("user_id", userID).Warn("读取权限缓存失败")
		metrics.PermissionCacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	if !found {
		metrics.PermissionCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.PermissionCacheLookups.WithLabelValues("hit").Inc()
	if set == nil {
		set = models.NewPermissionSet()
	}
	return set, true
}

func (c *storePermissionCache) Set(ctx context.Context, userID uint, set models.PermissionSet, ttl time.Duration) {
	if err := c.store.Set(ctx, permissionCacheKey(userID), set, ttl); err != nil {
		logger.GetLogger().WithError(err).WithField("user_id", userID).Warn("写入权限缓存失败")
	}
}

func (c *storePermissionCache) Invalidate(ctx context.Context, userIDs ...uint) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, permissionCacheKey(id))
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		logger.GetLogger().WithError(err).WithField("user_ids", userIDs).Error("清除权限缓存失败")
	}
}
