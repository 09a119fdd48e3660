package services

import (
	"context"
	"time"

	"mesa/internal/models"
	"mesa/internal/repository"
	"mesa/pkg/logger"
)

// PermissionResolver 计算用户的有效权限：
// 生效中的角色分配所对应的角色权限并集，加上用户的自定义权限。
type PermissionResolver struct {
	repos *repository.Repositories
	cache PermissionCache
	ttl   time.Duration
	now   func() time.Time
}

func NewPermissionResolver(repos *repository.Repositories, cache PermissionCache, ttl time.Duration, now func() time.Time) *PermissionResolver {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PermissionResolver{repos: repos, cache: cache, ttl: ttl, now: now}
}

// Resolve 返回用户的有效权限集，任何错误都按无权限处理
func (r *PermissionResolver) Resolve(ctx context.Context, userID uint) models.PermissionSet {
	if userID == 0 {
		return models.NewPermissionSet()
	}
	if set, ok := r.cache.Get(ctx, userID); ok {
		return set
	}

	set, ttl, err := r.compute(ctx, userID)
	if err != nil {
		if !isNotFound(err) {
			logger.GetLogger().WithError(err).WithField("user_id", userID).Error("计算用户权限失败")
		}
		return models.NewPermissionSet()
	}
	if ttl > 0 {
		r.cache.Set(ctx, userID, set, ttl)
	}
	return set
}

// HasPermission 判断用户是否拥有指定权限
func (r *PermissionResolver) HasPermission(ctx context.Context, userID uint, slug string) bool {
	return r.Resolve(ctx, userID).Has(slug)
}

// Invalidate 清除用户的权限缓存，影响权限的写操作之后调用
func (r *PermissionResolver) Invalidate(ctx context.Context, userIDs ...uint) {
	r.cache.Invalidate(ctx, userIDs...)
}

// compute 实时计算权限集，同时返回缓存时长（不超过最早到期的临时分配）
func (r *PermissionResolver) compute(ctx context.Context, userID uint) (models.PermissionSet, time.Duration, error) {
	set := models.NewPermissionSet()

	user, err := r.repos.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if !user.IsActive {
		return set, r.ttl, nil
	}

	now := r.now()
	assignments, err := r.repos.UserRoles.FindEffectiveByUser(ctx, userID, now)
	if err != nil {
		return nil, 0, err
	}

	ttl := r.ttl
	for _, assignment := range assignments {
		role := assignment.Role
		if role == nil || !role.IsActive || !role.VisibleTo(user.RestaurantID) {
			continue
		}
		set.Merge(role.PermissionSet())
		if assignment.ExpiresAt != nil {
			if remaining := assignment.ExpiresAt.Sub(now); remaining < ttl {
				ttl = remaining
			}
		}
	}
	set.Merge(user.CustomPermissionSet())

	// 剔除已停用或已删除的权限
	if set.Len() > 0 {
		known, err := r.repos.Permissions.FindVisibleBySlugs(ctx, user.RestaurantID, set.Slice())
		if err != nil {
			return nil, 0, err
		}
		active := models.NewPermissionSet()
		for _, p := range known {
			if p.IsActive && set.Has(p.Slug) {
				active.Add(p.Slug)
			}
		}
		set = active
	}

	return set, ttl, nil
}
