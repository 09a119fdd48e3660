package services

import (
	"context"
	"strings"
	"time"

	"mesa/internal/models"
	"mesa/internal/repository"
	apperrors "mesa/pkg/errors"
)

// levelGuard 防止越级操作：不能操作级别更高的角色或用户，也不能授予自己没有的权限。
// 最高级别（所有者）不受授权范围限制。
type levelGuard struct {
	repos    *repository.Repositories
	resolver *PermissionResolver
	now      func() time.Time
}

func newLevelGuard(repos *repository.Repositories, resolver *PermissionResolver, now func() time.Time) *levelGuard {
	return &levelGuard{repos: repos, resolver: resolver, now: now}
}

// level 用户当前生效角色中的最高级别（数值最小），没有角色时低于任何角色
func (g *levelGuard) level(ctx context.Context, userID, restaurantID uint) (int, error) {
	assignments, err := g.repos.UserRoles.FindEffectiveByUser(ctx, userID, g.now())
	if err != nil {
		return 0, apperrors.Internal("获取用户角色失败", err)
	}
	level := models.RoleLevelMax + 1
	for _, a := range assignments {
		if a.Role == nil || !a.Role.IsActive || !a.Role.VisibleTo(restaurantID) {
			continue
		}
		if a.Role.Level < level {
			level = a.Role.Level
		}
	}
	return level, nil
}

// checkRole 不能分配或撤销级别高于自己的角色
func (g *levelGuard) checkRole(ctx context.Context, actor Actor, role *models.Role) error {
	level, err := g.level(ctx, actor.UserID, actor.RestaurantID)
	if err != nil {
		return err
	}
	if role.Level < level {
		return apperrors.Forbidden("不能操作级别高于自身的角色")
	}
	return nil
}

// checkUser 不能管理级别高于自己的用户，操作自己不受限制
func (g *levelGuard) checkUser(ctx context.Context, actor Actor, target *models.User) error {
	if target.ID == actor.UserID {
		return nil
	}
	actorLevel, err := g.level(ctx, actor.UserID, actor.RestaurantID)
	if err != nil {
		return err
	}
	targetLevel, err := g.level(ctx, target.ID, target.RestaurantID)
	if err != nil {
		return err
	}
	if targetLevel < actorLevel {
		return apperrors.Forbidden("不能管理级别高于自身的用户")
	}
	return nil
}

// checkGrants 只能授予自己拥有的权限
func (g *levelGuard) checkGrants(ctx context.Context, actor Actor, grants models.PermissionSet) error {
	if grants.Len() == 0 {
		return nil
	}
	level, err := g.level(ctx, actor.UserID, actor.RestaurantID)
	if err != nil {
		return err
	}
	if level <= models.RoleLevelMin {
		return nil
	}

	held := g.resolver.Resolve(ctx, actor.UserID)
	var missing []string
	for _, slug := range grants.Slice() {
		if !held.Has(slug) {
			missing = append(missing, slug)
		}
	}
	if len(missing) > 0 {
		return apperrors.Forbidden("不能授予自身没有的权限: " + strings.Join(missing, ", "))
	}
	return nil
}
