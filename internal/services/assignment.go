package services

import (
	"context"
	"time"

	"mesa/internal/models"
	"mesa/internal/repository"
	apperrors "mesa/pkg/errors"
	"mesa/pkg/logger"

	"github.com/sirupsen/logrus"
)

// AssignmentService 用户角色分配
type AssignmentService struct {
	repos    *repository.Repositories
	resolver *PermissionResolver
	guard    *levelGuard
	now      func() time.Time
}

func NewAssignmentService(repos *repository.Repositories, resolver *PermissionResolver, now func() time.Time) *AssignmentService {
	if now == nil {
		now = time.Now
	}
	return &AssignmentService{
		repos:    repos,
		resolver: resolver,
		guard:    newLevelGuard(repos, resolver, now),
		now:      now,
	}
}

// Assign 为用户分配角色，expiresAt 为空表示永久。
// 已撤销或已过期的分配会被重新启用。
func (s *AssignmentService) Assign(ctx context.Context, actor Actor, userID, roleID uint, expiresAt *time.Time) (*models.UserRole, error) {
	assignment, err := s.assign(ctx, actor, userID, roleID, expiresAt)
	if err != nil {
		return nil, err
	}
	s.resolver.Invalidate(ctx, userID)
	return assignment, nil
}

// Revoke 撤销用户的角色
func (s *AssignmentService) Revoke(ctx context.Context, actor Actor, userID, roleID uint) error {
	if err := s.revoke(ctx, actor, userID, roleID); err != nil {
		return err
	}
	s.resolver.Invalidate(ctx, userID)
	return nil
}

// Sync 将用户的生效角色调整为 roleIDs：多余的撤销，缺少的分配
func (s *AssignmentService) Sync(ctx context.Context, actor Actor, userID uint, roleIDs []uint) error {
	if _, err := s.tenantUser(ctx, actor.RestaurantID, userID); err != nil {
		return err
	}

	current, err := s.repos.UserRoles.FindEffectiveByUser(ctx, userID, s.now())
	if err != nil {
		return apperrors.Internal("获取用户角色失败", err)
	}

	wanted := make(map[uint]bool, len(roleIDs))
	for _, id := range roleIDs {
		wanted[id] = true
	}
	have := make(map[uint]bool, len(current))
	for _, a := range current {
		have[a.RoleID] = true
	}

	// 先校验全部目标角色，避免做了一半才失败
	for id := range wanted {
		if have[id] {
			continue
		}
		if _, err := s.assignableRole(ctx, actor, id); err != nil {
			return err
		}
	}

	defer s.resolver.Invalidate(ctx, userID)

	for _, a := range current {
		if wanted[a.RoleID] {
			continue
		}
		if err := s.revoke(ctx, actor, userID, a.RoleID); err != nil {
			return err
		}
	}
	for id := range wanted {
		if have[id] {
			continue
		}
		if _, err := s.assign(ctx, actor, userID, id, nil); err != nil {
			return err
		}
	}
	return nil
}

// ListForUser 用户的全部分配记录（含已撤销和已过期）
func (s *AssignmentService) ListForUser(ctx context.Context, restaurantID, userID uint) ([]models.UserRole, error) {
	if _, err := s.tenantUser(ctx, restaurantID, userID); err != nil {
		return nil, err
	}
	assignments, err := s.repos.UserRoles.FindByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("获取用户角色失败", err)
	}
	return assignments, nil
}

// ActorLevel 用户当前生效角色中的最高级别（数值最小），没有角色时低于任何角色
func (s *AssignmentService) ActorLevel(ctx context.Context, actor Actor) (int, error) {
	return s.guard.level(ctx, actor.UserID, actor.RestaurantID)
}

// ========== 内部方法 ==========

func (s *AssignmentService) assign(ctx context.Context, actor Actor, userID, roleID uint, expiresAt *time.Time) (*models.UserRole, error) {
	if _, err := s.tenantUser(ctx, actor.RestaurantID, userID); err != nil {
		return nil, err
	}
	role, err := s.assignableRole(ctx, actor, roleID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, apperrors.ValidationField("expires_at", "过期时间必须晚于当前时间")
	}

	existing, err := s.repos.UserRoles.FindByUserAndRole(ctx, userID, role.ID)
	if err != nil && !isNotFound(err) {
		return nil, apperrors.Internal("查询角色分配失败", err)
	}

	if existing != nil {
		if existing.EffectiveAt(now) {
			return nil, apperrors.BusinessRule("用户已拥有该角色")
		}
		existing.IsActive = true
		existing.AssignedBy = actor.UserID
		existing.AssignedAt = now
		existing.ExpiresAt = expiresAt
		existing.RevokedBy = nil
		existing.RevokedAt = nil
		if err := s.repos.UserRoles.Update(ctx, existing); err != nil {
			return nil, apperrors.Internal("分配角色失败", err)
		}
		existing.Role = role
		s.logChange("分配角色", actor, userID, role)
		return existing, nil
	}

	assignment := &models.UserRole{
		UserID:     userID,
		RoleID:     role.ID,
		AssignedBy: actor.UserID,
		AssignedAt: now,
		ExpiresAt:  expiresAt,
		IsActive:   true,
	}
	if err := s.repos.UserRoles.Create(ctx, assignment); err != nil {
		return nil, apperrors.Internal("分配角色失败", err)
	}
	assignment.Role = role
	s.logChange("分配角色", actor, userID, role)
	return assignment, nil
}

func (s *AssignmentService) revoke(ctx context.Context, actor Actor, userID, roleID uint) error {
	if _, err := s.tenantUser(ctx, actor.RestaurantID, userID); err != nil {
		return err
	}
	role, err := s.visibleRole(ctx, actor.RestaurantID, roleID)
	if err != nil {
		return err
	}
	if err := s.guard.checkRole(ctx, actor, role); err != nil {
		return err
	}

	existing, err := s.repos.UserRoles.FindByUserAndRole(ctx, userID, roleID)
	if err != nil {
		if isNotFound(err) {
			return apperrors.NotFound("用户未分配该角色")
		}
		return apperrors.Internal("查询角色分配失败", err)
	}
	if !existing.IsActive {
		return apperrors.NotFound("用户未分配该角色")
	}

	now := s.now()
	existing.IsActive = false
	existing.RevokedBy = uintPtr(actor.UserID)
	existing.RevokedAt = timePtr(now)
	if err := s.repos.UserRoles.Update(ctx, existing); err != nil {
		return apperrors.Internal("撤销角色失败", err)
	}
	s.logChange("撤销角色", actor, userID, role)
	return nil
}

func (s *AssignmentService) tenantUser(ctx context.Context, restaurantID, userID uint) (*models.User, error) {
	user, err := s.repos.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "用户不存在")
	}
	if user.RestaurantID != restaurantID {
		return nil, apperrors.NotFound("用户不存在")
	}
	return user, nil
}

func (s *AssignmentService) visibleRole(ctx context.Context, restaurantID, roleID uint) (*models.Role, error) {
	role, err := s.repos.Roles.FindByID(ctx, roleID)
	if err != nil {
		return nil, lookupError(err, "角色不存在")
	}
	if !role.VisibleTo(restaurantID) {
		return nil, apperrors.NotFound("角色不存在")
	}
	return role, nil
}

func (s *AssignmentService) assignableRole(ctx context.Context, actor Actor, roleID uint) (*models.Role, error) {
	role, err := s.visibleRole(ctx, actor.RestaurantID, roleID)
	if err != nil {
		return nil, err
	}
	if !role.IsActive {
		return nil, apperrors.BusinessRule("角色已停用，无法分配")
	}
	if err := s.guard.checkRole(ctx, actor, role); err != nil {
		return nil, err
	}
	// 角色包含自己没有的权限时同样视为越级
	if err := s.guard.checkGrants(ctx, actor, role.PermissionSet()); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *AssignmentService) logChange(action string, actor Actor, userID uint, role *models.Role) {
	logger.GetLogger().WithFields(logrus.Fields{
		"actor_id":      actor.UserID,
		"restaurant_id": actor.RestaurantID,
		"user_id":       userID,
		"role":          role.Slug,
	}).Info(action)
}
