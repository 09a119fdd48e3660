package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"mesa/internal/models"
	"mesa/internal/repository"
	apperrors "mesa/pkg/errors"
	"mesa/pkg/logger"
	"mesa/pkg/pagination"

	"github.com/sirupsen/logrus"
)

type RoleService struct {
	repos       *repository.Repositories
	permissions *PermissionService
	resolver    *PermissionResolver
	now         func() time.Time
}

func NewRoleService(repos *repository.Repositories, permissions *PermissionService, resolver *PermissionResolver, now func() time.Time) *RoleService {
	if now == nil {
		now = time.Now
	}
	return &RoleService{repos: repos, permissions: permissions, resolver: resolver, now: now}
}

// CreateRoleInput 创建餐厅自定义角色
type CreateRoleInput struct {
	Name        string
	Description string
	Level       int
	Permissions []string
}

// UpdateRoleInput 修改角色，nil 表示不修改；Permissions 为 nil 时保持原权限
type UpdateRoleInput struct {
	Name        *string
	Description *string
	Level       *int
	Permissions []string
	IsActive    *bool
}

// ========== 系统角色初始化 ==========

// CreateSystemRoles 幂等创建系统角色。已存在的角色只在权限集变化时更新。
func (s *RoleService) CreateSystemRoles(ctx context.Context) (created, updated int, err error) {
	systemPerms, err := s.repos.Permissions.FindSystem(ctx)
	if err != nil {
		return 0, 0, apperrors.Internal("获取系统权限失败", err)
	}
	all := make([]string, 0, len(systemPerms))
	for _, p := range systemPerms {
		all = append(all, p.Slug)
	}

	for _, def := range SystemRoles() {
		want := def.Grants(all)

		existing, err := s.repos.Roles.FindBySlug(ctx, nil, def.Slug)
		if err != nil && !isNotFound(err) {
			return created, updated, apperrors.Internal("查询系统角色失败", err)
		}

		if existing == nil {
			role := &models.Role{
				Slug:         def.Slug,
				Name:         def.Name,
				Description:  def.Description,
				Level:        def.Level,
				IsSystemRole: true,
				IsActive:     true,
			}
			role.SetPermissions(want)
			if err := s.repos.Roles.Create(ctx, role); err != nil {
				return created, updated, apperrors.Internal("创建系统角色失败", err)
			}
			created++
			continue
		}

		if existing.PermissionSet().Equal(want) {
			continue
		}
		existing.SetPermissions(want)
		if err := s.repos.Roles.Update(ctx, existing); err != nil {
			return created, updated, apperrors.Internal("更新系统角色失败", err)
		}
		updated++
		s.invalidateHolders(ctx, existing.ID)
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"created": created,
		"updated": updated,
	}).Info("系统角色初始化完成")
	return created, updated, nil
}

// ========== 查询 ==========

// List 餐厅可见的角色
func (s *RoleService) List(ctx context.Context, restaurantID uint, activeOnly bool, page pagination.PageParams) ([]models.Role, int64, error) {
	roles, total, err := s.repos.Roles.FindVisible(ctx, restaurantID, activeOnly, page)
	if err != nil {
		return nil, 0, apperrors.Internal("获取角色列表失败", err)
	}
	return roles, total, nil
}

// Get 获取角色，其他餐厅的角色视为不存在
func (s *RoleService) Get(ctx context.Context, restaurantID, id uint) (*models.Role, error) {
	role, err := s.repos.Roles.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "角色不存在")
	}
	if !role.VisibleTo(restaurantID) {
		return nil, apperrors.NotFound("角色不存在")
	}
	return role, nil
}

// ========== 自定义角色 ==========

// RoleSlug 由名称生成角色标识：小写，每个空格替换为一个下划线
func RoleSlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

func (s *RoleService) Create(ctx context.Context, restaurantID uint, input CreateRoleInput) (*models.Role, error) {
	input.Name = strings.TrimSpace(input.Name)

	fields := make(map[string]string)
	if msg := validateRoleName(input.Name); msg != "" {
		fields["name"] = msg
	}
	if msg := validateRoleLevel(input.Level); msg != "" {
		fields["level"] = msg
	}
	if len(fields) > 0 {
		return nil, apperrors.ValidationFields(fields)
	}

	slug := RoleSlug(input.Name)
	if err := s.checkSlugAvailable(ctx, restaurantID, slug); err != nil {
		return nil, err
	}
	if err := s.permissions.ValidateSlugs(ctx, restaurantID, input.Permissions); err != nil {
		return nil, err
	}

	role := &models.Role{
		RestaurantID: uintPtr(restaurantID),
		Slug:         slug,
		Name:         input.Name,
		Description:  input.Description,
		Level:        input.Level,
		IsActive:     true,
	}
	role.SetPermissions(models.NewPermissionSet(input.Permissions...))

	if err := s.repos.Roles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ValidationField("name", "角色标识已存在: "+slug)
		}
		return nil, apperrors.Internal("创建角色失败", err)
	}
	return role, nil
}

// Update 修改自定义角色。改名不会改变标识。
func (s *RoleService) Update(ctx context.Context, restaurantID, id uint, input UpdateRoleInput) (*models.Role, error) {
	role, err := s.Get(ctx, restaurantID, id)
	if err != nil {
		return nil, err
	}
	if role.IsSystemRole || role.RestaurantID == nil {
		return nil, apperrors.BusinessRule("系统角色不允许修改")
	}

	fields := make(map[string]string)
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if msg := validateRoleName(name); msg != "" {
			fields["name"] = msg
		} else {
			role.Name = name
		}
	}
	if input.Level != nil {
		if msg := validateRoleLevel(*input.Level); msg != "" {
			fields["level"] = msg
		} else {
			role.Level = *input.Level
		}
	}
	if len(fields) > 0 {
		return nil, apperrors.ValidationFields(fields)
	}
	if input.Description != nil {
		role.Description = *input.Description
	}
	if input.IsActive != nil {
		role.IsActive = *input.IsActive
	}
	if input.Permissions != nil {
		if err := s.permissions.ValidateSlugs(ctx, restaurantID, input.Permissions); err != nil {
			return nil, err
		}
		role.SetPermissions(models.NewPermissionSet(input.Permissions...))
	}

	if err := s.repos.Roles.Update(ctx, role); err != nil {
		return nil, apperrors.Internal("更新角色失败", err)
	}
	s.invalidateHolders(ctx, role.ID)
	return role, nil
}

// Delete 删除自定义角色，系统角色和仍有生效分配的角色不可删除
func (s *RoleService) Delete(ctx context.Context, restaurantID, id uint) error {
	role, err := s.Get(ctx, restaurantID, id)
	if err != nil {
		return err
	}
	if role.IsSystemRole || role.RestaurantID == nil {
		return apperrors.BusinessRule("系统角色不允许删除")
	}

	count, err := s.repos.UserRoles.CountEffectiveByRole(ctx, role.ID, s.now())
	if err != nil {
		return apperrors.Internal("检查角色使用情况失败", err)
	}
	if count > 0 {
		return apperrors.BusinessRule("角色仍有用户在使用，无法删除")
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		// 已撤销或已过期的历史分配一并清理
		if err := tx.UserRoles.DeleteByRole(ctx, role.ID); err != nil {
			return err
		}
		return tx.Roles.Delete(ctx, role.ID)
	})
	if err != nil {
		return apperrors.Internal("删除角色失败", err)
	}
	return nil
}

// ========== 内部方法 ==========

func (s *RoleService) checkSlugAvailable(ctx context.Context, restaurantID uint, slug string) error {
	for _, scope := range []*uint{nil, uintPtr(restaurantID)} {
		_, err := s.repos.Roles.FindBySlug(ctx, scope, slug)
		if err == nil {
			return apperrors.ValidationField("name", "角色标识已存在: "+slug)
		}
		if !isNotFound(err) {
			return apperrors.Internal("检查角色标识失败", err)
		}
	}
	return nil
}

func (s *RoleService) invalidateHolders(ctx context.Context, roleID uint) {
	userIDs, err := s.repos.UserRoles.FindUserIDsByRole(ctx, roleID)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("role_id", roleID).Error("查询角色用户失败，无法清除权限缓存")
		return
	}
	s.resolver.Invalidate(ctx, userIDs...)
}

func validateRoleName(name string) string {
	if !valid(name, ruleRoleName) {
		return "角色名称长度必须在2-50个字符之间"
	}
	return ""
}

func validateRoleLevel(level int) string {
	if level < models.RoleLevelMin || level > models.RoleLevelMax {
		return "角色级别必须在1-100之间"
	}
	return ""
}
