package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"mesa/internal/models"
	"mesa/internal/repository"
	apperrors "mesa/pkg/errors"
	"mesa/pkg/logger"
	"mesa/pkg/pagination"
)

type PermissionService struct {
	repos    *repository.Repositories
	resolver *PermissionResolver
}

func NewPermissionService(repos *repository.Repositories, resolver *PermissionResolver) *PermissionService {
	return &PermissionService{repos: repos, resolver: resolver}
}

// CreatePermissionInput 创建餐厅自定义权限
type CreatePermissionInput struct {
	Module      string
	Action      string
	Name        string
	Description string
}

// UpdatePermissionInput 修改自定义权限，nil 表示不修改
type UpdatePermissionInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// ========== 系统权限初始化 ==========

// CreateSystemPermissions 按标识幂等创建系统权限，返回新创建的数量
func (s *PermissionService) CreateSystemPermissions(ctx context.Context) (int, error) {
	created := 0
	for _, def := range SystemPermissions() {
		_, err := s.repos.Permissions.FindBySlug(ctx, nil, def.Slug)
		if err == nil {
			continue
		}
		if !isNotFound(err) {
			return created, apperrors.Internal("查询系统权限失败", err)
		}
		perm := def
		if err := s.repos.Permissions.Create(ctx, &perm); err != nil {
			return created, apperrors.Internal("创建系统权限失败", err)
		}
		created++
	}
	if created > 0 {
		logger.GetLogger().WithField("created", created).Info("系统权限初始化完成")
	}
	return created, nil
}

// ========== 查询 ==========

// List 餐厅可见的权限（全局权限与本餐厅自定义权限）
func (s *PermissionService) List(ctx context.Context, restaurantID uint, module string, page pagination.PageParams) ([]models.Permission, int64, error) {
	perms, total, err := s.repos.Permissions.FindVisible(ctx, restaurantID, module, page)
	if err != nil {
		return nil, 0, apperrors.Internal("获取权限列表失败", err)
	}
	return perms, total, nil
}

// Get 获取权限，其他餐厅的权限视为不存在
func (s *PermissionService) Get(ctx context.Context, restaurantID, id uint) (*models.Permission, error) {
	perm, err := s.repos.Permissions.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "权限不存在")
	}
	if !perm.VisibleTo(restaurantID) {
		return nil, apperrors.NotFound("权限不存在")
	}
	return perm, nil
}

// Modules 餐厅可见的权限模块列表
func (s *PermissionService) Modules(ctx context.Context, restaurantID uint) ([]string, error) {
	perms, _, err := s.repos.Permissions.FindVisible(ctx, restaurantID, "", pagination.All())
	if err != nil {
		return nil, apperrors.Internal("获取权限模块失败", err)
	}
	seen := make(map[string]struct{})
	modules := make([]string, 0)
	for _, p := range perms {
		if _, ok := seen[p.Module]; ok {
			continue
		}
		seen[p.Module] = struct{}{}
		modules = append(modules, p.Module)
	}
	sort.Strings(modules)
	return modules, nil
}

// ========== 自定义权限 ==========

func (s *PermissionService) Create(ctx context.Context, restaurantID uint, input CreatePermissionInput) (*models.Permission, error) {
	input.Module = strings.TrimSpace(input.Module)
	input.Action = strings.TrimSpace(input.Action)
	input.Name = strings.TrimSpace(input.Name)

	fields := make(map[string]string)
	if !valid(input.Module, rulePermissionPart) {
		fields["module"] = "模块名只能包含小写字母、数字和下划线，长度2-50"
	}
	if !valid(input.Action, rulePermissionPart) {
		fields["action"] = "操作名只能包含小写字母、数字和下划线，长度2-50"
	}
	if !valid(input.Name, ruleName) {
		fields["name"] = "权限名称长度必须在2-100个字符之间"
	}
	if len(fields) > 0 {
		return nil, apperrors.ValidationFields(fields)
	}

	slug := models.PermissionSlug(input.Module, input.Action)
	existing, err := s.repos.Permissions.FindVisibleBySlugs(ctx, restaurantID, []string{slug})
	if err != nil {
		return nil, apperrors.Internal("检查权限标识失败", err)
	}
	if len(existing) > 0 {
		return nil, apperrors.ValidationField("slug", "权限标识已存在: "+slug)
	}

	perm := &models.Permission{
		RestaurantID: uintPtr(restaurantID),
		Slug:         slug,
		Name:         input.Name,
		Description:  input.Description,
		Module:       input.Module,
		Action:       input.Action,
		IsActive:     true,
	}
	if err := s.repos.Permissions.Create(ctx, perm); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ValidationField("slug", "权限标识已存在: "+slug)
		}
		return nil, apperrors.Internal("创建权限失败", err)
	}
	return perm, nil
}

func (s *PermissionService) Update(ctx context.Context, restaurantID, id uint, input UpdatePermissionInput) (*models.Permission, error) {
	perm, err := s.Get(ctx, restaurantID, id)
	if err != nil {
		return nil, err
	}
	if perm.IsSystemPermission || perm.RestaurantID == nil {
		return nil, apperrors.BusinessRule("系统权限不允许修改")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if !valid(name, ruleName) {
			return nil, apperrors.ValidationField("name", "权限名称长度必须在2-100个字符之间")
		}
		perm.Name = name
	}
	if input.Description != nil {
		perm.Description = *input.Description
	}
	statusChanged := input.IsActive != nil && *input.IsActive != perm.IsActive
	if input.IsActive != nil {
		perm.IsActive = *input.IsActive
	}

	if err := s.repos.Permissions.Update(ctx, perm); err != nil {
		return nil, apperrors.Internal("更新权限失败", err)
	}

	if statusChanged {
		affected, err := s.holders(ctx, s.repos, restaurantID, perm.Slug)
		if err != nil {
			return nil, apperrors.Internal("查询受影响用户失败", err)
		}
		s.resolver.Invalidate(ctx, affected...)
	}
	return perm, nil
}

// Delete 删除自定义权限，同时从本餐厅角色和用户自定义权限中移除。
// 系统权限任何情况下都不允许删除。
func (s *PermissionService) Delete(ctx context.Context, restaurantID, id uint) error {
	perm, err := s.Get(ctx, restaurantID, id)
	if err != nil {
		return err
	}
	if perm.IsSystemPermission || perm.RestaurantID == nil {
		return apperrors.BusinessRule("系统权限不允许删除")
	}

	var affected []uint
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		affected, err = s.holders(ctx, tx, restaurantID, perm.Slug)
		if err != nil {
			return err
		}

		roles, err := tx.Roles.FindByTenant(ctx, restaurantID)
		if err != nil {
			return err
		}
		for i := range roles {
			set := roles[i].PermissionSet()
			if !set.Has(perm.Slug) {
				continue
			}
			set.Remove(perm.Slug)
			roles[i].SetPermissions(set)
			if err := tx.Roles.Update(ctx, &roles[i]); err != nil {
				return err
			}
		}

		users, _, err := tx.Users.FindByTenant(ctx, restaurantID, "", pagination.All())
		if err != nil {
			return err
		}
		for i := range users {
			set := users[i].CustomPermissionSet()
			if !set.Has(perm.Slug) {
				continue
			}
			set.Remove(perm.Slug)
			users[i].SetCustomPermissions(set)
			if err := tx.Users.Update(ctx, &users[i]); err != nil {
				return err
			}
		}

		return tx.Permissions.Delete(ctx, perm.ID)
	})
	if err != nil {
		return apperrors.Internal("删除权限失败", err)
	}

	s.resolver.Invalidate(ctx, affected...)
	return nil
}

// ValidateSlugs 校验权限标识均存在且对餐厅可见
func (s *PermissionService) ValidateSlugs(ctx context.Context, restaurantID uint, slugs []string) error {
	if len(slugs) == 0 {
		return nil
	}
	wanted := models.NewPermissionSet(slugs...)
	found, err := s.repos.Permissions.FindVisibleBySlugs(ctx, restaurantID, wanted.Slice())
	if err != nil {
		return apperrors.Internal("校验权限失败", err)
	}
	for _, p := range found {
		wanted.Remove(p.Slug)
	}
	if wanted.Len() > 0 {
		return apperrors.ValidationField("permissions", "权限不存在: "+strings.Join(wanted.Slice(), ", "))
	}
	return nil
}

// holders 通过本餐厅角色或自定义权限持有该权限的用户
func (s *PermissionService) holders(ctx context.Context, repos *repository.Repositories, restaurantID uint, slug string) ([]uint, error) {
	ids := make(map[uint]struct{})

	roles, err := repos.Roles.FindByTenant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if !role.PermissionSet().Has(slug) {
			continue
		}
		userIDs, err := repos.UserRoles.FindUserIDsByRole(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range userIDs {
			ids[id] = struct{}{}
		}
	}

	users, _, err := repos.Users.FindByTenant(ctx, restaurantID, "", pagination.All())
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.CustomPermissionSet().Has(slug) {
			ids[u.ID] = struct{}{}
		}
	}

	result := make([]uint, 0, len(ids))
	for id := range ids {
		result = append(result, id)
	}
	return result, nil
}
