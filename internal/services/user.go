package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mesa/internal/models"
	"mesa/internal/repository"
	apperrors "mesa/pkg/errors"
	"mesa/pkg/logger"
	"mesa/pkg/pagination"
)

// UserLimiter 套餐用户数限制
type UserLimiter interface {
	CheckUserLimit(ctx context.Context, restaurantID uint) error
}

type UserService struct {
	repos       *repository.Repositories
	permissions *PermissionService
	resolver    *PermissionResolver
	limiter     UserLimiter
	guard       *levelGuard
	now         func() time.Time
}

func NewUserService(repos *repository.Repositories, permissions *PermissionService, resolver *PermissionResolver, limiter UserLimiter, now func() time.Time) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{
		repos:       repos,
		permissions: permissions,
		resolver:    resolver,
		limiter:     limiter,
		guard:       newLevelGuard(repos, resolver, now),
		now:         now,
	}
}

// CreateUserInput 创建用户参数
type CreateUserInput struct {
	Username          string
	Email             string
	Password          string
	Name              string
	CustomPermissions []string
}

// UpdateUserInput 修改用户参数，nil 表示不修改
type UpdateUserInput struct {
	Email    *string
	Name     *string
	IsActive *bool
}

// ========== 基础CRUD方法 ==========

// Create 在餐厅下创建用户，自定义权限不能超出操作人自己的权限
func (s *UserService) Create(ctx context.Context, actor Actor, input CreateUserInput) (*models.User, error) {
	restaurantID := actor.RestaurantID
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Name = strings.TrimSpace(input.Name)

	if fields := ValidateUserFields(input.Username, input.Email, input.Password, input.Name); len(fields) > 0 {
		return nil, apperrors.ValidationFields(fields)
	}

	if err := s.checkUsername(ctx, input.Username); err != nil {
		return nil, err
	}
	if err := s.checkEmail(ctx, restaurantID, input.Email, 0); err != nil {
		return nil, err
	}
	if err := s.permissions.ValidateSlugs(ctx, restaurantID, input.CustomPermissions); err != nil {
		return nil, err
	}
	if err := s.guard.checkGrants(ctx, actor, models.NewPermissionSet(input.CustomPermissions...)); err != nil {
		return nil, err
	}
	if s.limiter != nil {
		if err := s.limiter.CheckUserLimit(ctx, restaurantID); err != nil {
			return nil, err
		}
	}

	user := &models.User{
		RestaurantID: restaurantID,
		Username:     input.Username,
		Email:        input.Email,
		Name:         input.Name,
		IsActive:     true,
	}
	user.SetCustomPermissions(models.NewPermissionSet(input.CustomPermissions...))
	if err := user.SetPassword(input.Password); err != nil {
		return nil, apperrors.Internal("密码加密失败", err)
	}

	if err := s.repos.Users.Create(ctx, user); err != nil {
		return nil, apperrors.Internal("创建用户失败", err)
	}
	return user, nil
}

// Get 获取餐厅下的用户，其他餐厅的用户视为不存在
func (s *UserService) Get(ctx context.Context, restaurantID, id uint) (*models.User, error) {
	user, err := s.repos.Users.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "用户不存在")
	}
	if user.RestaurantID != restaurantID {
		return nil, apperrors.NotFound("用户不存在")
	}
	return user, nil
}

// GetByID 不做餐厅校验，用于登录态加载
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repos.Users.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "用户不存在")
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, restaurantID uint, keyword string, page pagination.PageParams) ([]models.User, int64, error) {
	users, total, err := s.repos.Users.FindByTenant(ctx, restaurantID, strings.TrimSpace(keyword), page)
	if err != nil {
		return nil, 0, apperrors.Internal("获取用户列表失败", err)
	}
	return users, total, nil
}

func (s *UserService) Update(ctx context.Context, actor Actor, id uint, input UpdateUserInput) (*models.User, error) {
	restaurantID := actor.RestaurantID
	user, err := s.managedUser(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if !ValidateName(name) {
			fields["name"] = "姓名长度必须在2-100个字符之间"
		} else {
			user.Name = name
		}
	}
	if input.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*input.Email))
		if !ValidateEmail(email) {
			fields["email"] = "邮箱格式不正确"
		} else if email != user.Email {
			if err := s.checkEmail(ctx, restaurantID, email, user.ID); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if len(fields) > 0 {
		return nil, apperrors.ValidationFields(fields)
	}

	statusChanged := input.IsActive != nil && *input.IsActive != user.IsActive
	if statusChanged && *input.IsActive && s.limiter != nil {
		// 重新启用占用名额
		if err := s.limiter.CheckUserLimit(ctx, restaurantID); err != nil {
			return nil, err
		}
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.repos.Users.Update(ctx, user); err != nil {
		return nil, apperrors.Internal("更新用户失败", err)
	}
	if statusChanged {
		s.resolver.Invalidate(ctx, user.ID)
	}
	return user, nil
}

// Delete 删除用户及其角色分配
func (s *UserService) Delete(ctx context.Context, actor Actor, id uint) error {
	if actor.UserID == id {
		return apperrors.BusinessRule("不能删除当前登录用户")
	}
	user, err := s.managedUser(ctx, actor, id)
	if err != nil {
		return err
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.UserRoles.DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		return tx.Users.Delete(ctx, user.ID)
	})
	if err != nil {
		return apperrors.Internal("删除用户失败", err)
	}

	s.resolver.Invalidate(ctx, user.ID)
	logger.GetLogger().WithField("user_id", user.ID).WithField("actor_id", actor.UserID).Info("删除用户")
	return nil
}

// ========== 权限与密码 ==========

// SetCustomPermissions 覆盖用户的自定义权限，新增的权限必须是操作人自己拥有的
func (s *UserService) SetCustomPermissions(ctx context.Context, actor Actor, id uint, slugs []string) (*models.User, error) {
	user, err := s.managedUser(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.ValidateSlugs(ctx, actor.RestaurantID, slugs); err != nil {
		return nil, err
	}

	wanted := models.NewPermissionSet(slugs...)
	added := models.NewPermissionSet(slugs...)
	added.Remove(user.CustomPermissionSet().Slice()...)
	if err := s.guard.checkGrants(ctx, actor, added); err != nil {
		return nil, err
	}

	user.SetCustomPermissions(wanted)
	if err := s.repos.Users.Update(ctx, user); err != nil {
		return nil, apperrors.Internal("更新用户权限失败", err)
	}
	s.resolver.Invalidate(ctx, user.ID)
	return user, nil
}

// Permissions 用户的有效权限
func (s *UserService) Permissions(ctx context.Context, restaurantID, id uint) ([]string, error) {
	if _, err := s.Get(ctx, restaurantID, id); err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, id).Slice(), nil
}

// ResetPassword 管理员重置其他用户的密码
func (s *UserService) ResetPassword(ctx context.Context, actor Actor, id uint, password string) error {
	if err := ValidatePassword(password); err != nil {
		return apperrors.ValidationField("password", err.Error())
	}
	user, err := s.managedUser(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := user.SetPassword(password); err != nil {
		return apperrors.Internal("密码加密失败", err)
	}
	if err := s.repos.Users.Update(ctx, user); err != nil {
		return apperrors.Internal("重置密码失败", err)
	}
	return nil
}

// ChangePassword 用户修改自己的密码
func (s *UserService) ChangePassword(ctx context.Context, id uint, oldPassword, newPassword string) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !user.CheckPassword(oldPassword) {
		return apperrors.ValidationField("old_password", "原密码不正确")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return apperrors.ValidationField("new_password", err.Error())
	}
	if err := user.SetPassword(newPassword); err != nil {
		return apperrors.Internal("密码加密失败", err)
	}
	if err := s.repos.Users.Update(ctx, user); err != nil {
		return apperrors.Internal("修改密码失败", err)
	}
	return nil
}

// Authenticate 校验用户名密码并记录登录时间
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.repos.Users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.Unauthorized("用户名或密码错误")
		}
		return nil, apperrors.Internal("登录失败", err)
	}
	if !user.CheckPassword(password) {
		return nil, apperrors.Unauthorized("用户名或密码错误")
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("用户已被禁用")
	}

	now := s.now()
	if err := s.repos.Users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		logger.GetLogger().WithError(err).WithField("user_id", user.ID).Warn("更新最后登录时间失败")
	} else {
		user.LastLoginAt = &now
	}
	return user, nil
}

// ========== 验证方法 ==========

// managedUser 获取操作人有权管理的本餐厅用户
func (s *UserService) managedUser(ctx context.Context, actor Actor, id uint) (*models.User, error) {
	user, err := s.Get(ctx, actor.RestaurantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.checkUser(ctx, actor, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) checkUsername(ctx context.Context, username string) error {
	_, err := s.repos.Users.FindByUsername(ctx, username)
	if err == nil {
		return apperrors.ValidationField("username", "用户名已存在")
	}
	if !isNotFound(err) {
		return apperrors.Internal("检查用户名失败", err)
	}
	return nil
}

func (s *UserService) checkEmail(ctx context.Context, restaurantID uint, email string, exceptID uint) error {
	existing, err := s.repos.Users.FindByEmail(ctx, restaurantID, email)
	if err == nil && existing.ID != exceptID {
		return apperrors.ValidationField("email", "邮箱已存在")
	}
	if err != nil && !isNotFound(err) {
		return apperrors.Internal("检查邮箱失败", err)
	}
	return nil
}

// ValidateUserFields 校验新用户的基本字段，返回字段错误
func ValidateUserFields(username, email, password, name string) map[string]string {
	fields := make(map[string]string)
	if !ValidateUsername(username) {
		fields["username"] = "用户名只能包含字母、数字和下划线，长度3-50"
	}
	if !ValidateEmail(email) {
		fields["email"] = "邮箱格式不正确"
	}
	if err := ValidatePassword(password); err != nil {
		fields["password"] = err.Error()
	}
	if !ValidateName(name) {
		fields["name"] = "姓名长度必须在2-100个字符之间"
	}
	return fields
}

func ValidateUsername(username string) bool {
	return valid(username, ruleUsername)
}

func ValidateEmail(email string) bool {
	return valid(email, ruleEmail)
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("密码长度不能少于8位")
	}
	if len(password) > 72 {
		return fmt.Errorf("密码长度不能超过72位")
	}
	return nil
}

func ValidateName(name string) bool {
	return valid(name, ruleName)
}
