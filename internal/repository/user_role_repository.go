package repository

import (
	"context"
	"time"

	"mesa/internal/models"

	"gorm.io/gorm"
)

// UserRoleRepository 用户角色分配仓储
type UserRoleRepository interface {
	Create(ctx context.Context, assignment *models.UserRole) error
	Update(ctx context.Context, assignment *models.UserRole) error
	FindByUserAndRole(ctx context.Context, userID, roleID uint) (*models.UserRole, error)
	// FindByUser 用户的全部分配记录（含已撤销），预加载角色
	FindByUser(ctx context.Context, userID uint) ([]models.UserRole, error)
	// FindEffectiveByUser 在 now 时刻生效的分配，预加载角色
	FindEffectiveByUser(ctx context.Context, userID uint, now time.Time) ([]models.UserRole, error)
	CountEffectiveByRole(ctx context.Context, roleID uint, now time.Time) (int64, error)
	// FindUserIDsByRole 持有该角色（未撤销）的用户
	FindUserIDsByRole(ctx context.Context, roleID uint) ([]uint, error)
	DeleteByUser(ctx context.Context, userID uint) error
	DeleteByRole(ctx context.Context, roleID uint) error
}

type userRoleRepository struct {
	db *gorm.DB
}

func effectiveAt(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("is_active = ? AND (expires_at IS NULL OR expires_at > ?)", true, now)
	}
}

func (r *userRoleRepository) Create(ctx context.Context, assignment *models.UserRole) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *userRoleRepository) Update(ctx context.Context, assignment *models.UserRole) error {
	return save(ctx, r.db, assignment)
}

func (r *userRoleRepository) FindByUserAndRole(ctx context.Context, userID, roleID uint) (*models.UserRole, error) {
	var assignment models.UserRole
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		First(&assignment).Error
	if err != nil {
		return nil, translate(err)
	}
	return &assignment, nil
}

func (r *userRoleRepository) FindByUser(ctx context.Context, userID uint) ([]models.UserRole, error) {
	var assignments []models.UserRole
	err := r.db.WithContext(ctx).
		Preload("Role").
		Where("user_id = ?", userID).
		Order("id").
		Find(&assignments).Error
	return assignments, err
}

func (r *userRoleRepository) FindEffectiveByUser(ctx context.Context, userID uint, now time.Time) ([]models.UserRole, error) {
	var assignments []models.UserRole
	err := r.db.WithContext(ctx).
		Preload("Role").
		Scopes(effectiveAt(now)).
		Where("user_id = ?", userID).
		Order("id").
		Find(&assignments).Error
	return assignments, err
}

func (r *userRoleRepository) CountEffectiveByRole(ctx context.Context, roleID uint, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserRole{}).
		Scopes(effectiveAt(now)).
		Where("role_id = ?", roleID).
		Count(&count).Error
	return count, err
}

func (r *userRoleRepository) FindUserIDsByRole(ctx context.Context, roleID uint) ([]uint, error) {
	var userIDs []uint
	err := r.db.WithContext(ctx).Model(&models.UserRole{}).
		Where("role_id = ? AND is_active = ?", roleID, true).
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

func (r *userRoleRepository) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserRole{}).Error
}

// DeleteByRole 删除角色的全部分配记录
func (r *userRoleRepository) DeleteByRole(ctx context.Context, roleID uint) error {
	return r.db.WithContext(ctx).Where("role_id = ?", roleID).Delete(&models.UserRole{}).Error
}
