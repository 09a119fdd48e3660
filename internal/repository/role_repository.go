package repository

import (
	"context"

	"mesa/internal/models"
	"mesa/pkg/pagination"

	"gorm.io/gorm"
)

// RoleRepository 角色仓储
type RoleRepository interface {
	Create(ctx context.Context, role *models.Role) error
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*models.Role, error)
	FindBySlug(ctx context.Context, restaurantID *uint, slug string) (*models.Role, error)
	// FindVisible 餐厅可见的角色（系统 + 本餐厅），按级别排序
	FindVisible(ctx context.Context, restaurantID uint, activeOnly bool, page pagination.PageParams) ([]models.Role, int64, error)
	// FindByTenant 仅本餐厅自建的角色
	FindByTenant(ctx context.Context, restaurantID uint) ([]models.Role, error)
	FindSystem(ctx context.Context) ([]models.Role, error)
}

type roleRepository struct {
	db *gorm.DB
}

func (r *roleRepository) Create(ctx context.Context, role *models.Role) error {
	return translate(r.db.WithContext(ctx).Create(role).Error)
}

func (r *roleRepository) Update(ctx context.Context, role *models.Role) error {
	return save(ctx, r.db, role)
}

func (r *roleRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Role{}, id).Error
}

func (r *roleRepository) FindByID(ctx context.Context, id uint) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).First(&role, id).Error; err != nil {
		return nil, translate(err)
	}
	return &role, nil
}

func (r *roleRepository) FindBySlug(ctx context.Context, restaurantID *uint, slug string) (*models.Role, error) {
	var role models.Role
	err := r.db.WithContext(ctx).
		Scopes(inScope(restaurantID)).
		Where("slug = ?", slug).
		First(&role).Error
	if err != nil {
		return nil, translate(err)
	}
	return &role, nil
}

func (r *roleRepository) FindVisible(ctx context.Context, restaurantID uint, activeOnly bool, page pagination.PageParams) ([]models.Role, int64, error) {
	var roles []models.Role
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Role{}).Scopes(visibleTo(restaurantID))
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("level, id").Offset(page.Offset()).Limit(page.Limit()).Find(&roles).Error
	if err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

func (r *roleRepository) FindByTenant(ctx context.Context, restaurantID uint) ([]models.Role, error) {
	var roles []models.Role
	err := r.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID).Order("id").Find(&roles).Error
	return roles, err
}

func (r *roleRepository) FindSystem(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	err := r.db.WithContext(ctx).Where("is_system_role = ?", true).Order("level").Find(&roles).Error
	return roles, err
}
