package repository

import (
	"context"

	"mesa/internal/models"
	"mesa/pkg/pagination"

	"gorm.io/gorm"
)

// PermissionRepository 权限仓储
type PermissionRepository interface {
	Create(ctx context.Context, permission *models.Permission) error
	Update(ctx context.Context, permission *models.Permission) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*models.Permission, error)
	// FindBySlug 在指定作用域内按标识查找，restaurantID 为 nil 时查全局
	FindBySlug(ctx context.Context, restaurantID *uint, slug string) (*models.Permission, error)
	// FindVisible 餐厅可见的权限（全局 + 本餐厅），可按模块筛选
	FindVisible(ctx context.Context, restaurantID uint, module string, page pagination.PageParams) ([]models.Permission, int64, error)
	FindVisibleBySlugs(ctx context.Context, restaurantID uint, slugs []string) ([]models.Permission, error)
	FindSystem(ctx context.Context) ([]models.Permission, error)
}

type permissionRepository struct {
	db *gorm.DB
}

func (r *permissionRepository) Create(ctx context.Context, permission *models.Permission) error {
	return translate(r.db.WithContext(ctx).Create(permission).Error)
}

func (r *permissionRepository) Update(ctx context.Context, permission *models.Permission) error {
	return save(ctx, r.db, permission)
}

func (r *permissionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Permission{}, id).Error
}

func (r *permissionRepository) FindByID(ctx context.Context, id uint) (*models.Permission, error) {
	var permission models.Permission
	if err := r.db.WithContext(ctx).First(&permission, id).Error; err != nil {
		return nil, translate(err)
	}
	return &permission, nil
}

func (r *permissionRepository) FindBySlug(ctx context.Context, restaurantID *uint, slug string) (*models.Permission, error) {
	var permission models.Permission
	err := r.db.WithContext(ctx).
		Scopes(inScope(restaurantID)).
		Where("slug = ?", slug).
		First(&permission).Error
	if err != nil {
		return nil, translate(err)
	}
	return &permission, nil
}

func (r *permissionRepository) FindVisible(ctx context.Context, restaurantID uint, module string, page pagination.PageParams) ([]models.Permission, int64, error) {
	var permissions []models.Permission
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Permission{}).Scopes(visibleTo(restaurantID))
	if module != "" {
		query = query.Where("module = ?", module)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("module, slug").Offset(page.Offset()).Limit(page.Limit()).Find(&permissions).Error
	if err != nil {
		return nil, 0, err
	}
	return permissions, total, nil
}

func (r *permissionRepository) FindVisibleBySlugs(ctx context.Context, restaurantID uint, slugs []string) ([]models.Permission, error) {
	var permissions []models.Permission
	if len(slugs) == 0 {
		return permissions, nil
	}
	err := r.db.WithContext(ctx).
		Scopes(visibleTo(restaurantID)).
		Where("slug IN ?", slugs).
		Find(&permissions).Error
	return permissions, err
}

func (r *permissionRepository) FindSystem(ctx context.Context) ([]models.Permission, error) {
	var permissions []models.Permission
	err := r.db.WithContext(ctx).
		Where("is_system_permission = ?", true).
		Order("module, slug").
		Find(&permissions).Error
	return permissions, err
}
