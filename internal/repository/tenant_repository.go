package repository

import (
	"context"

	"mesa/internal/models"

	"gorm.io/gorm"
)

// RestaurantRepository 餐厅仓储
type RestaurantRepository interface {
	Create(ctx context.Context, restaurant *models.Restaurant) error
	Update(ctx context.Context, restaurant *models.Restaurant) error
	FindByID(ctx context.Context, id uint) (*models.Restaurant, error)
	FindByCode(ctx context.Context, code string) (*models.Restaurant, error)
}

type restaurantRepository struct {
	db *gorm.DB
}

func (r *restaurantRepository) Create(ctx context.Context, restaurant *models.Restaurant) error {
	return r.db.WithContext(ctx).Create(restaurant).Error
}

func (r *restaurantRepository) Update(ctx context.Context, restaurant *models.Restaurant) error {
	return save(ctx, r.db, restaurant)
}

func (r *restaurantRepository) FindByID(ctx context.Context, id uint) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := r.db.WithContext(ctx).First(&restaurant, id).Error; err != nil {
		return nil, translate(err)
	}
	return &restaurant, nil
}

func (r *restaurantRepository) FindByCode(ctx context.Context, code string) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&restaurant).Error; err != nil {
		return nil, translate(err)
	}
	return &restaurant, nil
}
