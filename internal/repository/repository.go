// Package repository 按实体封装数据库访问，服务层只依赖这里的接口。
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 违反唯一索引
	ErrDuplicate = errors.New("duplicate record")
)

// Repositories 全部仓储的集合
type Repositories struct {
	db *gorm.DB

	Restaurants   RestaurantRepository
	Users         UserRepository
	Permissions   PermissionRepository
	Roles         RoleRepository
	UserRoles     UserRoleRepository
	Plans         PlanRepository
	Subscriptions SubscriptionRepository
	Payments      PaymentRepository
	Notifications NotificationLogRepository
}

// New 基于数据库连接（或事务）创建仓储集合
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:            db,
		Restaurants:   &restaurantRepository{db: db},
		Users:         &userRepository{db: db},
		Permissions:   &permissionRepository{db: db},
		Roles:         &roleRepository{db: db},
		UserRoles:     &userRoleRepository{db: db},
		Plans:         &planRepository{db: db},
		Subscriptions: &subscriptionRepository{db: db},
		Payments:      &paymentRepository{db: db},
		Notifications: &notificationLogRepository{db: db},
	}
}

// Transaction 在同一事务中执行，fn 返回错误时回滚
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// translate 统一“不存在”和“重复”错误
func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

// visibleTo 全局记录或属于指定餐厅的记录
func visibleTo(restaurantID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(restaurant_id IS NULL OR restaurant_id = ?)", restaurantID)
	}
}

// inScope 精确匹配作用域，nil 表示全局
func inScope(restaurantID *uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if restaurantID == nil {
			return db.Where("restaurant_id IS NULL")
		}
		return db.Where("restaurant_id = ?", *restaurantID)
	}
}

// save 只保存主表字段，不级联写入预加载的关联
func save(ctx context.Context, db *gorm.DB, value interface{}) error {
	return db.WithContext(ctx).Omit(clause.Associations).Save(value).Error
}
