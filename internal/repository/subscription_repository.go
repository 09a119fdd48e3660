package repository

import (
	"context"
	"time"

	"mesa/internal/models"

	"gorm.io/gorm"
)

// PlanRepository 套餐仓储
type PlanRepository interface {
	Create(ctx context.Context, plan *models.Plan) error
	Update(ctx context.Context, plan *models.Plan) error
	FindByID(ctx context.Context, id uint) (*models.Plan, error)
	FindBySlug(ctx context.Context, slug string) (*models.Plan, error)
	FindActive(ctx context.Context) ([]models.Plan, error)
}

// SubscriptionRepository 订阅仓储
type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *models.Subscription) error
	Update(ctx context.Context, subscription *models.Subscription) error
	FindByID(ctx context.Context, id uint) (*models.Subscription, error)
	// FindCurrentByRestaurant 餐厅最近一条订阅
	FindCurrentByRestaurant(ctx context.Context, restaurantID uint) (*models.Subscription, error)
	// FindByStatus 指定状态的全部订阅，预加载套餐与餐厅
	FindByStatus(ctx context.Context, status string) ([]models.Subscription, error)
	// FindDueForBilling 到期需要扣款的有效订阅
	FindDueForBilling(ctx context.Context, now time.Time) ([]models.Subscription, error)
}

// PaymentRepository 扣款记录仓储
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindBySubscription(ctx context.Context, subscriptionID uint) ([]models.Payment, error)
}

// NotificationLogRepository 提醒记录仓储
type NotificationLogRepository interface {
	Exists(ctx context.Context, subscriptionID uint, kind string, daysBefore int, sentOn string) (bool, error)
	Create(ctx context.Context, log *models.NotificationLog) error
}

type planRepository struct {
	db *gorm.DB
}

func (r *planRepository) Create(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *planRepository) Update(ctx context.Context, plan *models.Plan) error {
	return save(ctx, r.db, plan)
}

func (r *planRepository) FindByID(ctx context.Context, id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, translate(err)
	}
	return &plan, nil
}

func (r *planRepository) FindBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&plan).Error; err != nil {
		return nil, translate(err)
	}
	return &plan, nil
}

func (r *planRepository) FindActive(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("price").Find(&plans).Error
	return plans, err
}

type subscriptionRepository struct {
	db *gorm.DB
}

func (r *subscriptionRepository) Create(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Omit("Plan", "Restaurant").Create(subscription).Error
}

func (r *subscriptionRepository) Update(ctx context.Context, subscription *models.Subscription) error {
	return save(ctx, r.db, subscription)
}

func (r *subscriptionRepository) FindByID(ctx context.Context, id uint) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.db.WithContext(ctx).Preload("Plan").Preload("Restaurant").First(&subscription, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &subscription, nil
}

func (r *subscriptionRepository) FindCurrentByRestaurant(ctx context.Context, restaurantID uint) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("restaurant_id = ?", restaurantID).
		Order("id DESC").
		First(&subscription).Error
	if err != nil {
		return nil, translate(err)
	}
	return &subscription, nil
}

func (r *subscriptionRepository) FindByStatus(ctx context.Context, status string) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Preload("Restaurant").
		Where("status = ?", status).
		Order("id").
		Find(&subscriptions).Error
	return subscriptions, err
}

func (r *subscriptionRepository) FindDueForBilling(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Preload("Restaurant").
		Where("status = ? AND next_billing_date <= ?", models.SubscriptionActive, now).
		Order("id").
		Find(&subscriptions).Error
	return subscriptions, err
}

type paymentRepository struct {
	db *gorm.DB
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) FindBySubscription(ctx context.Context, subscriptionID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).Order("id").Find(&payments).Error
	return payments, err
}

type notificationLogRepository struct {
	db *gorm.DB
}

func (r *notificationLogRepository) Exists(ctx context.Context, subscriptionID uint, kind string, daysBefore int, sentOn string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.NotificationLog{}).
		Where("subscription_id = ? AND kind = ? AND days_before = ? AND sent_on = ?", subscriptionID, kind, daysBefore, sentOn).
		Count(&count).Error
	return count > 0, err
}

func (r *notificationLogRepository) Create(ctx context.Context, log *models.NotificationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}
