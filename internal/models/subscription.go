package models

import "time"

// Plan 订阅套餐
type Plan struct {
	BaseModel
	Slug               string  `gorm:"uniqueIndex;size:50;not null" json:"slug"`
	Name               string  `gorm:"size:100;not null" json:"name"`
	Price              float64 `gorm:"not null" json:"price"`
	BillingCycleMonths int     `gorm:"not null" json:"billing_cycle_months"` // 计费周期（月）
	TrialDays          int     `gorm:"not null" json:"trial_days"`
	MaxUsers           int     `gorm:"not null" json:"max_users"` // 0 表示不限
	IsActive           bool    `gorm:"not null" json:"is_active"`
}

// TableName 表名
func (p *Plan) TableName() string {
	return "plans"
}

// Subscription 餐厅订阅
type Subscription struct {
	BaseModel
	RestaurantID    uint       `gorm:"not null;index" json:"restaurant_id"`
	PlanID          uint       `gorm:"not null;index" json:"plan_id"`
	Status          string     `gorm:"size:20;not null;index" json:"status"`
	TrialEndsAt     *time.Time `json:"trial_ends_at"`
	StartDate       *time.Time `json:"start_date"` // 首次付款成功的时间
	EndDate         *time.Time `json:"end_date"`   // 当前已付费周期的结束时间
	NextBillingDate *time.Time `gorm:"index" json:"next_billing_date"`
	Amount          float64    `gorm:"not null" json:"amount"`
	PaymentFailures int        `gorm:"not null" json:"payment_failures"`
	SuspendedAt     *time.Time `json:"suspended_at"`
	ExpiredAt       *time.Time `json:"expired_at"`
	CanceledAt      *time.Time `json:"canceled_at"`

	Restaurant *Restaurant `gorm:"foreignKey:RestaurantID" json:"restaurant,omitempty"`
	Plan       *Plan       `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

// TableName 表名
func (s *Subscription) TableName() string {
	return "subscriptions"
}

// 订阅状态常量
const (
	SubscriptionTrialing  = "trialing"
	SubscriptionActive    = "active"
	SubscriptionSuspended = "suspended"
	SubscriptionExpired   = "expired"
	SubscriptionCanceled  = "canceled"
)

// IsTerminal 是否终止状态
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionExpired || s.Status == SubscriptionCanceled
}

// Payment 扣款记录
type Payment struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SubscriptionID uint       `gorm:"not null;index" json:"subscription_id"`
	RestaurantID   uint       `gorm:"not null;index" json:"restaurant_id"`
	Amount         float64    `gorm:"not null" json:"amount"`
	Status         string     `gorm:"size:20;not null" json:"status"`
	Source         string     `gorm:"size:20;not null" json:"source"` // batch 或 manual
	Reference      string     `gorm:"size:64;index" json:"reference"`
	FailureReason  string     `gorm:"size:255" json:"failure_reason,omitempty"`
	PaidAt         *time.Time `json:"paid_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TableName 表名
func (Payment) TableName() string {
	return "payments"
}

// 扣款状态与来源
const (
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"

	PaymentSourceBatch  = "batch"
	PaymentSourceManual = "manual"
)

// NotificationLog 提醒发送记录，同一订阅同一节点每天最多一条
type NotificationLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID uint      `gorm:"not null;uniqueIndex:idx_notification_once" json:"subscription_id"`
	Kind           string    `gorm:"size:30;not null;uniqueIndex:idx_notification_once" json:"kind"`
	DaysBefore     int       `gorm:"not null;uniqueIndex:idx_notification_once" json:"days_before"`
	SentOn         string    `gorm:"size:10;not null;uniqueIndex:idx_notification_once" json:"sent_on"` // YYYY-MM-DD
	Recipient      string    `gorm:"size:100;not null" json:"recipient"`
	MessageID      string    `gorm:"size:64" json:"message_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName 表名
func (NotificationLog) TableName() string {
	return "notification_logs"
}

// 提醒类型
const (
	NotificationTrialEnding = "trial_ending"
	NotificationBillingDue  = "billing_due"
)
