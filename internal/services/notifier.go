package services

import (
	"context"
	"fmt"
	"time"

	"mesa/internal/models"
	"mesa/pkg/queue"
)

// Notification 发给餐厅的订阅提醒
type Notification struct {
	SubscriptionID uint
	RestaurantID   uint
	RestaurantName string
	Recipient      string
	Kind           string // trial_ending 或 billing_due
	DaysBefore     int
	DueDate        time.Time
	Amount         float64
	PlanName       string
}

// Notifier 发送提醒，返回消息ID
type Notifier interface {
	Notify(ctx context.Context, n Notification) (string, error)
}

// MailQueue 邮件发件箱
type MailQueue interface {
	EnqueueMail(ctx context.Context, message *queue.MailMessage) (string, error)
}

// MailNotifier 将提醒写入邮件发件箱，由邮件服务异步投递
type MailNotifier struct {
	queue MailQueue
}

func NewMailNotifier(q MailQueue) *MailNotifier {
	return &MailNotifier{queue: q}
}

func (n *MailNotifier) Notify(ctx context.Context, notification Notification) (string, error) {
	var subject string
	switch notification.Kind {
	case models.NotificationTrialEnding:
		subject = fmt.Sprintf("您的试用期将在 %d 天后结束", notification.DaysBefore)
	case models.NotificationBillingDue:
		subject = fmt.Sprintf("您的订阅将在 %d 天后扣款", notification.DaysBefore)
	default:
		return "", fmt.Errorf("未知的提醒类型: %s", notification.Kind)
	}

	return n.queue.EnqueueMail(ctx, &queue.MailMessage{
		RestaurantID: notification.RestaurantID,
		To:           notification.Recipient,
		Subject:      subject,
		Template:     "subscription_" + notification.Kind,
		Data: map[string]interface{}{
			"restaurant_name": notification.RestaurantName,
			"subscription_id": notification.SubscriptionID,
			"days_before":     notification.DaysBefore,
			"due_date":        notification.DueDate.Format(dateLayout),
			"amount":          notification.Amount,
			"plan_name":       notification.PlanName,
		},
	})
}
