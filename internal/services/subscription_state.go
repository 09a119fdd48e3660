package services

import (
	"fmt"
	"time"

	"mesa/internal/models"
	apperrors "mesa/pkg/errors"
	"mesa/pkg/metrics"
)

// 订阅状态流转表，expired 和 canceled 为终止状态
var subscriptionTransitions = map[string][]string{
	models.SubscriptionTrialing:  {models.SubscriptionActive, models.SubscriptionExpired},
	models.SubscriptionActive:    {models.SubscriptionSuspended, models.SubscriptionExpired, models.SubscriptionCanceled},
	models.SubscriptionSuspended: {models.SubscriptionActive, models.SubscriptionExpired},
}

// CanTransition 是否允许从 from 变更为 to
func CanTransition(from, to string) bool {
	for _, next := range subscriptionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusPolicy 每日状态检查的可配置参数
type StatusPolicy struct {
	// SuspendedExpireAfter 暂停超过该时长的订阅过期，0 表示不自动过期
	SuspendedExpireAfter time.Duration
}

// EvaluateStatus 计算订阅在 now 时刻应处的状态，不需要变化时返回 false
func EvaluateStatus(sub *models.Subscription, now time.Time, policy StatusPolicy) (string, bool) {
	switch sub.Status {
	case models.SubscriptionTrialing:
		if sub.TrialEndsAt != nil && sub.TrialEndsAt.Before(now) {
			return models.SubscriptionExpired, true
		}
	case models.SubscriptionActive:
		if sub.EndDate != nil && sub.EndDate.Before(now) {
			return models.SubscriptionExpired, true
		}
	case models.SubscriptionSuspended:
		if sub.PaymentFailures == 0 {
			return models.SubscriptionActive, true
		}
		if policy.SuspendedExpireAfter > 0 && sub.SuspendedAt != nil &&
			sub.SuspendedAt.Add(policy.SuspendedExpireAfter).Before(now) {
			return models.SubscriptionExpired, true
		}
	}
	return "", false
}

// applyTransition 变更状态并维护对应的时间字段
func applyTransition(sub *models.Subscription, to string, now time.Time) error {
	from := sub.Status
	if !CanTransition(from, to) {
		return apperrors.BusinessRule(fmt.Sprintf("订阅状态不允许从 %s 变更为 %s", from, to))
	}

	switch to {
	case models.SubscriptionActive:
		sub.SuspendedAt = nil
		if sub.StartDate == nil {
			sub.StartDate = timePtr(now)
		}
	case models.SubscriptionSuspended:
		sub.SuspendedAt = timePtr(now)
	case models.SubscriptionExpired:
		sub.ExpiredAt = timePtr(now)
	case models.SubscriptionCanceled:
		sub.CanceledAt = timePtr(now)
	}
	sub.Status = to

	metrics.SubscriptionTransitions.WithLabelValues(from, to).Inc()
	return nil
}

// advanceBilling 以 from 为起点推进一个计费周期，服务截止时间包含宽限期
func advanceBilling(sub *models.Subscription, from time.Time, graceDays int) {
	months := 1
	if sub.Plan != nil && sub.Plan.BillingCycleMonths > 0 {
		months = sub.Plan.BillingCycleMonths
	}
	next := from.AddDate(0, months, 0)
	sub.NextBillingDate = timePtr(next)
	sub.EndDate = timePtr(next.AddDate(0, 0, graceDays))
}
