package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"mesa/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fullRun          = NewBatchOptions(false, false, false, false)
	fullRunForced    = NewBatchOptions(false, false, false, true)
	billingOnly      = NewBatchOptions(true, false, false, false)
	billingForced    = NewBatchOptions(true, false, false, true)
	billingAndNotify = NewBatchOptions(true, true, false, false)
	notifyOnly       = NewBatchOptions(false, true, false, false)
	notifyOnlyForced = NewBatchOptions(false, true, false, true)
)

// activate 将注册时的试用订阅改为付费状态
func (e *testEnv) activate(t *testing.T, result *SignupResult, nextBilling time.Time, amount float64) *models.Subscription {
	t.Helper()
	sub := e.subscription(t, result.Subscription.ID)
	start := nextBilling.AddDate(0, -1, 0)
	sub.Status = models.SubscriptionActive
	sub.StartDate = &start
	sub.NextBillingDate = timePtr(nextBilling)
	sub.EndDate = timePtr(nextBilling.AddDate(0, 0, 7))
	sub.Amount = amount
	e.saveSubscription(t, sub)
	return sub
}

func (e *testEnv) payments(t *testing.T, subscriptionID uint) []models.Payment {
	t.Helper()
	payments, err := e.c.Repos.Payments.FindBySubscription(context.Background(), subscriptionID)
	require.NoError(t, err)
	return payments
}

func TestBatchOptions_Mode(t *testing.T) {
	assert.Equal(t, "status+billing+notifications", NewBatchOptions(false, false, false, false).Mode())
	assert.Equal(t, "billing", NewBatchOptions(true, false, true, false).Mode())
	assert.Equal(t, "notifications", NewBatchOptions(false, true, false, false).Mode())
	assert.Equal(t, "billing+notifications", NewBatchOptions(true, true, false, false).Mode())

	opts := NewBatchOptions(true, false, true, true)
	assert.False(t, opts.StatusUpdates)
	assert.True(t, opts.DryRun)
	assert.True(t, opts.Force)
}

func TestBatch_ChargesDueSubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tenant := env.signup(t, "bistro")
	yesterday := env.clock.Now().AddDate(0, 0, -1)
	env.activate(t, tenant, yesterday, 50)

	result, err := env.c.Batch.Run(ctx, fullRun)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.Expired)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "2024-03-10", result.Date)

	sub := env.subscription(t, tenant.Subscription.ID)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, 0, sub.PaymentFailures)
	assert.True(t, sub.NextBillingDate.Equal(yesterday.AddDate(0, 1, 0)))
	assert.True(t, sub.EndDate.Equal(yesterday.AddDate(0, 1, 7)))

	payments := env.payments(t, sub.ID)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentSucceeded, payments[0].Status)
	assert.Equal(t, models.PaymentSourceBatch, payments[0].Source)
	assert.InDelta(t, 50, payments[0].Amount, 0.001)
	assert.Equal(t, "test-1", payments[0].Reference)
}

func TestBatch_DailyGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tenant := env.signup(t, "bistro")
	env.activate(t, tenant, env.clock.Now().AddDate(0, 0, -1), 50)

	_, err := env.c.Batch.Run(ctx, fullRun)
	require.NoError(t, err)
	require.Equal(t, 1, env.gateway.Calls())

	second, err := env.c.Batch.Run(ctx, fullRun)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.NotEmpty(t, second.SkipReason)
	assert.Equal(t, []string{"status", "billing", "notifications"}, second.SkippedSteps)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 1, env.gateway.Calls())
	assert.Len(t, env.payments(t, tenant.Subscription.ID), 1)

	// 换一种开关组合也不会重复执行已完成的步骤
	for _, opts := range []BatchOptions{notifyOnly, billingOnly, billingAndNotify} {
		again, err := env.c.Batch.Run(ctx, opts)
		require.NoError(t, err)
		assert.True(t, again.Skipped, opts.Mode())
	}
	assert.Equal(t, 1, env.gateway.Calls())

	forced, err := env.c.Batch.Run(ctx, fullRunForced)
	require.NoError(t, err)
	assert.False(t, forced.Skipped)
	assert.Empty(t, forced.SkippedSteps)
	assert.Equal(t, 0, forced.Processed)
	assert.Equal(t, 1, env.gateway.Calls())

	// 第二天重新执行
	env.clock.Advance(24 * time.Hour)
	next, err := env.c.Batch.Run(ctx, fullRun)
	require.NoError(t, err)
	assert.False(t, next.Skipped)
	assert.Empty(t, next.SkippedSteps)
}

func TestBatch_DailyGuardAcrossModes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tenant := env.signup(t, "bistro")
	env.activate(t, tenant, env.clock.Now().AddDate(0, 0, -1), 50)
	env.gateway.fail = errors.New("card declined")

	first, err := env.c.Batch.Run(ctx, fullRun)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Failed)

	// 失败的扣款只在第二天重试
	billing, err := env.c.Batch.Run(ctx, billingOnly)
	require.NoError(t, err)
	assert.True(t, billing.Skipped)

	mixed, err := env.c.Batch.Run(ctx, billingAndNotify)
	require.NoError(t, err)
	assert.True(t, mixed.Skipped)

	assert.Equal(t, 1, env.gateway.Calls())
	sub := env.subscription(t, tenant.Subscription.ID)
	assert.Equal(t, 1, sub.PaymentFailures)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
}

func TestBatch_PartialRunSkipsOnlyCompletedSteps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tenant := env.signup(t, "bistro")
	env.activate(t, tenant, env.clock.Now().AddDate(0, 0, -1), 50)

	notify, err := env.c.Batch.Run(ctx, notifyOnly)
	require.NoError(t, err)
	assert.False(t, notify.Skipped)
	assert.Equal(t, 0, env.gateway.Calls())

	full, err := env.c.Batch.Run(ctx, fullRun)
	require.NoError(t, err)
	assert.False(t, full.Skipped)
	assert.Equal(t, []string{"notifications"}, full.SkippedSteps)
	assert.Equal(t, 1, full.Processed)
	assert.Equal(t, 1, env.gateway.Calls())

	// 已完成的步骤在试运行中同样跳过
	dry, err := env.c.Batch.Run(ctx, NewBatchOptions(true, false, true, false))
	require.NoError(t, err)
	assert.True(t, dry.Skipped)

	exists, err := env.store.Exists(ctx, batchMarkerKey("2024-03-10", "billing"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBatch_DryRunWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tenant := env.signup(t, "bistro")
	yesterday := env.clock.Now().AddDate(0, 0, -1)
	env.activate(t, tenant, yesterday, 50)

	other := env.signup(t, "trattoria")
	expired := env.subscription(t, other.Subscription.ID)
	expired.TrialEndsAt = timePtr(env.clock.Now().Add(-time.Hour))
	env.saveSubscription(t, expired)

	dry, err := env.c.Batch.Run(ctx, NewBatchOptions(false, false, true, false))
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.Equal(t, 1, dry.Processed)
	assert.Equal(t, 1, dry.Expired)
	assert.Equal(t, 0, env.gateway.Calls())
	assert.Empty(t, env.payments(t, tenant.Subscription.ID))

	sub := env.subscription(t, tenant.Subscription.ID)
	assert.True(t, sub.NextBillingDate.Equal(yesterday))
	assert.Equal(t, models.SubscriptionTrialing, env.subscription(t, other.Subscription.ID).Status)

	// 试运行不写每日标记
	live, err := env.c.Batch.Run(ctx, fullRun)
	require.NoError(t, err)
	assert.False(t, live.Skipped)
	assert.Equal(t, 1, live.Processed)
	assert.Equal(t, 1, live.Expired)
}

func TestBatch_TrialExpiresOnlyAfterTrialEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tenant := env.signup(t, "bistro")

	env.clock.Advance(13 * 24 * time.Hour)
	result, err := env.c.Batch.Run(ctx, fullRun)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Expired)
	assert.Equal(t, models.SubscriptionTrialing, env.subscription(t, tenant.Subscription.ID).Status)

	env.clock.Advance(2 * 24 * time.Hour)
	result, err = env.c.Batch.Run(ctx, fullRun)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)

	sub := env.subscription(t, tenant.Subscription.ID)
	assert.Equal(t, models.SubscriptionExpired, sub.Status)
	require.NotNil(t, sub.ExpiredAt)
	assert.Equal(t, 0, env.gateway.Calls())
}

func TestBatch_ExpiresBeforeBilling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tenant := env.signup(t, "bistro")

	// 宽限期已过
	sub := env.activate(t, tenant, env.clock.Now().AddDate(0, 0, -10), 50)
	require.True(t, sub.EndDate.Before(env.clock.Now()))

	result, err := env.c.Batch.Run(ctx, fullRun)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, env.gateway.Calls())
	assert.Equal(t, models.SubscriptionExpired, env.subscription(t, sub.ID).Status)
}

func TestBatch_FailuresSuspendThenPaymentReactivates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tenant := env.signup(t, "bistro")
	env.activate(t, tenant, env.clock.Now().AddDate(0, 0, -1), 50)
	env.gateway.fail = errors.New("card declined")

	for i := 1; i <= 3; i++ {
		result, err := env.c.Batch.Run(ctx, billingForced)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "billing", result.Errors[0].Step)
		assert.Equal(t, "card declined", result.Errors[0].Message)
		if i < 3 {
			assert.Equal(t, 0, result.Suspended)
		} else {
			assert.Equal(t, 1, result.Suspended)
		}
	}

	sub := env.subscription(t, tenant.Subscription.ID)
	assert.Equal(t, models.SubscriptionSuspended, sub.Status)
	assert.Equal(t, 3, sub.PaymentFailures)
	require.NotNil(t, sub.SuspendedAt)

	payments := env.payments(t, sub.ID)
	require.Len(t, payments, 3)
	for _, p := range payments {
		assert.Equal(t, models.PaymentFailed, p.Status)
		assert.Equal(t, "card declined", p.FailureReason)
	}

	// 暂停后不再扣款
	result, err := env.c.Batch.Run(ctx, billingForced)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 3, env.gateway.Calls())

	// 人工收款清零失败次数，下一次状态检查恢复
	paid, _, err := env.c.Subscriptions.RecordPayment(ctx, tenant.Restaurant.ID, "bank-transfer-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionSuspended, paid.Status)
	assert.Equal(t, 0, paid.PaymentFailures)

	result, err = env.c.Batch.Run(ctx, fullRunForced)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reactivated)
	sub = env.subscription(t, tenant.Subscription.ID)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Nil(t, sub.SuspendedAt)
}

func TestBatch_OneFailedChargeDoesNotStopOthers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	yesterday := env.clock.Now().AddDate(0, 0, -1)
	declined := env.activate(t, env.signup(t, "bistro"), yesterday, 50)
	paid := env.activate(t, env.signup(t, "trattoria"), yesterday, 80)
	env.gateway.failFor = map[uint]error{declined.ID: errors.New("card declined")}

	result, err := env.c.Batch.Run(ctx, fullRun)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, env.gateway.Calls())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, declined.ID, result.Errors[0].SubscriptionID)

	sub := env.subscription(t, paid.ID)
	assert.Equal(t, 0, sub.PaymentFailures)
	assert.True(t, sub.NextBillingDate.Equal(yesterday.AddDate(0, 1, 0)))

	sub = env.subscription(t, declined.ID)
	assert.Equal(t, 1, sub.PaymentFailures)
	assert.True(t, sub.NextBillingDate.Equal(yesterday))
	assert.Equal(t, models.SubscriptionActive, sub.Status)
}

func TestBatch_SuspendedTooLongExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tenant := env.signup(t, "bistro")

	sub := env.activate(t, tenant, env.clock.Now().AddDate(0, 0, 1), 50)
	sub.Status = models.SubscriptionSuspended
	sub.PaymentFailures = 3
	sub.SuspendedAt = timePtr(env.clock.Now().AddDate(0, 0, -31))
	env.saveSubscription(t, sub)

	result, err := env.c.Batch.Run(ctx, fullRun)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)
	assert.Equal(t, models.SubscriptionExpired, env.subscription(t, sub.ID).Status)
}

func TestBatch_NotificationsSentOncePerDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tenant := env.signup(t, "bistro")
	due := env.clock.Now().AddDate(0, 0, 3)
	env.activate(t, tenant, due, 50)

	result, err := env.c.Batch.Run(ctx, notifyOnly)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NotificationsSent)

	sent := env.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, models.NotificationBillingDue, sent[0].Kind)
	assert.Equal(t, 3, sent[0].DaysBefore)
	assert.Equal(t, "bistro@example.com", sent[0].Recipient)
	assert.Equal(t, "基础版", sent[0].PlanName)
	assert.True(t, sent[0].DueDate.Equal(due))

	again, err := env.c.Batch.Run(ctx, notifyOnlyForced)
	require.NoError(t, err)
	assert.Equal(t, 0, again.NotificationsSent)
	assert.Equal(t, 1, again.NotificationsSkipped)
	assert.Len(t, env.notifier.Sent(), 1)
}

func TestBatch_TrialEndingNotification(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.signup(t, "bistro")
	env.clock.Advance(7 * 24 * time.Hour)

	result, err := env.c.Batch.Run(context.Background(), notifyOnly)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NotificationsSent)

	sent := env.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, models.NotificationTrialEnding, sent[0].Kind)
	assert.Equal(t, 7, sent[0].DaysBefore)
	assert.Equal(t, tenant.Subscription.ID, sent[0].SubscriptionID)
}

func TestBatch_NotificationFailuresAreCollected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.signup(t, "bistro")
	b := env.signup(t, "trattoria")
	env.activate(t, a, env.clock.Now().AddDate(0, 0, 1), 50)
	env.activate(t, b, env.clock.Now().AddDate(0, 0, 1), 50)

	restaurant, err := env.c.Repos.Restaurants.FindByID(ctx, b.Restaurant.ID)
	require.NoError(t, err)
	restaurant.Email = ""
	require.NoError(t, env.c.Repos.Restaurants.Update(ctx, restaurant))

	env.notifier.fail = errors.New("smtp unavailable")
	result, err := env.c.Batch.Run(ctx, notifyOnly)
	require.NoError(t, err)
	assert.Equal(t, 0, result.NotificationsSent)
	require.Len(t, result.Errors, 2)
	for _, item := range result.Errors {
		assert.Equal(t, "notifications", item.Step)
	}

	// 失败的提醒不记录，恢复后可以重发
	env.notifier.fail = nil
	retry, err := env.c.Batch.Run(ctx, notifyOnlyForced)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.NotificationsSent)
	assert.Len(t, retry.Errors, 1)
}
