package services

import (
	"context"
	"testing"

	"mesa/internal/models"
	apperrors "mesa/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPlans(t *testing.T) {
	env := newTestEnv(t)
	plans, err := env.c.Subscriptions.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, "basic", plans[0].Slug)
	assert.Equal(t, "enterprise", plans[2].Slug)
	assert.Equal(t, 0, plans[2].MaxUsers)
}

func TestRecordPayment_TrialBecomesActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tenant := env.signup(t, "bistro")
	rid := tenant.Restaurant.ID

	sub, payment, err := env.c.Subscriptions.RecordPayment(ctx, rid, "")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	require.NotNil(t, sub.StartDate)
	assert.True(t, sub.NextBillingDate.Equal(env.clock.Now().AddDate(0, 1, 0)))
	assert.True(t, sub.EndDate.Equal(env.clock.Now().AddDate(0, 1, 7)))
	assert.Equal(t, models.PaymentSourceManual, payment.Source)
	assert.Contains(t, payment.Reference, "manual-")

	payments, err := env.c.Subscriptions.Payments(ctx, rid)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.InDelta(t, 79.90, payments[0].Amount, 0.001)
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rid := env.signup(t, "bistro").Restaurant.ID

	// 试用期不能取消，只能等待过期
	_, err := env.c.Subscriptions.Cancel(ctx, rid)
	assertKind(t, err, apperrors.KindBusinessRule)

	_, _, err = env.c.Subscriptions.RecordPayment(ctx, rid, "bank-123")
	require.NoError(t, err)

	sub, err := env.c.Subscriptions.Cancel(ctx, rid)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCanceled, sub.Status)
	assert.Nil(t, sub.NextBillingDate)
	require.NotNil(t, sub.CanceledAt)

	_, _, err = env.c.Subscriptions.RecordPayment(ctx, rid, "")
	assertKind(t, err, apperrors.KindBusinessRule)
	_, err = env.c.Subscriptions.ChangePlan(ctx, rid, "pro")
	assertKind(t, err, apperrors.KindBusinessRule)

	// 已终止的餐厅可以重新开始试用，但不能新增用户
	_, err = env.c.Users.Create(ctx, env.ownerOf(t, rid), CreateUserInput{
		Username: "late_user", Email: "late@example.com", Password: "password123", Name: "Late",
	})
	assertKind(t, err, apperrors.KindBusinessRule)

	restarted, err := env.c.Subscriptions.StartTrial(ctx, rid, "pro")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionTrialing, restarted.Status)

	_, err = env.c.Subscriptions.StartTrial(ctx, rid, "pro")
	assertKind(t, err, apperrors.KindBusinessRule)
}

func TestChangePlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rid := env.signup(t, "bistro").Restaurant.ID

	sub, err := env.c.Subscriptions.ChangePlan(ctx, rid, "pro")
	require.NoError(t, err)
	assert.InDelta(t, 149.90, sub.Amount, 0.001)

	for _, name := range []string{"c_one", "c_two", "c_three", "c_four", "c_five"} {
		env.createUser(t, rid, name)
	}

	// 6 个启用用户超过 basic 的上限
	_, err = env.c.Subscriptions.ChangePlan(ctx, rid, "basic")
	assertKind(t, err, apperrors.KindBusinessRule)

	_, err = env.c.Subscriptions.ChangePlan(ctx, rid, "missing")
	assertKind(t, err, apperrors.KindValidation)

	sub, err = env.c.Subscriptions.ChangePlan(ctx, rid, "enterprise")
	require.NoError(t, err)
	assert.Equal(t, "enterprise", sub.Plan.Slug)
}

func TestGetCurrent_NoSubscription(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.c.Subscriptions.GetCurrent(context.Background(), 12345)
	assertKind(t, err, apperrors.KindNotFound)
}
