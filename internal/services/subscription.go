package services

import (
	"context"
	"fmt"
	"time"

	"mesa/internal/models"
	"mesa/internal/repository"
	"mesa/pkg/config"
	apperrors "mesa/pkg/errors"
	"mesa/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type SubscriptionService struct {
	repos *repository.Repositories
	cfg   config.BillingConfig
	now   func() time.Time
}

func NewSubscriptionService(repos *repository.Repositories, cfg config.BillingConfig, now func() time.Time) *SubscriptionService {
	if now == nil {
		now = time.Now
	}
	return &SubscriptionService{repos: repos, cfg: cfg, now: now}
}

// ========== 套餐 ==========

// SeedPlans 按标识幂等创建预置套餐
func (s *SubscriptionService) SeedPlans(ctx context.Context) (int, error) {
	created := 0
	for _, def := range DefaultPlans() {
		_, err := s.repos.Plans.FindBySlug(ctx, def.Slug)
		if err == nil {
			continue
		}
		if !isNotFound(err) {
			return created, apperrors.Internal("查询套餐失败", err)
		}
		plan := def
		if err := s.repos.Plans.Create(ctx, &plan); err != nil {
			return created, apperrors.Internal("创建套餐失败", err)
		}
		created++
	}
	return created, nil
}

func (s *SubscriptionService) ListPlans(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.repos.Plans.FindActive(ctx)
	if err != nil {
		return nil, apperrors.Internal("获取套餐列表失败", err)
	}
	return plans, nil
}

// activePlan 可订阅的套餐，不存在或已下架都按参数错误处理
func activePlan(ctx context.Context, repos *repository.Repositories, slug string) (*models.Plan, error) {
	plan, err := repos.Plans.FindBySlug(ctx, slug)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ValidationField("plan", "套餐不存在: "+slug)
		}
		return nil, apperrors.Internal("查询套餐失败", err)
	}
	if !plan.IsActive {
		return nil, apperrors.ValidationField("plan", "套餐已下架: "+slug)
	}
	return plan, nil
}

// newTrialSubscription 以试用状态开始的订阅
func newTrialSubscription(restaurantID uint, plan *models.Plan, now time.Time) *models.Subscription {
	trialEnds := now.AddDate(0, 0, plan.TrialDays)
	return &models.Subscription{
		RestaurantID:    restaurantID,
		PlanID:          plan.ID,
		Status:          models.SubscriptionTrialing,
		TrialEndsAt:     &trialEnds,
		NextBillingDate: timePtr(trialEnds),
		Amount:          plan.Price,
		Plan:            plan,
	}
}

// ========== 订阅 ==========

// StartTrial 为没有有效订阅的餐厅开始试用
func (s *SubscriptionService) StartTrial(ctx context.Context, restaurantID uint, planSlug string) (*models.Subscription, error) {
	current, err := s.repos.Subscriptions.FindCurrentByRestaurant(ctx, restaurantID)
	if err != nil && !isNotFound(err) {
		return nil, apperrors.Internal("查询订阅失败", err)
	}
	if current != nil && !current.IsTerminal() {
		return nil, apperrors.BusinessRule("餐厅已有有效订阅")
	}

	plan, err := activePlan(ctx, s.repos, planSlug)
	if err != nil {
		return nil, err
	}
	sub := newTrialSubscription(restaurantID, plan, s.now())
	if err := s.repos.Subscriptions.Create(ctx, sub); err != nil {
		return nil, apperrors.Internal("创建订阅失败", err)
	}
	return sub, nil
}

// GetCurrent 餐厅最新的订阅
func (s *SubscriptionService) GetCurrent(ctx context.Context, restaurantID uint) (*models.Subscription, error) {
	sub, err := s.repos.Subscriptions.FindCurrentByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, lookupError(err, "订阅不存在")
	}
	return sub, nil
}

// Payments 当前订阅的扣款记录
func (s *SubscriptionService) Payments(ctx context.Context, restaurantID uint) ([]models.Payment, error) {
	sub, err := s.GetCurrent(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repos.Payments.FindBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, apperrors.Internal("获取扣款记录失败", err)
	}
	return payments, nil
}

// ChangePlan 切换套餐，新价格从下一个账单日生效
func (s *SubscriptionService) ChangePlan(ctx context.Context, restaurantID uint, planSlug string) (*models.Subscription, error) {
	sub, err := s.GetCurrent(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if sub.IsTerminal() {
		return nil, apperrors.BusinessRule("订阅已终止，无法切换套餐")
	}
	plan, err := activePlan(ctx, s.repos, planSlug)
	if err != nil {
		return nil, err
	}
	if plan.ID == sub.PlanID {
		return sub, nil
	}

	if plan.MaxUsers > 0 {
		count, err := s.repos.Users.CountActiveByTenant(ctx, restaurantID)
		if err != nil {
			return nil, apperrors.Internal("统计用户数失败", err)
		}
		if count > int64(plan.MaxUsers) {
			return nil, apperrors.BusinessRule(fmt.Sprintf("当前有 %d 个启用用户，超过目标套餐上限 %d", count, plan.MaxUsers))
		}
	}

	sub.PlanID = plan.ID
	sub.Plan = plan
	sub.Amount = plan.Price
	if err := s.repos.Subscriptions.Update(ctx, sub); err != nil {
		return nil, apperrors.Internal("切换套餐失败", err)
	}
	logger.GetLogger().WithFields(logrus.Fields{
		"restaurant_id":   restaurantID,
		"subscription_id": sub.ID,
		"plan":            plan.Slug,
	}).Info("切换套餐")
	return sub, nil
}

// Cancel 取消付费中的订阅
func (s *SubscriptionService) Cancel(ctx context.Context, restaurantID uint) (*models.Subscription, error) {
	sub, err := s.GetCurrent(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if err := applyTransition(sub, models.SubscriptionCanceled, s.now()); err != nil {
		return nil, err
	}
	sub.NextBillingDate = nil
	if err := s.repos.Subscriptions.Update(ctx, sub); err != nil {
		return nil, apperrors.Internal("取消订阅失败", err)
	}
	return sub, nil
}

// RecordPayment 登记一笔人工收款。
// 试用中的订阅转为付费；暂停的订阅清零失败次数，由下一次每日批处理恢复。
func (s *SubscriptionService) RecordPayment(ctx context.Context, restaurantID uint, reference string) (*models.Subscription, *models.Payment, error) {
	sub, err := s.GetCurrent(ctx, restaurantID)
	if err != nil {
		return nil, nil, err
	}
	if sub.IsTerminal() {
		return nil, nil, apperrors.BusinessRule("订阅已终止，无法登记付款")
	}

	now := s.now()
	switch sub.Status {
	case models.SubscriptionTrialing:
		if err := applyTransition(sub, models.SubscriptionActive, now); err != nil {
			return nil, nil, err
		}
		advanceBilling(sub, now, s.cfg.GraceDays)
	default:
		from := now
		if sub.NextBillingDate != nil && sub.NextBillingDate.After(now) {
			from = *sub.NextBillingDate
		}
		advanceBilling(sub, from, s.cfg.GraceDays)
	}
	sub.PaymentFailures = 0

	if reference == "" {
		reference = "manual-" + uuid.New().String()
	}
	payment := &models.Payment{
		SubscriptionID: sub.ID,
		RestaurantID:   sub.RestaurantID,
		Amount:         sub.Amount,
		Status:         models.PaymentSucceeded,
		Source:         models.PaymentSourceManual,
		Reference:      reference,
		PaidAt:         timePtr(now),
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Payments.Create(ctx, payment); err != nil {
			return err
		}
		return tx.Subscriptions.Update(ctx, sub)
	})
	if err != nil {
		return nil, nil, apperrors.Internal("登记付款失败", err)
	}
	return sub, payment, nil
}

// CheckUserLimit 校验套餐用户数上限，订阅已终止的餐厅不能新增用户
func (s *SubscriptionService) CheckUserLimit(ctx context.Context, restaurantID uint) error {
	sub, err := s.repos.Subscriptions.FindCurrentByRestaurant(ctx, restaurantID)
	if err != nil {
		if isNotFound(err) {
			return apperrors.BusinessRule("餐厅没有有效订阅")
		}
		return apperrors.Internal("查询订阅失败", err)
	}
	if sub.IsTerminal() {
		return apperrors.BusinessRule("订阅已失效，无法新增用户")
	}
	if sub.Plan == nil || sub.Plan.MaxUsers <= 0 {
		return nil
	}

	count, err := s.repos.Users.CountActiveByTenant(ctx, restaurantID)
	if err != nil {
		return apperrors.Internal("统计用户数失败", err)
	}
	if count >= int64(sub.Plan.MaxUsers) {
		return apperrors.BusinessRule(fmt.Sprintf("当前套餐最多允许 %d 个启用用户", sub.Plan.MaxUsers))
	}
	return nil
}
