package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mesa/internal/models"
	"mesa/internal/repository"
	"mesa/pkg/cache"
	"mesa/pkg/config"
	"mesa/pkg/logger"
	"mesa/pkg/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// 每日标记保留时间，跨过当天即可
const batchMarkerTTL = 25 * time.Hour

// BatchOptions 批处理运行参数
type BatchOptions struct {
	StatusUpdates bool
	Billing       bool
	Notifications bool
	DryRun        bool // 只计算不写入
	Force         bool // 忽略当天已执行标记
}

// NewBatchOptions 按命令行开关组合运行参数，两个开关都不指定时执行全部步骤
func NewBatchOptions(billingOnly, notificationsOnly, dryRun, force bool) BatchOptions {
	opts := BatchOptions{DryRun: dryRun, Force: force}
	if billingOnly || notificationsOnly {
		opts.Billing = billingOnly
		opts.Notifications = notificationsOnly
		return opts
	}
	opts.StatusUpdates = true
	opts.Billing = true
	opts.Notifications = true
	return opts
}

// Mode 运行模式名称，用于每日标记和日志
func (o BatchOptions) Mode() string {
	var parts []string
	if o.StatusUpdates {
		parts = append(parts, stepStatus)
	}
	if o.Billing {
		parts = append(parts, stepBilling)
	}
	if o.Notifications {
		parts = append(parts, stepNotifications)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// BatchItemError 单条订阅处理失败
type BatchItemError struct {
	SubscriptionID uint   `json:"subscription_id"`
	Step           string `json:"step"`
	Message        string `json:"message"`
}

// BatchResult 批处理汇总
type BatchResult struct {
	RunID      string    `json:"run_id"`
	Date       string    `json:"date"`
	Mode       string    `json:"mode"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Skipped 所有步骤今日都已执行
	Skipped      bool     `json:"skipped"`
	SkipReason   string   `json:"skip_reason,omitempty"`
	SkippedSteps []string `json:"skipped_steps"`

	Expired     int `json:"expired"`
	Reactivated int `json:"reactivated"`

	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Suspended int `json:"suspended"`

	NotificationsSent    int `json:"notifications_sent"`
	NotificationsSkipped int `json:"notifications_skipped"`

	Errors []BatchItemError `json:"errors"`
}

func (r *BatchResult) addError(subscriptionID uint, step string, err error) {
	r.Errors = append(r.Errors, BatchItemError{
		SubscriptionID: subscriptionID,
		Step:           step,
		Message:        err.Error(),
	})
}

// BillingBatch 每日订阅批处理：状态检查、续费扣款、到期提醒。
// 单条订阅的失败只记录到结果中，查询类失败会中止整个批处理。
type BillingBatch struct {
	repos    *repository.Repositories
	store    cache.Store
	gateway  PaymentGateway
	notifier Notifier
	cfg      config.BillingConfig
	now      func() time.Time
}

func NewBillingBatch(repos *repository.Repositories, store cache.Store, gateway PaymentGateway, notifier Notifier, cfg config.BillingConfig, now func() time.Time) *BillingBatch {
	if now == nil {
		now = time.Now
	}
	if cfg.SuspendAfterFailures <= 0 {
		cfg.SuspendAfterFailures = 3
	}
	return &BillingBatch{
		repos:    repos,
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		cfg:      cfg,
		now:      now,
	}
}

// 批处理步骤名，同时用于每日标记和错误记录
const (
	stepStatus        = "status"
	stepBilling       = "billing"
	stepNotifications = "notifications"
)

// batchMarkerKey 每个步骤每天一个标记，不同开关组合共用
func batchMarkerKey(date, step string) string {
	return fmt.Sprintf("billing:daily:%s:%s", date, step)
}

type batchStep struct {
	name string
	run  func(ctx context.Context, now time.Time, opts BatchOptions, result *BatchResult) error
}

func (b *BillingBatch) steps(opts BatchOptions) []batchStep {
	var steps []batchStep
	if opts.StatusUpdates {
		steps = append(steps, batchStep{name: stepStatus, run: b.updateStatuses})
	}
	if opts.Billing {
		steps = append(steps, batchStep{name: stepBilling, run: b.processBilling})
	}
	if opts.Notifications {
		steps = append(steps, batchStep{name: stepNotifications, run: b.sendNotifications})
	}
	return steps
}

// Run 执行一次批处理。今天已完成的步骤会被跳过，除非指定 Force。
func (b *BillingBatch) Run(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	now := b.now()
	result := &BatchResult{
		RunID:        uuid.New().String(),
		Date:         now.Format(dateLayout),
		Mode:         opts.Mode(),
		DryRun:       opts.DryRun,
		StartedAt:    now,
		SkippedSteps: []string{},
		Errors:       []BatchItemError{},
	}
	log := logger.GetLogger().WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"mode":    result.Mode,
		"dry_run": opts.DryRun,
	})

	var pending []batchStep
	for _, step := range b.steps(opts) {
		if !opts.Force {
			done, err := b.store.Exists(ctx, batchMarkerKey(result.Date, step.name))
			if err != nil {
				metrics.BatchRuns.WithLabelValues("failed").Inc()
				return nil, fmt.Errorf("检查每日执行标记失败: %w", err)
			}
			if done {
				result.SkippedSteps = append(result.SkippedSteps, step.name)
				continue
			}
		}
		pending = append(pending, step)
	}

	if len(pending) == 0 {
		result.Skipped = true
		result.SkipReason = "今日已执行，如需重新执行请使用 --force"
		result.FinishedAt = b.now()
		metrics.BatchRuns.WithLabelValues("skipped").Inc()
		log.Info("今日批处理已执行，跳过")
		return result, nil
	}
	if len(result.SkippedSteps) > 0 {
		log.WithField("skipped_steps", result.SkippedSteps).Info("部分步骤今日已执行，跳过")
	}

	log.Info("开始执行订阅批处理")

	for _, step := range pending {
		if err := step.run(ctx, now, opts, result); err != nil {
			return b.abort(result, log, step.name, err)
		}
		if opts.DryRun {
			continue
		}
		// 步骤完成即写标记，后续步骤中止也不会导致重复扣款
		if err := b.store.Set(ctx, batchMarkerKey(result.Date, step.name), result.RunID, batchMarkerTTL); err != nil {
			log.WithError(err).WithField("step", step.name).Warn("写入每日执行标记失败")
		}
	}

	result.FinishedAt = b.now()

	metrics.BatchRuns.WithLabelValues("completed").Inc()
	log.WithFields(logrus.Fields{
		"expired":               result.Expired,
		"reactivated":           result.Reactivated,
		"processed":             result.Processed,
		"failed":                result.Failed,
		"suspended":             result.Suspended,
		"notifications_sent":    result.NotificationsSent,
		"notifications_skipped": result.NotificationsSkipped,
		"errors":                len(result.Errors),
	}).Info("订阅批处理完成")
	for _, item := range result.Errors {
		log.WithFields(logrus.Fields{
			"subscription_id": item.SubscriptionID,
			"step":            item.Step,
		}).Warn(item.Message)
	}
	return result, nil
}

func (b *BillingBatch) abort(result *BatchResult, log *logrus.Entry, step string, err error) (*BatchResult, error) {
	result.FinishedAt = b.now()
	metrics.BatchRuns.WithLabelValues("failed").Inc()
	log.WithError(err).WithField("step", step).Error("订阅批处理中止")
	return result, fmt.Errorf("%s 步骤失败: %w", step, err)
}

// ========== 状态检查 ==========

func (b *BillingBatch) updateStatuses(ctx context.Context, now time.Time, opts BatchOptions, result *BatchResult) error {
	policy := StatusPolicy{
		SuspendedExpireAfter: time.Duration(b.cfg.SuspendedExpireDays) * 24 * time.Hour,
	}
	statuses := []string{
		models.SubscriptionTrialing,
		models.SubscriptionActive,
		models.SubscriptionSuspended,
	}

	for _, status := range statuses {
		subs, err := b.repos.Subscriptions.FindByStatus(ctx, status)
		if err != nil {
			return err
		}
		for i := range subs {
			sub := &subs[i]
			to, ok := EvaluateStatus(sub, now, policy)
			if !ok {
				continue
			}
			if !opts.DryRun {
				if err := applyTransition(sub, to, now); err != nil {
					result.addError(sub.ID, stepStatus, err)
					continue
				}
				if err := b.repos.Subscriptions.Update(ctx, sub); err != nil {
					result.addError(sub.ID, stepStatus, err)
					continue
				}
			}
			switch to {
			case models.SubscriptionExpired:
				result.Expired++
			case models.SubscriptionActive:
				result.Reactivated++
			}
		}
	}
	return nil
}

// ========== 续费扣款 ==========

func (b *BillingBatch) processBilling(ctx context.Context, now time.Time, opts BatchOptions, result *BatchResult) error {
	due, err := b.repos.Subscriptions.FindDueForBilling(ctx, now)
	if err != nil {
		return err
	}
	for i := range due {
		b.charge(ctx, &due[i], now, opts, result)
	}
	return nil
}

// charge 处理单个订阅的扣款，失败只记录不返回
func (b *BillingBatch) charge(ctx context.Context, sub *models.Subscription, now time.Time, opts BatchOptions, result *BatchResult) {
	if opts.DryRun {
		result.Processed++
		return
	}

	payment := &models.Payment{
		SubscriptionID: sub.ID,
		RestaurantID:   sub.RestaurantID,
		Amount:         sub.Amount,
		Source:         models.PaymentSourceBatch,
	}

	charged, chargeErr := b.gateway.Charge(ctx, ChargeRequest{
		SubscriptionID: sub.ID,
		RestaurantID:   sub.RestaurantID,
		Amount:         sub.Amount,
		Description:    fmt.Sprintf("subscription %d renewal", sub.ID),
	})

	if chargeErr != nil {
		metrics.Charges.WithLabelValues("failed").Inc()
		result.Failed++
		result.addError(sub.ID, stepBilling, chargeErr)

		payment.Status = models.PaymentFailed
		payment.FailureReason = truncate(chargeErr.Error(), 255)
		sub.PaymentFailures++
		if sub.PaymentFailures >= b.cfg.SuspendAfterFailures {
			if err := applyTransition(sub, models.SubscriptionSuspended, now); err != nil {
				result.addError(sub.ID, stepBilling, err)
			} else {
				result.Suspended++
			}
		}
	} else {
		metrics.Charges.WithLabelValues("succeeded").Inc()
		result.Processed++

		payment.Status = models.PaymentSucceeded
		payment.Reference = charged.Reference
		payment.PaidAt = timePtr(now)
		sub.PaymentFailures = 0
		from := now
		if sub.NextBillingDate != nil {
			from = *sub.NextBillingDate
		}
		advanceBilling(sub, from, b.cfg.GraceDays)
	}

	if err := b.repos.Payments.Create(ctx, payment); err != nil {
		result.addError(sub.ID, stepBilling, fmt.Errorf("保存扣款记录失败: %w", err))
	}
	if err := b.repos.Subscriptions.Update(ctx, sub); err != nil {
		result.addError(sub.ID, stepBilling, fmt.Errorf("更新订阅失败: %w", err))
	}
}

// ========== 到期提醒 ==========

func (b *BillingBatch) sendNotifications(ctx context.Context, now time.Time, opts BatchOptions, result *BatchResult) error {
	trialing, err := b.repos.Subscriptions.FindByStatus(ctx, models.SubscriptionTrialing)
	if err != nil {
		return err
	}
	active, err := b.repos.Subscriptions.FindByStatus(ctx, models.SubscriptionActive)
	if err != nil {
		return err
	}

	today := dateOnly(now)
	for _, days := range b.cfg.NotifyDays {
		target := today.AddDate(0, 0, days)
		for i := range trialing {
			sub := &trialing[i]
			if sub.TrialEndsAt != nil && sameDay(*sub.TrialEndsAt, target) {
				b.notify(ctx, sub, models.NotificationTrialEnding, days, *sub.TrialEndsAt, today, opts, result)
			}
		}
		for i := range active {
			sub := &active[i]
			if sub.NextBillingDate != nil && sameDay(*sub.NextBillingDate, target) {
				b.notify(ctx, sub, models.NotificationBillingDue, days, *sub.NextBillingDate, today, opts, result)
			}
		}
	}
	return nil
}

// notify 同一订阅同一提醒节点每天只发送一次
func (b *BillingBatch) notify(ctx context.Context, sub *models.Subscription, kind string, days int, due, today time.Time, opts BatchOptions, result *BatchResult) {
	sentOn := today.Format(dateLayout)

	sent, err := b.repos.Notifications.Exists(ctx, sub.ID, kind, days, sentOn)
	if err != nil {
		result.addError(sub.ID, stepNotifications, err)
		return
	}
	if sent {
		result.NotificationsSkipped++
		return
	}

	if sub.Restaurant == nil || sub.Restaurant.Email == "" {
		metrics.Notifications.WithLabelValues(kind, "failed").Inc()
		result.addError(sub.ID, stepNotifications, fmt.Errorf("餐厅未设置联系邮箱"))
		return
	}
	if opts.DryRun {
		result.NotificationsSent++
		return
	}

	notification := Notification{
		SubscriptionID: sub.ID,
		RestaurantID:   sub.RestaurantID,
		RestaurantName: sub.Restaurant.Name,
		Recipient:      sub.Restaurant.Email,
		Kind:           kind,
		DaysBefore:     days,
		DueDate:        due,
		Amount:         sub.Amount,
	}
	if sub.Plan != nil {
		notification.PlanName = sub.Plan.Name
	}

	messageID, err := b.notifier.Notify(ctx, notification)
	if err != nil {
		metrics.Notifications.WithLabelValues(kind, "failed").Inc()
		result.addError(sub.ID, stepNotifications, err)
		return
	}
	metrics.Notifications.WithLabelValues(kind, "sent").Inc()

	err = b.repos.Notifications.Create(ctx, &models.NotificationLog{
		SubscriptionID: sub.ID,
		Kind:           kind,
		DaysBefore:     days,
		SentOn:         sentOn,
		Recipient:      notification.Recipient,
		MessageID:      messageID,
	})
	if err != nil {
		result.addError(sub.ID, stepNotifications, fmt.Errorf("保存提醒记录失败: %w", err))
	}
	result.NotificationsSent++
}

func sameDay(t, day time.Time) bool {
	return dateOnly(t.In(day.Location())).Equal(day)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
