package services

import (
	"time"

	"mesa/internal/repository"
	"mesa/pkg/cache"
	"mesa/pkg/config"

	"gorm.io/gorm"
)

// Options 组装服务所需的外部依赖
type Options struct {
	DB       *gorm.DB
	Store    cache.Store
	Gateway  PaymentGateway
	Notifier Notifier
	Cache    config.CacheConfig
	Billing  config.BillingConfig
	Now      func() time.Time // 为空时使用 time.Now
}

// Container 全部业务服务
type Container struct {
	Repos         *repository.Repositories
	Resolver      *PermissionResolver
	Permissions   *PermissionService
	Roles         *RoleService
	Assignments   *AssignmentService
	Users         *UserService
	Restaurants   *RestaurantService
	Subscriptions *SubscriptionService
	Batch         *BillingBatch
}

func NewContainer(opts Options) *Container {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	gateway := opts.Gateway
	if gateway == nil {
		gateway = OfflineGateway{}
	}

	repos := repository.New(opts.DB)
	resolver := NewPermissionResolver(repos, NewPermissionCache(opts.Store), opts.Cache.PermissionTTL, now)
	permissions := NewPermissionService(repos, resolver)
	subscriptions := NewSubscriptionService(repos, opts.Billing, now)

	return &Container{
		Repos:         repos,
		Resolver:      resolver,
		Permissions:   permissions,
		Roles:         NewRoleService(repos, permissions, resolver, now),
		Assignments:   NewAssignmentService(repos, resolver, now),
		Users:         NewUserService(repos, permissions, resolver, subscriptions, now),
		Restaurants:   NewRestaurantService(repos, opts.Billing.DefaultPlan, now),
		Subscriptions: subscriptions,
		Batch:         NewBillingBatch(repos, opts.Store, gateway, opts.Notifier, opts.Billing, now),
	}
}
