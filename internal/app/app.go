// Package app 组装服务进程和批处理命令共用的依赖。
package app

import (
	"context"
	"fmt"

	"mesa/internal/database"
	"mesa/internal/services"
	"mesa/pkg/config"
	"mesa/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Build 连接数据库、执行迁移并创建业务服务
func Build(cfg *config.Config) (*services.Container, error) {
	if err := database.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}
	if err := database.Migrate(); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return services.NewContainer(services.Options{
		DB:       database.GetDB(),
		Store:    database.NewCacheStore(cfg),
		Gateway:  services.OfflineGateway{},
		Notifier: services.NewMailNotifier(database.GetRedisQueue()),
		Cache:    cfg.Cache,
		Billing:  cfg.Billing,
	}), nil
}

// Seed 幂等初始化系统权限、系统角色和套餐
func Seed(ctx context.Context, c *services.Container) error {
	perms, err := c.Permissions.CreateSystemPermissions(ctx)
	if err != nil {
		return fmt.Errorf("初始化系统权限失败: %w", err)
	}
	created, updated, err := c.Roles.CreateSystemRoles(ctx)
	if err != nil {
		return fmt.Errorf("初始化系统角色失败: %w", err)
	}
	plans, err := c.Subscriptions.SeedPlans(ctx)
	if err != nil {
		return fmt.Errorf("初始化套餐失败: %w", err)
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"permissions_created": perms,
		"roles_created":       created,
		"roles_updated":       updated,
		"plans_created":       plans,
	}).Info("种子数据初始化完成")
	return nil
}

// Close 释放数据库和Redis连接
func Close() {
	log := logger.GetLogger()
	if err := database.Close(); err != nil {
		log.WithError(err).Error("关闭数据库连接失败")
	}
	if err := database.CloseRedis(); err != nil {
		log.WithError(err).Error("关闭Redis连接失败")
	}
}
