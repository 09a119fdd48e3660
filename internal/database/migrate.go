package database

import (
	"mesa/internal/models"
	"mesa/pkg/logger"

	"gorm.io/gorm"
)

// Migrate 执行数据库迁移
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	if err := AutoMigrate(DB); err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")
	return nil
}

// AutoMigrate 迁移全部模型，测试中也用于初始化内存库
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Restaurant{},
		&models.User{},
		&models.Permission{},
		&models.Role{},
		&models.UserRole{},
		&models.Plan{},
		&models.Subscription{},
		&models.Payment{},
		&models.NotificationLog{},
	)
}
