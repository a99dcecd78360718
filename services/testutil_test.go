package services

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"menulink/database"
	"menulink/models"
)

// setupTestDB 创建内存SQLite数据库并注入全局连接
// 每个测试使用独立的内存数据库，互不干扰
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	// 内存SQLite的每个连接各自是一个独立数据库，
	// 限制为单连接，保证并发测试的所有协程看到同一份数据
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层数据库连接失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Affiliate{},
		&models.AffiliateToken{},
		&models.ReferralBinding{},
		&models.ReferralClick{},
		&models.Commission{},
		&models.Payout{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}

	database.SetDB(db)
	return db
}

// createTestAffiliate 创建测试用合伙人
func createTestAffiliate(t *testing.T, db *gorm.DB, code string) *models.Affiliate {
	t.Helper()

	affiliate := models.Affiliate{
		Name:         "测试合伙人" + code,
		Email:        fmt.Sprintf("%s@example.com", code),
		ReferralCode: code,
		Status:       "active",
	}
	if err := affiliate.SetPassword("test-password"); err != nil {
		t.Fatalf("设置密码失败: %v", err)
	}
	if err := db.Create(&affiliate).Error; err != nil {
		t.Fatalf("创建测试合伙人失败: %v", err)
	}

	return &affiliate
}

// createTestBinding 为用户创建推广绑定
func createTestBinding(t *testing.T, db *gorm.DB, affiliateID, userID uint) *models.ReferralBinding {
	t.Helper()

	binding := models.ReferralBinding{
		AffiliateID:    affiliateID,
		ReferredUserID: userID,
	}
	if err := db.Create(&binding).Error; err != nil {
		t.Fatalf("创建测试绑定失败: %v", err)
	}

	return &binding
}
