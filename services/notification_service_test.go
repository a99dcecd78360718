package services

import (
	"testing"
	"time"

	"menulink/models"
)

func TestNotifyAffiliateOnAccrual(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "NOTI01")
	createTestBinding(t, db, affiliate.ID, 1100)

	if _, err := AccrueCommission("pay-noti-1", 1100, models.PlanMonthly, 600, 20, models.OccurrenceFirst); err != nil {
		t.Fatalf("佣金入账失败: %v", err)
	}

	// 入账后产生一条new_sale通知
	var notifications []models.Notification
	if err := db.Where("affiliate_id = ?", affiliate.ID).Find(&notifications).Error; err != nil {
		t.Fatalf("查询通知失败: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("期望1条通知，实际%d条", len(notifications))
	}
	if notifications[0].Kind != models.NotificationKindNewSale {
		t.Fatalf("通知类型错误，期望new_sale，实际%s", notifications[0].Kind)
	}
	if notifications[0].ReadAt != nil {
		t.Fatal("新通知应为未读")
	}

	// 重复入账不重复通知
	if _, err := AccrueCommission("pay-noti-1", 1100, models.PlanMonthly, 600, 20, models.OccurrenceFirst); err != nil {
		t.Fatalf("重复入账失败: %v", err)
	}
	var count int64
	if err := db.Model(&models.Notification{}).Where("affiliate_id = ?", affiliate.ID).Count(&count).Error; err != nil {
		t.Fatalf("统计通知失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("重复入账后仍应只有1条通知，实际%d条", count)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "NOTI02")
	other := createTestAffiliate(t, db, "NOTI03")

	NotifyAffiliate(affiliate.ID, models.NotificationKindPayoutCompleted, "提现结算完成", "测试通知")

	var notification models.Notification
	if err := db.Where("affiliate_id = ?", affiliate.ID).First(&notification).Error; err != nil {
		t.Fatalf("查询通知失败: %v", err)
	}

	unread, err := UnreadCount(affiliate.ID)
	if err != nil {
		t.Fatalf("查询未读数失败: %v", err)
	}
	if unread != 1 {
		t.Fatalf("未读数错误，期望1，实际%d", unread)
	}

	// 其他合伙人不能标记不属于自己的通知
	if MarkNotificationRead(notification.ID, other.ID) {
		t.Fatal("归属校验应拒绝其他合伙人的标记")
	}

	// 本人标记成功
	if !MarkNotificationRead(notification.ID, affiliate.ID) {
		t.Fatal("本人标记已读应成功")
	}

	unread, err = UnreadCount(affiliate.ID)
	if err != nil {
		t.Fatalf("查询未读数失败: %v", err)
	}
	if unread != 0 {
		t.Fatalf("标记后未读数应为0，实际%d", unread)
	}

	// 重复标记幂等返回成功
	if !MarkNotificationRead(notification.ID, affiliate.ID) {
		t.Fatal("重复标记应幂等返回成功")
	}

	// 不存在的通知返回false
	if MarkNotificationRead(99999, affiliate.ID) {
		t.Fatal("不存在的通知应返回false")
	}

	var stored models.Notification
	if err := db.First(&stored, notification.ID).Error; err != nil {
		t.Fatalf("查询通知失败: %v", err)
	}
	if stored.ReadAt == nil || time.Since(*stored.ReadAt) > time.Minute {
		t.Fatal("read_at应被写入为当前时间")
	}
}
