package services

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"menulink/database"
	"menulink/models"
)

// NotifyAffiliate 给合伙人发送站内通知
// 写入通知表并尝试外部推送，两者都是尽力而为：
// 任何失败只记录日志后吞掉，通知的丢失绝不允许影响账本的正确性
func NotifyAffiliate(affiliateID uint, kind, title, body string) {
	notification := models.Notification{
		AffiliateID: affiliateID,
		Kind:        kind,
		Title:       title,
		Body:        body,
	}

	if err := database.GetDB().Create(&notification).Error; err != nil {
		log.Printf("写入通知失败: %v, 合伙人ID: %d, 类型: %s", err, affiliateID, kind)
		return
	}

	// 外部推送在独立协程中进行，不阻塞调用方
	go pushTelegram(affiliateID, title, body)
}

// MarkNotificationRead 将通知标记为已读
// 归属校验失败（通知不存在或不属于该合伙人）返回false而不是错误，
// 因为前端会例行重试该操作；属于该合伙人且已读的通知幂等返回true
func MarkNotificationRead(notificationID, affiliateID uint) bool {
	db := database.GetDB()

	result := db.Model(&models.Notification{}).
		Where("id = ? AND affiliate_id = ? AND read_at IS NULL", notificationID, affiliateID).
		Update("read_at", time.Now())
	if result.Error != nil {
		log.Printf("标记通知已读失败: %v, 通知ID: %d", result.Error, notificationID)
		return false
	}

	if result.RowsAffected == 0 {
		// 没有命中：要么通知不属于该合伙人，要么已经读过
		var notification models.Notification
		err := db.Where("id = ? AND affiliate_id = ?", notificationID, affiliateID).First(&notification).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("查询通知失败: %v, 通知ID: %d", err, notificationID)
			}
			return false
		}
		// 已读的重复标记按成功处理
		return notification.ReadAt != nil
	}

	return true
}

// UnreadCount 查询合伙人的未读通知数量
func UnreadCount(affiliateID uint) (int64, error) {
	var count int64
	err := database.GetDB().Model(&models.Notification{}).
		Where("affiliate_id = ? AND read_at IS NULL", affiliateID).
		Count(&count).Error
	return count, err
}
