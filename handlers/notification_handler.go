package handlers

import (
	"log"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"menulink/database"
	"menulink/models"
	"menulink/services"
	"menulink/utils"
)

// GetOwnNotifications 合伙人查询自己的通知列表
// 按创建时间倒序分页，并附带未读数量
func GetOwnNotifications(c *fiber.Ctx) error {
	// 从上下文中获取合伙人ID
	affiliateID, err := utils.GetAffiliateIDFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未找到合伙人身份信息",
		})
	}

	// 解析查询参数
	var query struct {
		Page     int `query:"page"`
		PageSize int `query:"page_size"`
	}

	if err := c.QueryParser(&query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "查询参数解析失败: " + err.Error(),
		})
	}

	// 设置默认分页参数
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 10
	}

	// 构建查询条件
	db := database.GetDB().Model(&models.Notification{}).Where("affiliate_id = ?", affiliateID)

	// 计算总记录数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("计算通知总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询通知失败",
		})
	}

	// 查询通知列表
	var notifications []models.Notification
	offset := (query.Page - 1) * query.PageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(query.PageSize).Find(&notifications).Error; err != nil {
		log.Printf("查询通知失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询通知失败",
		})
	}

	// 查询未读数量
	unread, err := services.UnreadCount(affiliateID)
	if err != nil {
		log.Printf("查询未读通知数量失败: %v", err)
		// 未读数量查询失败不影响列表返回
		unread = 0
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"list":      notifications,
			"unread":    unread,
			"total":     total,
			"page":      query.Page,
			"page_size": query.PageSize,
			"pages":     int(math.Ceil(float64(total) / float64(query.PageSize))),
		},
	})
}

// MarkNotificationRead 合伙人标记通知为已读
// 通知不存在或不属于当前合伙人时返回marked=false，不报错，
// 因为前端会例行重试该操作
func MarkNotificationRead(c *fiber.Ctx) error {
	// 从上下文中获取合伙人ID
	affiliateID, err := utils.GetAffiliateIDFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未找到合伙人身份信息",
		})
	}

	// 获取通知ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的通知ID",
		})
	}

	// 执行标记
	marked := services.MarkNotificationRead(uint(id), affiliateID)

	return c.JSON(fiber.Map{
		"marked": marked,
	})
}
