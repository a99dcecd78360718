package handlers

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"menulink/database"
	"menulink/models"
	"menulink/services"
)

// RecordReferralClick 记录推广链接点击
// 公开接口，访客通过推广链接到达落地页时由前端调用
// 未知推广码和窗口内的重复点击都返回recorded=false，不报错，
// 保证接口幂等且不给推广码枚举攻击提供信号
func RecordReferralClick(c *fiber.Ctx) error {
	// 解析请求数据
	var clickData struct {
		Code string `json:"code"`
	}

	if err := c.BodyParser(&clickData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	if clickData.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "推广码不能为空",
		})
	}

	// 记录点击，来源IP从请求中获取
	recorded, err := services.RecordClick(clickData.Code, c.IP())
	if err != nil {
		log.Printf("记录推广点击失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "记录点击失败",
		})
	}

	return c.JSON(fiber.Map{
		"recorded": recorded,
	})
}

// GetAffiliateClicks 获取合伙人的点击记录
// 管理端接口，用于流量与反作弊分析
func GetAffiliateClicks(c *fiber.Ctx) error {
	// 获取合伙人ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的合伙人ID",
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

	// 构建查询
	db := database.GetDB().Model(&models.ReferralClick{}).Where("affiliate_id = ?", id)

	// 计算总记录数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("计算点击记录总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "计算点击记录总数失败",
		})
	}

	// 查询点击记录
	var clicks []models.ReferralClick
	offset := (query.Page - 1) * query.PageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(query.PageSize).Find(&clicks).Error; err != nil {
		log.Printf("获取点击记录失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取点击记录失败",
		})
	}

	return c.JSON(fiber.Map{
		"total": total,
		"page":  query.Page,
		"size":  query.PageSize,
		"data":  clicks,
	})
}
