package handlers

import (
	"log"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"menulink/database"
	"menulink/models"
	"menulink/services"
	"menulink/utils"
)

// commissionQuery 佣金记录查询参数
type commissionQuery struct {
	Plan     string `query:"plan"`      // 套餐筛选：monthly, yearly
	Status   string `query:"status"`    // 状态筛选：pending, eligible, paid, voided（eligible为推导状态）
	Page     int    `query:"page"`      // 页码
	PageSize int    `query:"page_size"` // 每页数量
}

// applyStatusFilter 将展示状态翻译为落库查询条件
// eligible和pending都存储为pending，靠eligible_at与当前时间区分
func applyStatusFilter(db *gorm.DB, status string, now time.Time) *gorm.DB {
	switch status {
	case models.CommissionStatusPending:
		return db.Where("status = ? AND eligible_at > ?", models.CommissionStatusPending, now)
	case models.CommissionStatusEligible:
		return db.Where("status = ? AND eligible_at <= ?", models.CommissionStatusPending, now)
	case models.CommissionStatusPaid, models.CommissionStatusVoided:
		return db.Where("status = ?", status)
	default:
		return db
	}
}

// listCommissions 查询指定合伙人的佣金记录
// 支持按套餐和展示状态筛选，按创建时间倒序分页
// 返回的每条记录额外带上按当前时间推导的展示状态
func listCommissions(c *fiber.Ctx, affiliateID uint) error {
	// 解析查询参数
	var query commissionQuery
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

	now := time.Now()

	// 构建查询条件
	db := database.GetDB().Model(&models.Commission{}).Where("affiliate_id = ?", affiliateID)

	// 按套餐筛选
	if query.Plan != "" {
		db = db.Where("plan = ?", query.Plan)
	}

	// 按展示状态筛选
	if query.Status != "" {
		db = applyStatusFilter(db, query.Status, now)
	}

	// 计算总记录数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("计算佣金记录总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询佣金记录失败",
		})
	}

	// 查询佣金记录
	var commissions []models.Commission
	offset := (query.Page - 1) * query.PageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(query.PageSize).Find(&commissions).Error; err != nil {
		log.Printf("查询佣金记录失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询佣金记录失败",
		})
	}

	// 附加推导的展示状态
	list := make([]fiber.Map, 0, len(commissions))
	for _, commission := range commissions {
		list = append(list, fiber.Map{
			"id":               commission.ID,
			"payment_id":       commission.PaymentID,
			"referred_user_id": commission.ReferredUserID,
			"plan":             commission.Plan,
			"occurrence":       commission.Occurrence,
			"gross_amount":     commission.GrossAmount,
			"vat_rate":         commission.VATRate,
			"commission_rate":  commission.CommissionRate,
			"amount":           commission.Amount,
			"status":           commission.EffectiveStatus(now),
			"eligible_at":      commission.EligibleAt,
			"paid_at":          commission.PaidAt,
			"payout_id":        commission.PayoutID,
			"created_at":       commission.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"list":      list,
			"total":     total,
			"page":      query.Page,
			"page_size": query.PageSize,
			"pages":     int(math.Ceil(float64(total) / float64(query.PageSize))),
		},
	})
}

// GetOwnCommissions 合伙人查询自己的佣金记录
func GetOwnCommissions(c *fiber.Ctx) error {
	// 从上下文中获取合伙人ID
	affiliateID, err := utils.GetAffiliateIDFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未找到合伙人身份信息",
		})
	}

	return listCommissions(c, affiliateID)
}

// GetAffiliateCommissions 获取指定合伙人的佣金记录
// 管理端接口
func GetAffiliateCommissions(c *fiber.Ctx) error {
	// 获取合伙人ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的合伙人ID",
		})
	}

	return listCommissions(c, uint(id))
}

// getBalances 查询指定合伙人的余额汇总和状态统计
func getBalances(c *fiber.Ctx, affiliateID uint) error {
	// 余额按账本逐笔重算
	summary, err := services.Balances(affiliateID)
	if err != nil {
		log.Printf("查询余额失败: %v, 合伙人ID: %d", err, affiliateID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询余额失败",
		})
	}

	// 按状态统计笔数，用于进度展示
	counts, err := services.StatusCounts(affiliateID)
	if err != nil {
		log.Printf("查询佣金状态统计失败: %v, 合伙人ID: %d", err, affiliateID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询佣金状态统计失败",
		})
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"balances":      summary,
			"status_counts": counts,
		},
	})
}

// GetOwnBalances 合伙人查询自己的余额
func GetOwnBalances(c *fiber.Ctx) error {
	// 从上下文中获取合伙人ID
	affiliateID, err := utils.GetAffiliateIDFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未找到合伙人身份信息",
		})
	}

	return getBalances(c, affiliateID)
}

// GetAffiliateBalances 获取指定合伙人的余额
// 管理端接口
func GetAffiliateBalances(c *fiber.Ctx) error {
	// 获取合伙人ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的合伙人ID",
		})
	}

	return getBalances(c, uint(id))
}
