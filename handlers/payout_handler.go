package handlers

import (
	"errors"
	"log"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"menulink/database"
	"menulink/models"
	"menulink/services"
	"menulink/utils"
)

// SettleAffiliatePayout 触发提现结算
// 管理端接口，操作员为指定合伙人发起结算，可附带外部转账参考号
// 结算要么完整提交要么完整回滚，结果必须同步明确返回给操作员：
// 没有可结算佣金返回409，并发竞争重试耗尽返回409，绝不留下模糊状态
func SettleAffiliatePayout(c *fiber.Ctx) error {
	// 获取合伙人ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的合伙人ID",
		})
	}

	// 解析请求数据，外部参考号可选
	var settleData struct {
		ExternalRef string `json:"external_ref"`
	}

	if err := c.BodyParser(&settleData); err != nil && err != fiber.ErrUnprocessableEntity {
		// 空请求体是允许的
		log.Printf("解析结算参数失败: %v", err)
	}

	// 执行结算
	payout, err := services.Settle(uint(id), settleData.ExternalRef)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAffiliateNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "合伙人不存在",
			})
		case errors.Is(err, services.ErrAffiliateSuspended):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "合伙人已被暂停，不能发起结算",
			})
		case errors.Is(err, services.ErrNoEligibleFunds):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "没有可结算的佣金",
			})
		case errors.Is(err, services.ErrAlreadySettled):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "结算竞争重试已耗尽，请稍后再试",
			})
		default:
			log.Printf("结算失败: %v, 合伙人ID: %d", err, id)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "结算失败",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "结算成功",
		"data": fiber.Map{
			"payout_id":    payout.ID,
			"payout_no":    payout.PayoutNo,
			"total_amount": payout.TotalAmount,
			"item_count":   payout.ItemCount,
			"external_ref": payout.ExternalRef,
		},
	})
}

// listPayouts 查询指定合伙人的提现记录
func listPayouts(c *fiber.Ctx, affiliateID uint) error {
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
	db := database.GetDB().Model(&models.Payout{}).Where("affiliate_id = ?", affiliateID)

	// 计算总记录数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("计算提现记录总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询提现记录失败",
		})
	}

	// 查询提现记录
	var payouts []models.Payout
	offset := (query.Page - 1) * query.PageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(query.PageSize).Find(&payouts).Error; err != nil {
		log.Printf("查询提现记录失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询提现记录失败",
		})
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"list":      payouts,
			"total":     total,
			"page":      query.Page,
			"page_size": query.PageSize,
			"pages":     int(math.Ceil(float64(total) / float64(query.PageSize))),
		},
	})
}

// GetOwnPayouts 合伙人查询自己的提现记录
func GetOwnPayouts(c *fiber.Ctx) error {
	// 从上下文中获取合伙人ID
	affiliateID, err := utils.GetAffiliateIDFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未找到合伙人身份信息",
		})
	}

	return listPayouts(c, affiliateID)
}

// GetAffiliatePayouts 获取指定合伙人的提现记录
// 管理端接口
func GetAffiliatePayouts(c *fiber.Ctx) error {
	// 获取合伙人ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的合伙人ID",
		})
	}

	return listPayouts(c, uint(id))
}

// GetPayoutDetail 获取提现单详情
// 管理端接口，返回提现单、名下佣金明细，并按佣金表重算合计做一致性校验
// 重算结果与落库总额不一致说明账本被绕过结算引擎修改过，必须暴露出来
func GetPayoutDetail(c *fiber.Ctx) error {
	// 获取提现单ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的提现单ID",
		})
	}

	// 查询提现单
	var payout models.Payout
	if err := database.GetDB().First(&payout, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "提现单不存在",
			})
		}
		log.Printf("查询提现单失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询提现单失败",
		})
	}

	// 查询提现单名下的佣金明细
	var commissions []models.Commission
	if err := database.GetDB().Where("payout_id = ?", payout.ID).Find(&commissions).Error; err != nil {
		log.Printf("查询提现单佣金明细失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询提现单佣金明细失败",
		})
	}

	// 一致性校验：按佣金表重算合计
	recomputed, consistent, err := services.VerifyPayoutTotal(payout.ID)
	if err != nil {
		log.Printf("校验提现单合计失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "校验提现单合计失败",
		})
	}

	if !consistent {
		log.Printf("提现单合计不一致！提现单ID: %d, 落库总额: %.2f, 重算总额: %.2f",
			payout.ID, payout.TotalAmount, recomputed)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"payout":           payout,
			"commissions":      commissions,
			"recomputed_total": recomputed,
			"consistent":       consistent,
		},
	})
}
