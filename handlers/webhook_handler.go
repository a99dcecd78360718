package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"menulink/models"
	"menulink/services"
)

// PaymentSucceededWebhook 支付成功回调
// 支付网关在每笔订阅扣款成功后调用，可能任意次重放同一笔支付
// 入账引擎按payment_id幂等，重放永远安全；没有推荐人的付款静默跳过
// 入账过程中的业务性跳过（无绑定、合伙人暂停）不向网关报错，
// 避免网关因为非错误情况不断重试
func PaymentSucceededWebhook(c *fiber.Ctx) error {
	// 解析回调数据
	var payload struct {
		PaymentID   string  `json:"payment_id"`
		UserID      uint    `json:"user_id"`
		Plan        string  `json:"plan"`
		GrossAmount float64 `json:"gross_amount"`
		VATRate     float64 `json:"vat_rate"`
		Occurrence  string  `json:"occurrence"`
	}

	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	// 验证必填字段
	if payload.PaymentID == "" || payload.UserID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "支付ID和用户ID不能为空",
		})
	}

	if payload.GrossAmount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "支付金额必须大于0",
		})
	}

	// 执行佣金入账
	commission, err := services.AccrueCommission(payload.PaymentID, payload.UserID,
		payload.Plan, payload.GrossAmount, payload.VATRate, payload.Occurrence)
	if err != nil {
		if errors.Is(err, services.ErrUnknownPlan) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "未知的订阅套餐: " + payload.Plan,
			})
		}
		// 基础设施错误记录日志后返回500，让网关按自己的策略重试
		log.Printf("佣金入账失败: %v, 支付ID: %s", err, payload.PaymentID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "佣金入账失败",
		})
	}

	// 无推荐人或合伙人被暂停时commission为nil，属于正常跳过
	if commission == nil {
		return c.JSON(fiber.Map{
			"message": "无需入账",
		})
	}

	return c.JSON(fiber.Map{
		"message": "佣金已入账",
		"data": fiber.Map{
			"commission_id": commission.ID,
			"amount":        commission.Amount,
			"status":        commission.EffectiveStatus(time.Now()),
			"eligible_at":   commission.EligibleAt,
		},
	})
}

// SignupWebhook 用户注册回调
// 注册服务在每次账号创建后调用，携带注册时提交的推广码（可能为空）
// 绑定按用户ID幂等，重放不会产生第二条绑定记录
func SignupWebhook(c *fiber.Ctx) error {
	// 解析回调数据
	var payload struct {
		UserID       uint   `json:"user_id"`
		ReferralCode string `json:"referral_code"`
	}

	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	if payload.UserID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "用户ID不能为空",
		})
	}

	// 创建推广绑定，推广码为空或未知时静默跳过
	binding, err := services.BindReferral(payload.UserID, payload.ReferralCode)
	if err != nil {
		log.Printf("创建推广绑定失败: %v, 用户ID: %d", err, payload.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "创建推广绑定失败",
		})
	}

	if binding == nil {
		return c.JSON(fiber.Map{
			"message": "无推荐人",
		})
	}

	return c.JSON(fiber.Map{
		"message": "推广绑定已创建",
		"data": fiber.Map{
			"affiliate_id":     binding.AffiliateID,
			"referred_user_id": binding.ReferredUserID,
		},
	})
}

// PaymentRefundedWebhook 退款/拒付回调
// 支付网关在退款或拒付发生时调用，对应佣金被永久作废
// 已随提现结算的佣金不可作废，返回409由运营侧人工处理
func PaymentRefundedWebhook(c *fiber.Ctx) error {
	// 解析回调数据
	var payload struct {
		PaymentID string `json:"payment_id"`
	}

	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	if payload.PaymentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "支付ID不能为空",
		})
	}

	// 作废佣金
	commission, err := services.VoidCommission(payload.PaymentID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCommissionNotFound):
			// 该支付本来就没有产生佣金（无推荐人），正常跳过
			return c.JSON(fiber.Map{
				"message": "该支付没有关联的佣金",
			})
		case errors.Is(err, services.ErrCommissionPaid):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "佣金已随提现结算，无法作废，请人工处理",
			})
		default:
			log.Printf("作废佣金失败: %v, 支付ID: %s", err, payload.PaymentID)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "作废佣金失败",
			})
		}
	}

	return c.JSON(fiber.Map{
		"message": "佣金已作废",
		"data": fiber.Map{
			"commission_id": commission.ID,
			"status":        models.CommissionStatusVoided,
		},
	})
}
