package models

import (
	"time"
)

// 佣金状态常量
// pending和paid、voided是落库状态；eligible是由eligible_at推导出的展示状态
const (
	CommissionStatusPending  = "pending"  // 等待期，尚未到达可提现时间
	CommissionStatusEligible = "eligible" // 可提现（推导状态：pending且已过eligible_at）
	CommissionStatusPaid     = "paid"     // 已随某次提现结算
	CommissionStatusVoided   = "voided"   // 已作废（退款/拒付），不再参与任何统计
)

// 付款场景常量
const (
	OccurrenceFirst   = "first"   // 首次订阅付款
	OccurrenceRenewal = "renewal" // 续费付款
)

// 订阅套餐常量
const (
	PlanMonthly = "monthly" // 月付套餐
	PlanYearly  = "yearly"  // 年付套餐
)

// Commission 佣金流水模型
// 每一笔成功的订阅付款对应至多一条佣金记录，payment_id上的唯一索引是幂等键
// 支付网关的Webhook可能重复投递，重复的payment_id直接返回已有记录
// 状态只能单向推进：pending -> (eligible) -> paid；未结算的记录可以作废为voided
type Commission struct {
	ID             uint       `json:"id" gorm:"primaryKey"`                  // 主键ID
	AffiliateID    uint       `json:"affiliate_id" gorm:"index"`             // 推广合伙人ID
	ReferredUserID uint       `json:"referred_user_id" gorm:"index"`         // 产生付款的被推荐用户ID
	PaymentID      string     `json:"payment_id" gorm:"size:64;uniqueIndex"` // 原始支付ID，唯一，防止重复入账
	Plan           string     `json:"plan" gorm:"size:20"`                   // 订阅套餐：monthly月付, yearly年付
	Occurrence     string     `json:"occurrence" gorm:"size:20"`             // 付款场景：first首次, renewal续费
	GrossAmount    float64    `json:"gross_amount"`                          // 含税总金额
	VATRate        float64    `json:"vat_rate"`                              // 入账时使用的增值税率（百分数）
	CommissionRate float64    `json:"commission_rate"`                       // 入账时使用的佣金比例（百分数）
	Amount         float64    `json:"amount"`                                // 佣金金额（税后净额 * 比例，四舍五入保留2位）
	Status         string     `json:"status" gorm:"size:20;index;default:pending"` // 落库状态：pending, paid, voided
	EligibleAt     time.Time  `json:"eligible_at" gorm:"index"`              // 可提现时间 = 创建时间 + 安全保留期
	PaidAt         *time.Time `json:"paid_at"`                               // 结算时间，仅结算引擎写入
	PayoutID       *uint      `json:"payout_id" gorm:"index"`                // 所属提现单ID，与paid_at同时写入
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`      // 创建时间
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`      // 更新时间
}

// TableName 返回表名
func (Commission) TableName() string {
	return "commissions"
}

// EffectiveStatus 返回展示用状态
// pending记录一旦过了可提现时间即视为eligible，无需任何写操作
// 懒惰推导避免了依赖定时任务翻转状态，资金可见性的唯一事实来源是eligible_at
func (c *Commission) EffectiveStatus(now time.Time) string {
	if c.Status == CommissionStatusPending && !now.Before(c.EligibleAt) {
		return CommissionStatusEligible
	}
	return c.Status
}
