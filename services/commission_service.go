package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"menulink/database"
	"menulink/models"
	"menulink/utils"
)

// 佣金账本相关的业务错误
var (
	ErrAffiliateNotFound  = errors.New("合伙人不存在")
	ErrAffiliateSuspended = errors.New("合伙人已被暂停")
	ErrUnknownPlan        = errors.New("未知的订阅套餐")
	ErrCommissionNotFound = errors.New("佣金记录不存在")
	ErrCommissionPaid     = errors.New("已结算的佣金不能作废")
)

// AccrueCommission 佣金入账
// 由支付成功Webhook触发，Webhook可能被任意次重放，整个函数必须按payment_id幂等：
// - 该payment_id已有佣金记录时原样返回已有记录，不报错
// - 付款用户没有推广绑定时静默跳过（返回nil, nil），这是正常情况而非错误
// - 合伙人被暂停或已删除时记录日志后静默跳过
// 计算规则：净额 = 含税额/(1+税率/100)，佣金 = Round2(净额*比例/100)
// 入账成功后发送new_sale通知，通知失败不回滚佣金
func AccrueCommission(paymentID string, payerUserID uint, plan string, grossAmount, vatRate float64, occurrence string) (*models.Commission, error) {
	db := database.GetDB()

	// 幂等检查：该支付ID已入账过则直接返回已有记录
	var existing models.Commission
	err := db.Where("payment_id = ?", paymentID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 查询付款用户的推广绑定，没有绑定表示无推荐人
	var binding models.ReferralBinding
	if err := db.Where("referred_user_id = ?", payerUserID).First(&binding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// 验证合伙人状态，暂停的合伙人不入账新佣金
	var affiliate models.Affiliate
	if err := db.First(&affiliate, binding.AffiliateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("佣金入账跳过：绑定指向的合伙人不存在, 合伙人ID: %d, 支付ID: %s", binding.AffiliateID, paymentID)
			return nil, nil
		}
		return nil, err
	}
	if affiliate.IsSuspended() {
		log.Printf("佣金入账跳过：合伙人已被暂停, 合伙人ID: %d, 支付ID: %s", affiliate.ID, paymentID)
		return nil, nil
	}

	// 根据套餐查询佣金比例
	rate, ok := CommissionRateForPlan(plan)
	if !ok {
		return nil, ErrUnknownPlan
	}

	if occurrence != models.OccurrenceFirst && occurrence != models.OccurrenceRenewal {
		occurrence = models.OccurrenceFirst
	}

	// 计算税后净额和佣金金额
	net := utils.NetOfVAT(grossAmount, vatRate)
	amount := utils.Round2(net * rate / 100)

	now := time.Now()
	commission := models.Commission{
		AffiliateID:    affiliate.ID,
		ReferredUserID: payerUserID,
		PaymentID:      paymentID,
		Plan:           plan,
		Occurrence:     occurrence,
		GrossAmount:    grossAmount,
		VATRate:        vatRate,
		CommissionRate: rate,
		Amount:         amount,
		Status:         models.CommissionStatusPending,
		EligibleAt:     now.Add(HoldDuration()),
	}

	if err := db.Create(&commission).Error; err != nil {
		// 并发重放可能抢先插入了同一个payment_id，唯一索引会拒绝本次插入
		// 回读后按"已入账"处理，保证Webhook可以无限次安全重试
		if err2 := db.Where("payment_id = ?", paymentID).First(&existing).Error; err2 == nil {
			return &existing, nil
		}
		return nil, err
	}

	// 通知是尽力而为的，失败绝不影响已提交的佣金
	NotifyAffiliate(affiliate.ID, models.NotificationKindNewSale, "新的佣金入账",
		fmt.Sprintf("您推荐的用户完成了一笔%s订阅付款，佣金%.2f已入账，将在%s后可提现。",
			planDisplayName(plan), amount, commission.EligibleAt.Format("2006-01-02")))

	return &commission, nil
}

// VoidCommission 作废佣金
// 由退款/拒付Webhook触发。只有尚未结算的佣金可以作废；
// 作废是永久的，作废后的佣金不再参与任何余额与结算计算
// 重复的作废请求幂等处理：已作废的记录原样返回
func VoidCommission(paymentID string) (*models.Commission, error) {
	db := database.GetDB()

	var commission models.Commission
	if err := db.Where("payment_id = ?", paymentID).First(&commission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommissionNotFound
		}
		return nil, err
	}

	// 条件更新：只作废仍处于pending的记录，避免与结算引擎竞争时产生已结算又作废的矛盾状态
	result := db.Model(&models.Commission{}).
		Where("id = ? AND status = ?", commission.ID, models.CommissionStatusPending).
		Update("status", models.CommissionStatusVoided)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		// 没有命中说明状态已经不是pending，回读判断具体情况
		if err := db.First(&commission, commission.ID).Error; err != nil {
			return nil, err
		}
		switch commission.Status {
		case models.CommissionStatusVoided:
			// 重复作废，幂等返回
			return &commission, nil
		case models.CommissionStatusPaid:
			return nil, ErrCommissionPaid
		default:
			return nil, fmt.Errorf("作废佣金失败，当前状态: %s", commission.Status)
		}
	}

	commission.Status = models.CommissionStatusVoided
	log.Printf("佣金已作废, 佣金ID: %d, 支付ID: %s", commission.ID, paymentID)
	return &commission, nil
}

// BalanceSummary 合伙人余额汇总
// 三个字段均按账本逐笔重算，作废的佣金被排除在所有统计之外
type BalanceSummary struct {
	PendingTotal  float64 `json:"pending_total"`  // 保留期内的佣金总额
	EligibleTotal float64 `json:"eligible_total"` // 可提现佣金总额
	PaidTotal     float64 `json:"paid_total"`     // 历史已结算总额
}

// Balances 查询合伙人余额
// 余额永远从佣金表直接聚合，绝不缓存为可变的累计字段，
// 这样作废和迟到的入账总能被立即正确反映，杜绝缓存余额与逐笔明细漂移
// pending/eligible的划分按eligible_at与当前时间懒惰推导，不需要任何状态翻转写操作
func Balances(affiliateID uint) (*BalanceSummary, error) {
	db := database.GetDB()
	now := time.Now()

	var summary BalanceSummary

	// 保留期内：pending且尚未到达可提现时间
	if err := db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ? AND eligible_at > ?", affiliateID, models.CommissionStatusPending, now).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&summary.PendingTotal).Error; err != nil {
		return nil, err
	}

	// 可提现：pending且已过可提现时间
	if err := db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ? AND eligible_at <= ?", affiliateID, models.CommissionStatusPending, now).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&summary.EligibleTotal).Error; err != nil {
		return nil, err
	}

	// 已结算
	if err := db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ?", affiliateID, models.CommissionStatusPaid).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&summary.PaidTotal).Error; err != nil {
		return nil, err
	}

	summary.PendingTotal = utils.Round2(summary.PendingTotal)
	summary.EligibleTotal = utils.Round2(summary.EligibleTotal)
	summary.PaidTotal = utils.Round2(summary.PaidTotal)

	return &summary, nil
}

// StatusCounts 按展示状态统计合伙人的佣金笔数
// 用于合伙人端的进度展示，eligible同样按时间懒惰推导
func StatusCounts(affiliateID uint) (map[string]int64, error) {
	db := database.GetDB()
	now := time.Now()

	var pending, eligible, paid, voided int64

	if err := db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ? AND eligible_at > ?", affiliateID, models.CommissionStatusPending, now).
		Count(&pending).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ? AND eligible_at <= ?", affiliateID, models.CommissionStatusPending, now).
		Count(&eligible).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ?", affiliateID, models.CommissionStatusPaid).
		Count(&paid).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ?", affiliateID, models.CommissionStatusVoided).
		Count(&voided).Error; err != nil {
		return nil, err
	}

	return map[string]int64{
		models.CommissionStatusPending:  pending,
		models.CommissionStatusEligible: eligible,
		models.CommissionStatusPaid:     paid,
		models.CommissionStatusVoided:   voided,
	}, nil
}

// planDisplayName 返回套餐的展示名称
func planDisplayName(plan string) string {
	switch plan {
	case models.PlanMonthly:
		return "月付"
	case models.PlanYearly:
		return "年付"
	default:
		return plan
	}
}
