package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"menulink/database"
	"menulink/models"
	"menulink/utils"
)

// 结算相关的业务错误
var (
	ErrNoEligibleFunds = errors.New("没有可结算的佣金")
	ErrAlreadySettled  = errors.New("佣金已被并发结算")
)

// 输掉并发竞争后的最大重试次数
// 竞争域只有单个合伙人的可提现集合，重试代价很小
const settleMaxRetries = 3

// Settle 提现结算
// 将合伙人名下全部可提现佣金原子地转为已结算，并创建一张提现单
// 并发安全完全依赖数据库的条件更新：事务内只更新仍然满足
// "pending且已过可提现时间"的行，命中行数与选中集合不一致即整体回滚，
// 因此同一笔佣金在结构上不可能进入两张提现单
// 输掉竞争时用收缩后的可提现集合自动重试，重试耗尽才向调用方报错
func Settle(affiliateID uint, externalRef string) (*models.Payout, error) {
	db := database.GetDB()

	// 验证合伙人存在且未被暂停，暂停状态阻止新的提现
	var affiliate models.Affiliate
	if err := db.First(&affiliate, affiliateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAffiliateNotFound
		}
		return nil, err
	}
	if affiliate.IsSuspended() {
		return nil, ErrAffiliateSuspended
	}

	for attempt := 0; attempt < settleMaxRetries; attempt++ {
		payout, err := settleOnce(db, affiliateID, externalRef)
		if errors.Is(err, ErrAlreadySettled) {
			// 输掉竞争，用当前的可提现集合重新尝试
			log.Printf("结算竞争失败，准备重试, 合伙人ID: %d, 第%d次", affiliateID, attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		// 结算成功后通知合伙人，通知失败不影响已提交的结算
		NotifyAffiliate(affiliateID, models.NotificationKindPayoutCompleted, "提现结算完成",
			fmt.Sprintf("您的%d笔佣金共%.2f已完成结算，结算单号%s。", payout.ItemCount, payout.TotalAmount, payout.PayoutNo))
		return payout, nil
	}

	return nil, ErrAlreadySettled
}

// settleOnce 执行一轮结算尝试
// 步骤1（读）：选出当前全部可提现佣金，为空返回ErrNoEligibleFunds，绝不创建空提现单
// 步骤2（事务）：插入提现单，然后条件更新选中的佣金行；
// 任何一行已被并发结算抢走都会导致命中行数不足，整个事务回滚并返回ErrAlreadySettled
func settleOnce(db *gorm.DB, affiliateID uint, externalRef string) (*models.Payout, error) {
	now := time.Now()

	// 步骤1：读取可提现集合（pending且已过可提现时间）
	var eligible []models.Commission
	if err := db.Where("affiliate_id = ? AND status = ? AND eligible_at <= ?",
		affiliateID, models.CommissionStatusPending, now).Find(&eligible).Error; err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleFunds
	}

	ids := make([]uint, 0, len(eligible))
	total := 0.0
	for _, c := range eligible {
		ids = append(ids, c.ID)
		total += c.Amount
	}
	total = utils.Round2(total)

	payout := models.Payout{
		AffiliateID: affiliateID,
		PayoutNo:    uuid.NewString(),
		TotalAmount: total,
		ExternalRef: externalRef,
		ItemCount:   len(eligible),
	}

	// 步骤2：在单个事务中完成提现单插入和佣金行的条件更新
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	if err := tx.Create(&payout).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// 条件更新：只更新仍然可提现的行，paid_at和payout_id与状态一同写入
	result := tx.Model(&models.Commission{}).
		Where("id IN ? AND status = ? AND eligible_at <= ?", ids, models.CommissionStatusPending, now).
		Updates(map[string]interface{}{
			"status":    models.CommissionStatusPaid,
			"paid_at":   now,
			"payout_id": payout.ID,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}

	// 命中行数不足说明有行被并发结算或作废抢走，放弃本轮，回滚后重读
	if result.RowsAffected != int64(len(ids)) {
		tx.Rollback()
		return nil, ErrAlreadySettled
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	log.Printf("结算完成, 合伙人ID: %d, 结算单号: %s, 金额: %.2f, 笔数: %d",
		affiliateID, payout.PayoutNo, payout.TotalAmount, payout.ItemCount)

	return &payout, nil
}

// VerifyPayoutTotal 校验提现单合计
// 重新按佣金表求和并与提现单记录的总额比对，作为读取时的一致性检查
// 返回重算的合计以及是否与落库总额一致
func VerifyPayoutTotal(payoutID uint) (float64, bool, error) {
	db := database.GetDB()

	var payout models.Payout
	if err := db.First(&payout, payoutID).Error; err != nil {
		return 0, false, err
	}

	var sum float64
	if err := db.Model(&models.Commission{}).
		Where("payout_id = ? AND status = ?", payoutID, models.CommissionStatusPaid).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error; err != nil {
		return 0, false, err
	}

	sum = utils.Round2(sum)
	return sum, sum == payout.TotalAmount, nil
}
