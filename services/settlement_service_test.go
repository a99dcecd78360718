package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"menulink/models"
)

// makeEligible 把指定支付ID的佣金调整为已过保留期
func makeEligible(t *testing.T, db *gorm.DB, paymentIDs ...string) {
	t.Helper()

	if err := db.Model(&models.Commission{}).
		Where("payment_id IN ?", paymentIDs).
		Update("eligible_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("调整可提现时间失败: %v", err)
	}
}

func TestSettleNoEligibleFunds(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "SET01")
	createTestBinding(t, db, affiliate.ID, 1000)

	// 没有任何佣金时结算失败
	if _, err := Settle(affiliate.ID, ""); !errors.Is(err, ErrNoEligibleFunds) {
		t.Fatalf("无佣金时应返回ErrNoEligibleFunds，实际: %v", err)
	}

	// 佣金仍在保留期内时同样失败，绝不创建空提现单
	if _, err := AccrueCommission("pay-set1-1", 1000, models.PlanMonthly, 600, 20, models.OccurrenceFirst); err != nil {
		t.Fatalf("佣金入账失败: %v", err)
	}
	if _, err := Settle(affiliate.ID, ""); !errors.Is(err, ErrNoEligibleFunds) {
		t.Fatalf("保留期内应返回ErrNoEligibleFunds，实际: %v", err)
	}

	var count int64
	if err := db.Model(&models.Payout{}).Count(&count).Error; err != nil {
		t.Fatalf("统计提现单失败: %v", err)
	}
	if count != 0 {
		t.Fatalf("不应创建提现单，实际%d张", count)
	}
}

func TestSettleAllEligible(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "SET02")
	createTestBinding(t, db, affiliate.ID, 1001)

	// 两笔可提现、一笔保留期内、一笔作废
	for _, paymentID := range []string{"pay-set2-1", "pay-set2-2", "pay-set2-3", "pay-set2-4"} {
		if _, err := AccrueCommission(paymentID, 1001, models.PlanMonthly, 600, 20, models.OccurrenceFirst); err != nil {
			t.Fatalf("佣金入账失败: %v", err)
		}
	}
	makeEligible(t, db, "pay-set2-1", "pay-set2-2", "pay-set2-4")
	if _, err := VoidCommission("pay-set2-4"); err != nil {
		t.Fatalf("作废佣金失败: %v", err)
	}

	payout, err := Settle(affiliate.ID, "bank-tx-42")
	if err != nil {
		t.Fatalf("结算失败: %v", err)
	}

	// 只结算两笔可提现的，保留期内和作废的不参与
	if payout.ItemCount != 2 {
		t.Fatalf("结算笔数错误，期望2，实际%d", payout.ItemCount)
	}
	if payout.TotalAmount != 100.00 {
		t.Fatalf("结算总额错误，期望100.00，实际%.2f", payout.TotalAmount)
	}
	if payout.ExternalRef != "bank-tx-42" {
		t.Fatalf("外部单号错误: %s", payout.ExternalRef)
	}
	if payout.PayoutNo == "" {
		t.Fatal("结算单号不能为空")
	}

	// 结算后的佣金行：paid状态、paid_at与payout_id同步写入
	var settled []models.Commission
	if err := db.Where("payout_id = ?", payout.ID).Find(&settled).Error; err != nil {
		t.Fatalf("查询已结算佣金失败: %v", err)
	}
	if len(settled) != 2 {
		t.Fatalf("提现单应关联2笔佣金，实际%d笔", len(settled))
	}
	for _, c := range settled {
		if c.Status != models.CommissionStatusPaid {
			t.Fatalf("结算后状态应为paid，实际%s", c.Status)
		}
		if c.PaidAt == nil || c.PayoutID == nil {
			t.Fatal("paid状态的佣金必须同时有paid_at和payout_id")
		}
	}

	// 保留期内的那笔原封不动
	var held models.Commission
	if err := db.Where("payment_id = ?", "pay-set2-3").First(&held).Error; err != nil {
		t.Fatalf("查询佣金失败: %v", err)
	}
	if held.Status != models.CommissionStatusPending || held.PayoutID != nil {
		t.Fatal("保留期内的佣金不应被结算")
	}

	// 合计一致性校验通过
	sum, consistent, err := VerifyPayoutTotal(payout.ID)
	if err != nil {
		t.Fatalf("校验提现单合计失败: %v", err)
	}
	if !consistent || sum != 100.00 {
		t.Fatalf("提现单合计校验失败: sum=%.2f consistent=%v", sum, consistent)
	}
}

func TestSettleExactlyOnce(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "SET03")
	createTestBinding(t, db, affiliate.ID, 1002)

	if _, err := AccrueCommission("pay-set3-1", 1002, models.PlanYearly, 1000, 20, models.OccurrenceFirst); err != nil {
		t.Fatalf("佣金入账失败: %v", err)
	}
	makeEligible(t, db, "pay-set3-1")

	if _, err := Settle(affiliate.ID, ""); err != nil {
		t.Fatalf("结算失败: %v", err)
	}

	// 第二次结算没有可提现集合，同一笔佣金不可能进入第二张提现单
	if _, err := Settle(affiliate.ID, ""); !errors.Is(err, ErrNoEligibleFunds) {
		t.Fatalf("重复结算应返回ErrNoEligibleFunds，实际: %v", err)
	}

	var count int64
	if err := db.Model(&models.Payout{}).Where("affiliate_id = ?", affiliate.ID).Count(&count).Error; err != nil {
		t.Fatalf("统计提现单失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("期望1张提现单，实际%d张", count)
	}
}

func TestSettleSuspendedAffiliate(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "SET04")
	createTestBinding(t, db, affiliate.ID, 1003)

	if _, err := AccrueCommission("pay-set4-1", 1003, models.PlanMonthly, 600, 20, models.OccurrenceFirst); err != nil {
		t.Fatalf("佣金入账失败: %v", err)
	}
	makeEligible(t, db, "pay-set4-1")

	if err := db.Model(affiliate).Update("status", "suspended").Error; err != nil {
		t.Fatalf("暂停合伙人失败: %v", err)
	}

	// 暂停的合伙人不能提现，已有佣金原地保留
	if _, err := Settle(affiliate.ID, ""); !errors.Is(err, ErrAffiliateSuspended) {
		t.Fatalf("暂停合伙人结算应返回ErrAffiliateSuspended，实际: %v", err)
	}

	// 不存在的合伙人
	if _, err := Settle(99999, ""); !errors.Is(err, ErrAffiliateNotFound) {
		t.Fatalf("不存在的合伙人应返回ErrAffiliateNotFound，实际: %v", err)
	}
}

func TestSettleConcurrentSingleWinner(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "SET06")
	createTestBinding(t, db, affiliate.ID, 1005)

	payments := []string{"pay-set6-1", "pay-set6-2", "pay-set6-3"}
	for _, paymentID := range payments {
		if _, err := AccrueCommission(paymentID, 1005, models.PlanMonthly, 600, 20, models.OccurrenceFirst); err != nil {
			t.Fatalf("佣金入账失败: %v", err)
		}
	}
	makeEligible(t, db, payments...)

	// 两个并发的结算请求竞争同一个可提现集合
	// 条件更新保证只有一个请求能提交提现单，输家重读后发现集合已空
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Settle(affiliate.ID, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, noFunds int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrNoEligibleFunds):
			noFunds++
		default:
			t.Fatalf("并发结算出现意外错误: %v", err)
		}
	}
	if wins != 1 || noFunds != 1 {
		t.Fatalf("并发结算应恰好一胜一败: 成功%d次, 无可结算%d次", wins, noFunds)
	}

	// 恰好一张提现单，全部佣金归属于它
	var payoutCount int64
	if err := db.Model(&models.Payout{}).Where("affiliate_id = ?", affiliate.ID).Count(&payoutCount).Error; err != nil {
		t.Fatalf("统计提现单失败: %v", err)
	}
	if payoutCount != 1 {
		t.Fatalf("期望1张提现单，实际%d张", payoutCount)
	}

	var payout models.Payout
	if err := db.Where("affiliate_id = ?", affiliate.ID).First(&payout).Error; err != nil {
		t.Fatalf("查询提现单失败: %v", err)
	}
	if payout.ItemCount != 3 || payout.TotalAmount != 150.00 {
		t.Fatalf("提现单内容错误: 笔数%d 金额%.2f", payout.ItemCount, payout.TotalAmount)
	}

	var paid int64
	if err := db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ? AND payout_id = ?", affiliate.ID, models.CommissionStatusPaid, payout.ID).
		Count(&paid).Error; err != nil {
		t.Fatalf("统计已结算佣金失败: %v", err)
	}
	if paid != 3 {
		t.Fatalf("3笔佣金都应归属唯一的提现单，实际%d笔", paid)
	}
}

func TestSettleAfterVoidShrinksSet(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "SET05")
	createTestBinding(t, db, affiliate.ID, 1004)

	for _, paymentID := range []string{"pay-set5-1", "pay-set5-2"} {
		if _, err := AccrueCommission(paymentID, 1004, models.PlanMonthly, 600, 20, models.OccurrenceFirst); err != nil {
			t.Fatalf("佣金入账失败: %v", err)
		}
	}
	makeEligible(t, db, "pay-set5-1", "pay-set5-2")

	// 结算前一笔被退款作废，可提现集合收缩到剩余的一笔
	var victim models.Commission
	if err := db.Where("payment_id = ?", "pay-set5-1").First(&victim).Error; err != nil {
		t.Fatalf("查询佣金失败: %v", err)
	}
	if _, err := VoidCommission("pay-set5-1"); err != nil {
		t.Fatalf("作废佣金失败: %v", err)
	}

	payout, err := Settle(affiliate.ID, "")
	if err != nil {
		t.Fatalf("结算失败: %v", err)
	}
	if payout.ItemCount != 1 || payout.TotalAmount != 50.00 {
		t.Fatalf("应只结算剩余1笔: 笔数%d 金额%.2f", payout.ItemCount, payout.TotalAmount)
	}

	// 被作废的那笔保持voided，没有进入提现单
	if err := db.First(&victim, victim.ID).Error; err != nil {
		t.Fatalf("查询佣金失败: %v", err)
	}
	if victim.Status != models.CommissionStatusVoided || victim.PayoutID != nil {
		t.Fatal("已作废的佣金不应被结算")
	}
}
