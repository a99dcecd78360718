package services

import (
	"errors"
	"testing"
	"time"

	"menulink/models"
)

func TestAccrueCommissionYearly(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "ACCR01")
	createTestBinding(t, db, affiliate.ID, 100)

	// 年付：含税1000，税率20% -> 净额833.33，比例20% -> 佣金166.67
	commission, err := AccrueCommission("pay-yearly-1", 100, models.PlanYearly, 1000, 20, models.OccurrenceFirst)
	if err != nil {
		t.Fatalf("佣金入账失败: %v", err)
	}
	if commission == nil {
		t.Fatal("应创建佣金记录")
	}
	if commission.Amount != 166.67 {
		t.Fatalf("年付佣金金额错误，期望166.67，实际%.2f", commission.Amount)
	}
	if commission.Status != models.CommissionStatusPending {
		t.Fatalf("新佣金状态应为pending，实际%s", commission.Status)
	}

	// 可提现时间应为创建时间加上保留期
	expected := commission.CreatedAt.Add(HoldDuration())
	if diff := commission.EligibleAt.Sub(expected); diff > time.Minute || diff < -time.Minute {
		t.Fatalf("可提现时间偏差过大: %v", diff)
	}
}

func TestAccrueCommissionMonthly(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "ACCR02")
	createTestBinding(t, db, affiliate.ID, 200)

	// 月付：含税600，税率20% -> 净额500.00，比例10% -> 佣金50.00
	commission, err := AccrueCommission("pay-monthly-1", 200, models.PlanMonthly, 600, 20, models.OccurrenceRenewal)
	if err != nil {
		t.Fatalf("佣金入账失败: %v", err)
	}
	if commission == nil {
		t.Fatal("应创建佣金记录")
	}
	if commission.Amount != 50.00 {
		t.Fatalf("月付佣金金额错误，期望50.00，实际%.2f", commission.Amount)
	}
	if commission.Occurrence != models.OccurrenceRenewal {
		t.Fatalf("付款场景错误，期望renewal，实际%s", commission.Occurrence)
	}
}

func TestAccrueCommissionIdempotent(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "ACCR03")
	createTestBinding(t, db, affiliate.ID, 300)

	first, err := AccrueCommission("pay-dup-1", 300, models.PlanMonthly, 600, 20, models.OccurrenceFirst)
	if err != nil {
		t.Fatalf("佣金入账失败: %v", err)
	}

	// Webhook重放：同一支付ID的重复入账返回已有记录，不报错
	second, err := AccrueCommission("pay-dup-1", 300, models.PlanMonthly, 600, 20, models.OccurrenceFirst)
	if err != nil {
		t.Fatalf("重复入账不应返回错误: %v", err)
	}
	if second == nil || second.ID != first.ID {
		t.Fatal("重复入账应返回已有记录")
	}

	var count int64
	if err := db.Model(&models.Commission{}).Count(&count).Error; err != nil {
		t.Fatalf("统计佣金记录失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("同一支付ID只能有1条佣金记录，实际%d条", count)
	}
}

func TestAccrueCommissionNoBinding(t *testing.T) {
	db := setupTestDB(t)
	createTestAffiliate(t, db, "ACCR04")

	// 没有推广绑定的付款静默跳过，不是错误
	commission, err := AccrueCommission("pay-nobind-1", 999, models.PlanMonthly, 600, 20, models.OccurrenceFirst)
	if err != nil {
		t.Fatalf("无绑定的付款不应返回错误: %v", err)
	}
	if commission != nil {
		t.Fatal("无绑定的付款不应产生佣金")
	}

	var count int64
	if err := db.Model(&models.Commission{}).Count(&count).Error; err != nil {
		t.Fatalf("统计佣金记录失败: %v", err)
	}
	if count != 0 {
		t.Fatalf("不应产生佣金记录，实际%d条", count)
	}
}

func TestAccrueCommissionSuspendedAffiliate(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "ACCR05")
	createTestBinding(t, db, affiliate.ID, 500)

	// 暂停合伙人
	if err := db.Model(affiliate).Update("status", "suspended").Error; err != nil {
		t.Fatalf("暂停合伙人失败: %v", err)
	}

	// 暂停的合伙人不入账新佣金，静默跳过
	commission, err := AccrueCommission("pay-susp-1", 500, models.PlanYearly, 1000, 20, models.OccurrenceFirst)
	if err != nil {
		t.Fatalf("暂停合伙人的入账不应返回错误: %v", err)
	}
	if commission != nil {
		t.Fatal("暂停的合伙人不应产生佣金")
	}
}

func TestAccrueCommissionUnknownPlan(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "ACCR06")
	createTestBinding(t, db, affiliate.ID, 600)

	_, err := AccrueCommission("pay-plan-1", 600, "lifetime", 1000, 20, models.OccurrenceFirst)
	if !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("未知套餐应返回ErrUnknownPlan，实际: %v", err)
	}
}

func TestVoidCommission(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "VOID01")
	createTestBinding(t, db, affiliate.ID, 700)

	commission, err := AccrueCommission("pay-void-1", 700, models.PlanMonthly, 600, 20, models.OccurrenceFirst)
	if err != nil {
		t.Fatalf("佣金入账失败: %v", err)
	}

	// 退款作废
	voided, err := VoidCommission("pay-void-1")
	if err != nil {
		t.Fatalf("作废佣金失败: %v", err)
	}
	if voided.Status != models.CommissionStatusVoided {
		t.Fatalf("作废后状态应为voided，实际%s", voided.Status)
	}

	// 重复作废幂等
	again, err := VoidCommission("pay-void-1")
	if err != nil {
		t.Fatalf("重复作废不应返回错误: %v", err)
	}
	if again.ID != commission.ID || again.Status != models.CommissionStatusVoided {
		t.Fatal("重复作废应原样返回已作废的记录")
	}

	// 不存在的支付ID
	if _, err := VoidCommission("pay-missing"); !errors.Is(err, ErrCommissionNotFound) {
		t.Fatalf("不存在的支付应返回ErrCommissionNotFound，实际: %v", err)
	}
}

func TestVoidPaidCommissionRejected(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "VOID02")
	createTestBinding(t, db, affiliate.ID, 800)

	commission, err := AccrueCommission("pay-void-2", 800, models.PlanMonthly, 600, 20, models.OccurrenceFirst)
	if err != nil {
		t.Fatalf("佣金入账失败: %v", err)
	}

	// 把佣金推到可提现并完成结算
	if err := db.Model(&models.Commission{}).Where("id = ?", commission.ID).
		Update("eligible_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("调整可提现时间失败: %v", err)
	}
	if _, err := Settle(affiliate.ID, "ref-void-2"); err != nil {
		t.Fatalf("结算失败: %v", err)
	}

	// 已结算的佣金不可作废
	if _, err := VoidCommission("pay-void-2"); !errors.Is(err, ErrCommissionPaid) {
		t.Fatalf("已结算佣金的作废应返回ErrCommissionPaid，实际: %v", err)
	}
}

func TestBalancesLazyEligibility(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "BAL01")
	createTestBinding(t, db, affiliate.ID, 900)

	commission, err := AccrueCommission("pay-bal-1", 900, models.PlanYearly, 1000, 20, models.OccurrenceFirst)
	if err != nil {
		t.Fatalf("佣金入账失败: %v", err)
	}

	// 保留期内：计入pending
	summary, err := Balances(affiliate.ID)
	if err != nil {
		t.Fatalf("查询余额失败: %v", err)
	}
	if summary.PendingTotal != 166.67 || summary.EligibleTotal != 0 {
		t.Fatalf("保留期内余额错误: pending=%.2f eligible=%.2f", summary.PendingTotal, summary.EligibleTotal)
	}

	// 把可提现时间调到过去，模拟保留期结束；状态字段不做任何写操作
	if err := db.Model(&models.Commission{}).Where("id = ?", commission.ID).
		Update("eligible_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("调整可提现时间失败: %v", err)
	}

	// 保留期结束后：同一条记录计入eligible，落库状态仍是pending
	summary, err = Balances(affiliate.ID)
	if err != nil {
		t.Fatalf("查询余额失败: %v", err)
	}
	if summary.PendingTotal != 0 || summary.EligibleTotal != 166.67 {
		t.Fatalf("保留期后余额错误: pending=%.2f eligible=%.2f", summary.PendingTotal, summary.EligibleTotal)
	}

	var stored models.Commission
	if err := db.First(&stored, commission.ID).Error; err != nil {
		t.Fatalf("查询佣金失败: %v", err)
	}
	if stored.Status != models.CommissionStatusPending {
		t.Fatalf("落库状态不应被修改，实际%s", stored.Status)
	}
	if stored.EffectiveStatus(time.Now()) != models.CommissionStatusEligible {
		t.Fatal("展示状态应推导为eligible")
	}
}

func TestBalancesExcludeVoided(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "BAL02")
	createTestBinding(t, db, affiliate.ID, 901)

	// 两笔可提现佣金
	for _, paymentID := range []string{"pay-bal2-1", "pay-bal2-2"} {
		commission, err := AccrueCommission(paymentID, 901, models.PlanMonthly, 600, 20, models.OccurrenceFirst)
		if err != nil {
			t.Fatalf("佣金入账失败: %v", err)
		}
		if err := db.Model(&models.Commission{}).Where("id = ?", commission.ID).
			Update("eligible_at", time.Now().Add(-time.Hour)).Error; err != nil {
			t.Fatalf("调整可提现时间失败: %v", err)
		}
	}

	summary, err := Balances(affiliate.ID)
	if err != nil {
		t.Fatalf("查询余额失败: %v", err)
	}
	if summary.EligibleTotal != 100.00 {
		t.Fatalf("可提现总额错误，期望100.00，实际%.2f", summary.EligibleTotal)
	}

	// 作废一笔后立刻从可提现总额中消失
	if _, err := VoidCommission("pay-bal2-1"); err != nil {
		t.Fatalf("作废佣金失败: %v", err)
	}

	summary, err = Balances(affiliate.ID)
	if err != nil {
		t.Fatalf("查询余额失败: %v", err)
	}
	if summary.EligibleTotal != 50.00 {
		t.Fatalf("作废后可提现总额错误，期望50.00，实际%.2f", summary.EligibleTotal)
	}

	// 状态统计同样排除作废
	counts, err := StatusCounts(affiliate.ID)
	if err != nil {
		t.Fatalf("查询状态统计失败: %v", err)
	}
	if counts[models.CommissionStatusEligible] != 1 || counts[models.CommissionStatusVoided] != 1 {
		t.Fatalf("状态统计错误: %v", counts)
	}
}

func TestBalancesMatchLedgerSum(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "BAL03")
	createTestBinding(t, db, affiliate.ID, 902)

	// 构造跨三种状态的账本：一笔保留期内、一笔可提现、一笔已结算
	payments := []struct {
		id    string
		plan  string
		gross float64
	}{
		{"pay-bal3-1", models.PlanYearly, 1000},
		{"pay-bal3-2", models.PlanMonthly, 600},
		{"pay-bal3-3", models.PlanMonthly, 360},
	}
	for _, p := range payments {
		if _, err := AccrueCommission(p.id, 902, p.plan, p.gross, 20, models.OccurrenceFirst); err != nil {
			t.Fatalf("佣金入账失败: %v", err)
		}
	}

	// 第二、三笔进入可提现
	if err := db.Model(&models.Commission{}).Where("payment_id IN ?", []string{"pay-bal3-2", "pay-bal3-3"}).
		Update("eligible_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("调整可提现时间失败: %v", err)
	}

	// 结算后第二、三笔转为已结算
	if _, err := Settle(affiliate.ID, ""); err != nil {
		t.Fatalf("结算失败: %v", err)
	}

	summary, err := Balances(affiliate.ID)
	if err != nil {
		t.Fatalf("查询余额失败: %v", err)
	}

	// 账本逐笔之和必须与余额汇总严格一致
	var ledgerSum float64
	if err := db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status != ?", affiliate.ID, models.CommissionStatusVoided).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&ledgerSum).Error; err != nil {
		t.Fatalf("计算账本合计失败: %v", err)
	}

	balanceSum := summary.PendingTotal + summary.EligibleTotal + summary.PaidTotal
	if diff := balanceSum - ledgerSum; diff > 0.001 || diff < -0.001 {
		t.Fatalf("余额汇总与账本合计漂移: 汇总%.2f，账本%.2f", balanceSum, ledgerSum)
	}
	if summary.PendingTotal != 166.67 {
		t.Fatalf("保留期内总额错误，期望166.67，实际%.2f", summary.PendingTotal)
	}
	if summary.PaidTotal != 80.00 {
		t.Fatalf("已结算总额错误，期望80.00，实际%.2f", summary.PaidTotal)
	}
}
