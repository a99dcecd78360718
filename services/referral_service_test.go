package services

import (
	"testing"

	"menulink/models"
)

func TestRecordClickDedup(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "CLICK01")

	// 第一次点击应被记录
	recorded, err := RecordClick(affiliate.ReferralCode, "1.2.3.4")
	if err != nil {
		t.Fatalf("记录点击失败: %v", err)
	}
	if !recorded {
		t.Fatal("第一次点击应返回recorded=true")
	}

	// 去重窗口内同一（合伙人, IP）的第二次点击不再记录
	recorded, err = RecordClick(affiliate.ReferralCode, "1.2.3.4")
	if err != nil {
		t.Fatalf("记录重复点击失败: %v", err)
	}
	if recorded {
		t.Fatal("窗口内的重复点击应返回recorded=false")
	}

	// 数据库中只有一条点击记录
	var count int64
	if err := db.Model(&models.ReferralClick{}).Count(&count).Error; err != nil {
		t.Fatalf("统计点击记录失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("期望1条点击记录，实际%d条", count)
	}

	// 不同IP的点击正常记录
	recorded, err = RecordClick(affiliate.ReferralCode, "5.6.7.8")
	if err != nil {
		t.Fatalf("记录点击失败: %v", err)
	}
	if !recorded {
		t.Fatal("新IP的点击应返回recorded=true")
	}
}

func TestRecordClickUnknownCode(t *testing.T) {
	db := setupTestDB(t)

	// 未知推广码静默跳过，不报错
	recorded, err := RecordClick("NOSUCHCODE", "1.2.3.4")
	if err != nil {
		t.Fatalf("未知推广码不应返回错误: %v", err)
	}
	if recorded {
		t.Fatal("未知推广码应返回recorded=false")
	}

	// 语法非法的推广码同样静默跳过
	recorded, err = RecordClick("x!", "1.2.3.4")
	if err != nil {
		t.Fatalf("非法推广码不应返回错误: %v", err)
	}
	if recorded {
		t.Fatal("非法推广码应返回recorded=false")
	}

	var count int64
	if err := db.Model(&models.ReferralClick{}).Count(&count).Error; err != nil {
		t.Fatalf("统计点击记录失败: %v", err)
	}
	if count != 0 {
		t.Fatalf("不应产生点击记录，实际%d条", count)
	}
}

func TestBindReferralIdempotent(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "BIND01")

	// 第一次绑定
	binding, err := BindReferral(100, affiliate.ReferralCode)
	if err != nil {
		t.Fatalf("创建绑定失败: %v", err)
	}
	if binding == nil {
		t.Fatal("应创建绑定记录")
	}
	if binding.AffiliateID != affiliate.ID {
		t.Fatalf("绑定的合伙人错误，期望%d，实际%d", affiliate.ID, binding.AffiliateID)
	}

	// 注册Webhook重放：同一用户的重复绑定返回已有记录
	again, err := BindReferral(100, affiliate.ReferralCode)
	if err != nil {
		t.Fatalf("重复绑定失败: %v", err)
	}
	if again == nil || again.ID != binding.ID {
		t.Fatal("重复绑定应返回已有记录")
	}

	var count int64
	if err := db.Model(&models.ReferralBinding{}).Count(&count).Error; err != nil {
		t.Fatalf("统计绑定记录失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("期望1条绑定记录，实际%d条", count)
	}
}

func TestBindReferralNoCode(t *testing.T) {
	db := setupTestDB(t)
	createTestAffiliate(t, db, "BIND02")

	// 推广码为空表示无推荐人
	binding, err := BindReferral(200, "")
	if err != nil {
		t.Fatalf("空推广码不应返回错误: %v", err)
	}
	if binding != nil {
		t.Fatal("空推广码不应创建绑定")
	}

	// 未知推广码同样静默跳过
	binding, err = BindReferral(200, "NOSUCHCODE")
	if err != nil {
		t.Fatalf("未知推广码不应返回错误: %v", err)
	}
	if binding != nil {
		t.Fatal("未知推广码不应创建绑定")
	}
}

func TestResolveReferralCodeCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "CASE01")

	// 推广码匹配不区分大小写
	resolved, err := ResolveReferralCode("case01")
	if err != nil {
		t.Fatalf("解析推广码失败: %v", err)
	}
	if resolved == nil || resolved.ID != affiliate.ID {
		t.Fatal("小写推广码应解析到同一合伙人")
	}
}
