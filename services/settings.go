// Package services 实现推广归因与佣金账本的核心业务逻辑
// 该包是整个佣金子系统的核心，包括：
// - 推广码解析、点击归因与注册绑定
// - 佣金入账引擎（幂等、税后净额计算）
// - 余额聚合（余额永远按账本逐笔重算，不做缓存）
// - 提现结算引擎（条件更新 + 重试的乐观并发）
// - 通知发送（尽力而为，失败绝不影响账本）
package services

import (
	"log"
	"os"
	"strconv"
	"time"

	"menulink/models"
)

// 佣金相关配置项
// 保留期和佣金比例表是可变配置而非常量，通过环境变量覆盖默认值
// 默认值：月付10%，年付20%，保留期14天（需要覆盖支付网关的拒付争议窗口），点击去重窗口24小时
var (
	commissionRateMonthly = 10.0           // 月付套餐佣金比例（百分数）
	commissionRateYearly  = 20.0           // 年付套餐佣金比例（百分数），年付客户生命周期价值更高
	holdDays              = 14             // 安全保留期天数
	clickDedupWindow      = 24 * time.Hour // 点击去重窗口
)

// LoadSettings 从环境变量加载佣金配置
// 未设置或格式非法的配置项保持默认值并记录日志
func LoadSettings() {
	if v := os.Getenv("COMMISSION_RATE_MONTHLY"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate >= 0 {
			commissionRateMonthly = rate
		} else {
			log.Printf("COMMISSION_RATE_MONTHLY配置非法: %s，使用默认值", v)
		}
	}

	if v := os.Getenv("COMMISSION_RATE_YEARLY"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate >= 0 {
			commissionRateYearly = rate
		} else {
			log.Printf("COMMISSION_RATE_YEARLY配置非法: %s，使用默认值", v)
		}
	}

	if v := os.Getenv("COMMISSION_HOLD_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days >= 0 {
			holdDays = days
		} else {
			log.Printf("COMMISSION_HOLD_DAYS配置非法: %s，使用默认值", v)
		}
	}

	if v := os.Getenv("CLICK_DEDUP_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			clickDedupWindow = time.Duration(hours) * time.Hour
		} else {
			log.Printf("CLICK_DEDUP_HOURS配置非法: %s，使用默认值", v)
		}
	}

	log.Printf("佣金配置已加载：月付比例%.1f%%，年付比例%.1f%%，保留期%d天，点击去重窗口%s",
		commissionRateMonthly, commissionRateYearly, holdDays, clickDedupWindow)
}

// CommissionRateForPlan 根据订阅套餐查询佣金比例
// 返回比例（百分数）和套餐是否有效
func CommissionRateForPlan(plan string) (float64, bool) {
	switch plan {
	case models.PlanMonthly:
		return commissionRateMonthly, true
	case models.PlanYearly:
		return commissionRateYearly, true
	default:
		return 0, false
	}
}

// HoldDuration 返回佣金安全保留期
// 佣金创建后需要经过该时长才进入可提现状态
func HoldDuration() time.Duration {
	return time.Duration(holdDays) * 24 * time.Hour
}

// ClickDedupWindow 返回点击去重窗口
func ClickDedupWindow() time.Duration {
	return clickDedupWindow
}
