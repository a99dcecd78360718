package routes

import (
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes 设置所有API路由
// 调用各个模块的路由注册函数
func SetupRoutes(app *fiber.App) {
	// 设置推广归因路由（公开点击接口 + 协作方Webhook）
	SetupReferralRoutes(app)

	// 设置提现结算路由
	// 必须先于合伙人路由注册：/api/affiliate分组的前缀中间件
	// 会按原始前缀命中/api/affiliates/:id/payouts
	SetupPayoutRoutes(app)

	// 设置合伙人路由（管理端CRUD + 合伙人自助接口）
	SetupAffiliateRoutes(app)

	// 设置通知路由
	SetupNotificationRoutes(app)
}
