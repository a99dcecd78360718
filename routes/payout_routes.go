package routes

import (
	"menulink/handlers"
	"menulink/middleware"

	"github.com/gofiber/fiber/v2"
)

// SetupPayoutRoutes 设置提现结算相关的路由
// 结算只能由操作员在管理端触发，结果同步返回，绝不留下模糊状态
// 提现路径分散在两个资源前缀下，管理员校验逐条附加而不是挂在/api整组上
func SetupPayoutRoutes(app *fiber.App) {
	app.Post("/api/affiliates/:id/payouts", middleware.AdminAuthMiddleware(), handlers.SettleAffiliatePayout) // 为合伙人发起结算
	app.Get("/api/affiliates/:id/payouts", middleware.AdminAuthMiddleware(), handlers.GetAffiliatePayouts)    // 获取合伙人的提现记录
	app.Get("/api/payouts/:id", middleware.AdminAuthMiddleware(), handlers.GetPayoutDetail)                   // 提现单详情（含一致性校验）
}
