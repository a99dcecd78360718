package routes

import (
	"menulink/handlers"
	"menulink/middleware"

	"github.com/gofiber/fiber/v2"
)

// SetupAffiliateRoutes 设置合伙人相关的路由
func SetupAffiliateRoutes(app *fiber.App) {
	// 合伙人管理路由组（管理员访问）
	affiliateGroup := app.Group("/api/affiliates", middleware.AdminAuthMiddleware())

	// 合伙人基本管理
	affiliateGroup.Post("/", handlers.CreateAffiliate)   // 创建合伙人
	affiliateGroup.Get("/", handlers.GetAllAffiliates)   // 获取所有合伙人
	affiliateGroup.Get("/:id", handlers.GetAffiliate)    // 获取单个合伙人
	affiliateGroup.Put("/:id", handlers.UpdateAffiliate) // 更新合伙人（含暂停/恢复）

	// 合伙人账本查询（管理员访问）
	affiliateGroup.Get("/:id/commissions", handlers.GetAffiliateCommissions) // 获取合伙人的佣金记录
	affiliateGroup.Get("/:id/balances", handlers.GetAffiliateBalances)       // 获取合伙人的余额汇总
	affiliateGroup.Get("/:id/clicks", handlers.GetAffiliateClicks)           // 获取合伙人的点击记录

	// 合伙人注册与登录（公开）
	app.Post("/api/affiliate/register", handlers.CreateAffiliate) // 合伙人自助注册
	app.Post("/api/affiliate/login", handlers.AffiliateLogin)     // 合伙人登录

	// 合伙人专用API（需要合伙人身份验证）
	affiliateAPI := app.Group("/api/affiliate", middleware.AffiliateAuthMiddleware())

	affiliateAPI.Post("/logout", handlers.AffiliateLogout)         // 合伙人登出
	affiliateAPI.Post("/refresh", handlers.AffiliateRefreshToken)  // 刷新认证令牌
	affiliateAPI.Get("/profile", handlers.GetOwnProfile)           // 查询自己的资料
	affiliateAPI.Put("/bank", handlers.UpdateOwnBankAccount)       // 更新收款信息
	affiliateAPI.Get("/balances", handlers.GetOwnBalances)         // 查询自己的余额
	affiliateAPI.Get("/commissions", handlers.GetOwnCommissions)   // 查询自己的佣金记录
	affiliateAPI.Get("/payouts", handlers.GetOwnPayouts)           // 查询自己的提现记录
}
