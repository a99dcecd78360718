package routes

import (
	"menulink/handlers"

	"github.com/gofiber/fiber/v2"
)

// SetupReferralRoutes 设置推广归因相关的路由
// 点击接口对访客公开；Webhook由协作方（注册服务、支付网关）调用，
// 全部设计为可以任意次安全重放
func SetupReferralRoutes(app *fiber.App) {
	// 推广链接点击记录（公开）
	app.Post("/api/referral/click", handlers.RecordReferralClick) // 记录推广点击

	// 协作方Webhook
	webhooks := app.Group("/api/webhooks")
	webhooks.Post("/signup", handlers.SignupWebhook)            // 用户注册，创建推广绑定
	webhooks.Post("/payment", handlers.PaymentSucceededWebhook) // 支付成功，佣金入账
	webhooks.Post("/refund", handlers.PaymentRefundedWebhook)   // 退款/拒付，作废佣金
}
