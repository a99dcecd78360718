package routes

import (
	"menulink/handlers"
	"menulink/middleware"

	"github.com/gofiber/fiber/v2"
)

// SetupNotificationRoutes 设置通知相关的路由
func SetupNotificationRoutes(app *fiber.App) {
	// 通知接口都是合伙人自助接口
	notificationAPI := app.Group("/api/affiliate/notifications", middleware.AffiliateAuthMiddleware())

	notificationAPI.Get("/", handlers.GetOwnNotifications)           // 查询通知列表
	notificationAPI.Put("/:id/read", handlers.MarkNotificationRead) // 标记通知已读
}
