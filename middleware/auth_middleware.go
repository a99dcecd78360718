package middleware

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"menulink/database"
	"menulink/models"
	"menulink/utils"
)

// AffiliateAuthMiddleware 验证推广合伙人身份的中间件
// 该中间件负责处理所有需要合伙人身份验证的路由请求
// 通过Authorization头的Bearer令牌进行JWT认证，并检查令牌是否
// 仍存在于数据库且未过期（支持服务端撤销）
//
// 认证成功后，会将合伙人信息存储在请求上下文中，供后续处理函数使用
// 认证失败则会返回相应的错误信息和状态码
func AffiliateAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 从请求头获取Authorization
		// 检查是否提供了Bearer令牌
		authHeader := c.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "未提供有效的认证令牌",
			})
		}

		// 从Authorization头中提取令牌
		// 去掉"Bearer "前缀，获取实际的JWT令牌字符串
		tokenString := authHeader[7:]

		// 解析令牌
		// 验证JWT令牌的签名并提取声明信息
		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "无效的认证令牌",
			})
		}

		// 检查令牌是否存在于数据库
		// 确保令牌未被撤销且仍然有效
		var token models.AffiliateToken
		if err := database.GetDB().Where("token = ?", tokenString).First(&token).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "认证令牌不存在",
				})
			}
			log.Printf("验证令牌失败: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "验证认证令牌失败",
			})
		}

		// 检查令牌是否已过期
		// 即使JWT本身未过期，也需检查数据库中的过期时间
		if time.Now().After(token.ExpiredAt) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "认证令牌已过期",
			})
		}

		// 查询合伙人信息
		// 暂停状态不阻止登录后的历史数据查询，只在入账和结算处拦截
		var affiliate models.Affiliate
		if err := database.GetDB().First(&affiliate, claims.AffiliateID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "合伙人不存在",
				})
			}
			log.Printf("验证合伙人身份失败: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "验证合伙人身份失败",
			})
		}

		// 将合伙人信息存储在上下文中，供后续处理函数使用
		// 这些信息可以通过c.Locals()在后续处理函数中获取
		c.Locals("affiliate_id", affiliate.ID)
		c.Locals("affiliate_name", affiliate.Name)

		// 设置请求头，方便后续处理函数使用
		c.Set("X-Affiliate-ID", strconv.FormatUint(uint64(affiliate.ID), 10))

		// 继续处理请求
		// 认证成功，允许请求继续传递到下一个处理函数
		return c.Next()
	}
}

// AdminAuthMiddleware 验证管理员身份的中间件
// 管理端接口（合伙人管理、结算触发）通过X-Admin-Key头携带的
// 共享密钥认证，密钥从环境变量ADMIN_API_KEY读取
func AdminAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		adminKey := os.Getenv("ADMIN_API_KEY")
		if adminKey == "" {
			log.Println("未配置ADMIN_API_KEY，管理端接口已禁用")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "管理端接口未启用",
			})
		}

		if c.Get("X-Admin-Key") != adminKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "无效的管理密钥",
			})
		}

		return c.Next()
	}
}
