package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// 从环境变量获取JWT密钥，如果未设置则使用随机生成的密钥
// 在生产环境中，应确保设置了环境变量JWT_SECRET
var jwtSecret = getJWTSecret()

// getJWTSecret 从环境变量获取JWT密钥
// 如果环境变量未设置，则生成随机密钥（仅用于开发环境）
func getJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		// 检查当前环境
		env := os.Getenv("ENV")
		if env == "production" {
			log.Fatal("在生产环境中必须设置JWT_SECRET环境变量")
		}

		// 在开发环境中，生成随机密钥
		log.Println("警告: JWT_SECRET环境变量未设置，将使用随机生成的密钥（仅用于开发环境）")

		// 生成32字节的随机密钥
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err != nil {
			log.Printf("生成随机密钥失败: %v，将使用备用密钥", err)
			return []byte("menulink_jwt_secret_key_for_development_only_do_not_use_in_production_environment")
		}

		// 将随机字节编码为base64字符串
		secret = base64.StdEncoding.EncodeToString(randomKey)
	}

	// 确保密钥长度足够
	if len(secret) < 16 {
		log.Println("警告: JWT密钥长度不足，建议使用至少32字符的密钥")
	}

	return []byte(secret)
}

// AffiliateClaims 定义JWT令牌的声明结构
// 包含推广合伙人的身份信息和标准JWT声明
type AffiliateClaims struct {
	AffiliateID          uint   `json:"affiliate_id"` // 合伙人ID，用于身份识别
	Email                string `json:"email"`        // 合伙人邮箱，用于日志和审计
	jwt.RegisteredClaims        // 嵌入标准JWT声明（如过期时间、签发时间等）
}

// GenerateToken 生成JWT令牌
// 该函数为指定的推广合伙人创建一个签名的JWT令牌
// 参数:
//   - affiliateID: 合伙人的唯一标识符
//   - email: 合伙人的邮箱
//   - duration: 令牌的有效期限
//
// 返回:
//   - string: 生成的JWT令牌字符串
//   - error: 如果令牌生成过程中发生错误
func GenerateToken(affiliateID uint, email string, duration time.Duration) (string, error) {
	// 设置令牌过期时间
	expirationTime := time.Now().Add(duration)

	// 创建JWT声明
	claims := AffiliateClaims{
		AffiliateID: affiliateID,
		Email:       email,
		RegisteredClaims: jwt.RegisteredClaims{
			// 令牌过期时间
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			// 令牌签发时间
			IssuedAt: jwt.NewNumericDate(time.Now()),
			// 令牌生效时间
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	// 创建令牌对象并使用HS256算法签名
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	// 使用密钥签名令牌并获取完整的签名字符串
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken 解析并验证JWT令牌
// 该函数验证令牌的签名并提取其中的声明信息
// 参数:
//   - tokenString: 要解析的JWT令牌字符串
//
// 返回:
//   - *AffiliateClaims: 令牌中包含的合伙人声明信息
//   - error: 如果令牌无效或解析过程中发生错误
func ParseToken(tokenString string) (*AffiliateClaims, error) {
	// 解析令牌
	token, err := jwt.ParseWithClaims(tokenString, &AffiliateClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("无效的签名方法")
		}
		return jwtSecret, nil
	})

	// 处理解析错误
	if err != nil {
		return nil, err
	}

	// 验证令牌有效性并提取声明
	if claims, ok := token.Claims.(*AffiliateClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("无效的令牌")
}

// GetAffiliateIDFromToken 从Fiber上下文中获取合伙人ID
// 该函数优先使用中间件写入上下文的身份信息，否则回退到解析Authorization头
// 参数:
//   - c: Fiber上下文，包含请求信息
//
// 返回:
//   - uint: 合伙人ID
//   - error: 如果令牌无效或解析过程中发生错误
func GetAffiliateIDFromToken(c *fiber.Ctx) (uint, error) {
	// 从上下文中获取合伙人ID
	affiliateID := c.Locals("affiliate_id")

	// 如果已经在上下文中存在，直接返回
	if id, ok := affiliateID.(uint); ok {
		return id, nil
	}

	// 从请求头中获取令牌
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return 0, errors.New("未提供授权令牌")
	}

	// 检查令牌格式
	if len(authHeader) <= 7 || authHeader[:7] != "Bearer " {
		return 0, errors.New("无效的授权令牌格式")
	}

	// 提取令牌字符串
	tokenString := authHeader[7:]

	// 解析令牌
	claims, err := ParseToken(tokenString)
	if err != nil {
		return 0, err
	}

	// 返回合伙人ID
	return claims.AffiliateID, nil
}
