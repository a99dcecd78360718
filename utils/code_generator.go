package utils

import (
	"crypto/rand"
	mathrand "math/rand"
	"regexp"
	"strings"
	"time"
)

// 推广码字符集常量
const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// 推广码语法：4-20位大写字母或数字
var referralCodePattern = regexp.MustCompile(`^[A-Z0-9]{4,20}$`)

// GenerateRandomCode 生成指定长度的随机字符码
func GenerateRandomCode(length int) string {
	code := make([]byte, length)

	// 使用安全的随机数生成
	_, err := rand.Read(code)
	if err != nil {
		// 如果安全随机数生成失败，回退到不安全的方法
		// 创建一个新的随机数生成器实例，而不是使用全局的Seed
		r := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
		for i := range code {
			code[i] = charset[r.Intn(len(charset))]
		}
		return string(code)
	}

	// 将随机字节映射到字符集
	for i := range code {
		code[i] = charset[int(code[i])%len(charset)]
	}

	return string(code)
}

// GenerateReferralCode 生成推广码
// 在合伙人注册时未自选推广码的情况下使用
func GenerateReferralCode() string {
	return GenerateRandomCode(8)
}

// NormalizeReferralCode 规范化推广码
// 去除首尾空白并统一为大写，推广码匹配不区分大小写
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidReferralCode 校验推广码语法
// 推广码必须是4-20位的大写字母或数字；调用前应先规范化
func IsValidReferralCode(code string) bool {
	return referralCodePattern.MatchString(code)
}
