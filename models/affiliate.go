package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Affiliate 推广合伙人模型
// 用于存储推广合伙人的基本信息，包括姓名、邮箱、推广码、收款账户等
// 推广码在创建后不可修改，暂停状态会阻止新佣金入账和提现，但不影响历史数据查询
type Affiliate struct {
	ID              uint       `json:"id" gorm:"primaryKey"`                    // 主键ID
	Name            string     `json:"name" gorm:"size:50"`                     // 姓名
	Email           string     `json:"email" gorm:"size:100;uniqueIndex"`       // 邮箱，登录用，唯一
	Password        string     `json:"-" gorm:"size:100"`                       // 密码，不返回给前端
	ReferralCode    string     `json:"referral_code" gorm:"size:20;uniqueIndex"` // 推广码，唯一，创建后不可修改
	Status          string     `json:"status" gorm:"size:20;default:active"`    // 状态：active正常, suspended暂停
	BankName        string     `json:"bank_name" gorm:"size:100"`               // 收款银行/账户标识
	BankAccount     string     `json:"bank_account" gorm:"size:100"`            // 收款账号
	BeneficiaryName string     `json:"beneficiary_name" gorm:"size:100"`        // 收款人姓名
	TelegramChatID  int64      `json:"telegram_chat_id" gorm:"default:0"`       // Telegram聊天ID，0表示未绑定
	LastLoginAt     *time.Time `json:"last_login_at"`                           // 最后登录时间
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`        // 创建时间
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`        // 更新时间
}

// TableName 返回表名
func (Affiliate) TableName() string {
	return "affiliates"
}

// SetPassword 设置加密密码
func (a *Affiliate) SetPassword(plainPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.Password = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (a *Affiliate) CheckPassword(plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(plainPassword))
	return err == nil
}

// IsSuspended 判断合伙人是否处于暂停状态
// 暂停状态下不入账新佣金、不允许发起提现
func (a *Affiliate) IsSuspended() bool {
	return a.Status == "suspended"
}

// AffiliateQuery 推广合伙人查询参数
type AffiliateQuery struct {
	Name     string `json:"name" query:"name"`           // 姓名
	Email    string `json:"email" query:"email"`         // 邮箱
	Status   string `json:"status" query:"status"`       // 状态
	Page     int    `json:"page" query:"page"`           // 页码
	PageSize int    `json:"page_size" query:"page_size"` // 每页数量
}
