package models

import (
	"time"
)

// ReferralBinding 推广绑定关系
// 记录被推荐用户与推广合伙人之间的一次性绑定关系
// 绑定在用户注册时创建，创建后不可修改；一个用户最多只能有一条绑定记录
// 没有绑定记录表示该用户无推荐人，佣金入账时对此静默跳过
type ReferralBinding struct {
	ID             uint      `json:"id" gorm:"primaryKey"`                // 主键ID
	AffiliateID    uint      `json:"affiliate_id" gorm:"index"`           // 推广合伙人ID
	ReferredUserID uint      `json:"referred_user_id" gorm:"uniqueIndex"` // 被推荐用户ID，唯一，保证绑定幂等
	ReferralCode   string    `json:"referral_code" gorm:"size:20"`        // 注册时使用的推广码快照
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`    // 创建时间
}

// TableName 返回表名
func (ReferralBinding) TableName() string {
	return "referral_bindings"
}

// ReferralClick 推广链接点击记录
// 只追加的点击日志，用于流量与反作弊分析，不参与佣金计算
// DedupKey由合伙人ID、来源IP和时间窗口桶拼接而成并加唯一索引
// 同一窗口内的重复点击依靠唯一索引约束去重，不依赖应用层协调
type ReferralClick struct {
	ID          uint      `json:"id" gorm:"primaryKey"`                       // 主键ID
	AffiliateID uint      `json:"affiliate_id" gorm:"index"`                  // 推广合伙人ID
	SourceIP    string    `json:"source_ip" gorm:"size:50"`                   // 来源IP地址
	DedupKey    string    `json:"-" gorm:"size:120;uniqueIndex:idx_click_dedup"` // 去重键：合伙人ID:IP:窗口桶
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`           // 点击时间
}

// TableName 返回表名
func (ReferralClick) TableName() string {
	return "referral_clicks"
}
