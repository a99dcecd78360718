package models

import (
	"time"
)

// 通知类型常量
const (
	NotificationKindNewSale         = "new_sale"         // 新的佣金入账
	NotificationKindPayoutCompleted = "payout_completed" // 提现结算完成
)

// Notification 合伙人站内通知模型
// 记录发给合伙人的账本事件通知（新佣金、结算完成等）
// 通知是尽力而为的：写入或外部推送失败绝不影响账本本身的正确性
// read_at是唯一可变字段，其余字段创建后不再修改
type Notification struct {
	ID          uint       `json:"id" gorm:"primaryKey"`             // 主键ID
	AffiliateID uint       `json:"affiliate_id" gorm:"index"`        // 推广合伙人ID
	Kind        string     `json:"kind" gorm:"size:30"`              // 通知类型：new_sale, payout_completed
	Title       string     `json:"title" gorm:"size:100"`            // 标题
	Body        string     `json:"body" gorm:"type:text"`            // 正文
	ReadAt      *time.Time `json:"read_at"`                          // 已读时间，空表示未读
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"` // 创建时间
}

// TableName 返回表名
func (Notification) TableName() string {
	return "notifications"
}
