package models

import (
	"time"
)

// Payout 提现结算单模型
// 一次结算将一个合伙人名下全部可提现佣金原子地转为已结算
// 结算单创建后不可修改；total_amount必须等于其名下佣金金额之和
// 读取接口会按佣金表重算合计作为一致性校验
type Payout struct {
	ID          uint      `json:"id" gorm:"primaryKey"`                 // 主键ID
	AffiliateID uint      `json:"affiliate_id" gorm:"index"`            // 推广合伙人ID
	PayoutNo    string    `json:"payout_no" gorm:"size:64;uniqueIndex"` // 结算单号，创建时生成，唯一
	TotalAmount float64   `json:"total_amount"`                         // 结算总金额，等于名下佣金之和
	ExternalRef string    `json:"external_ref" gorm:"size:100"`         // 外部转账参考号，由操作员提供，可为空
	ItemCount   int       `json:"item_count"`                           // 本次结算包含的佣金笔数
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`     // 创建时间
}

// TableName 返回表名
func (Payout) TableName() string {
	return "payouts"
}
