package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"menulink/database"
	"menulink/models"
	"menulink/utils"
)

// ResolveReferralCode 将推广码解析为对应的合伙人
// 推广码匹配不区分大小写；语法非法或不存在的推广码返回nil而不是错误，
// 避免接口成为探测有效推广码的预言机
func ResolveReferralCode(code string) (*models.Affiliate, error) {
	code = utils.NormalizeReferralCode(code)
	if !utils.IsValidReferralCode(code) {
		return nil, nil
	}

	var affiliate models.Affiliate
	if err := database.GetDB().Where("referral_code = ?", code).First(&affiliate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &affiliate, nil
}

// RecordClick 记录一次推广链接点击
// 未知推广码静默跳过；同一（合伙人, IP）在去重窗口内只记录一次
// 去重依赖dedup_key上的唯一索引而不是应用层协调，并发重复插入由约束兜底
// 返回本次点击是否被实际记录
func RecordClick(code, sourceIP string) (bool, error) {
	affiliate, err := ResolveReferralCode(code)
	if err != nil {
		return false, err
	}
	if affiliate == nil {
		// 未知推广码不是错误，保持接口幂等且不给攻击者可利用的信号
		return false, nil
	}

	// 计算当前去重窗口桶，同一桶内的重复点击共享同一个去重键
	bucket := time.Now().Unix() / int64(ClickDedupWindow().Seconds())
	dedupKey := fmt.Sprintf("%d:%s:%d", affiliate.ID, sourceIP, bucket)

	// 先查询再插入，减少无谓的约束冲突
	var count int64
	if err := database.GetDB().Model(&models.ReferralClick{}).Where("dedup_key = ?", dedupKey).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	click := models.ReferralClick{
		AffiliateID: affiliate.ID,
		SourceIP:    sourceIP,
		DedupKey:    dedupKey,
	}

	if err := database.GetDB().Create(&click).Error; err != nil {
		// 并发请求可能抢先插入了同一个去重键，回查确认后按重复处理
		var existing int64
		if err2 := database.GetDB().Model(&models.ReferralClick{}).Where("dedup_key = ?", dedupKey).Count(&existing).Error; err2 == nil && existing > 0 {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// BindReferral 在用户注册时创建推广绑定关系
// 绑定是一次性且不可变的：referred_user_id上的唯一索引保证同一用户
// 重复提交注册（Webhook重放）不会产生第二条绑定
// 推广码为空或未知时静默跳过，表示该用户无推荐人
func BindReferral(newUserID uint, code string) (*models.ReferralBinding, error) {
	code = utils.NormalizeReferralCode(code)
	if code == "" {
		return nil, nil
	}

	// 已有绑定直接返回，保证按用户幂等
	var existing models.ReferralBinding
	err := database.GetDB().Where("referred_user_id = ?", newUserID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	affiliate, err := ResolveReferralCode(code)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, nil
	}

	binding := models.ReferralBinding{
		AffiliateID:    affiliate.ID,
		ReferredUserID: newUserID,
		ReferralCode:   affiliate.ReferralCode,
	}

	if err := database.GetDB().Create(&binding).Error; err != nil {
		// 并发注册重放可能抢先创建了绑定，回读后返回已有记录
		if err2 := database.GetDB().Where("referred_user_id = ?", newUserID).First(&existing).Error; err2 == nil {
			return &existing, nil
		}
		log.Printf("创建推广绑定失败: %v", err)
		return nil, err
	}

	return &binding, nil
}
