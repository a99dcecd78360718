package handlers

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"menulink/database"
	"menulink/models"
	"menulink/utils"
)

// CreateAffiliate 创建推广合伙人
// 接收合伙人的基本信息，创建新的合伙人记录并保存到数据库
// 推广码可以自选（4-20位大写字母或数字），未提供时自动生成；创建后不可修改
func CreateAffiliate(c *fiber.Ctx) error {
	// 解析请求体中的合伙人数据
	var requestData struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ReferralCode    string `json:"referral_code"`
		BankName        string `json:"bank_name"`
		BankAccount     string `json:"bank_account"`
		BeneficiaryName string `json:"beneficiary_name"`
	}

	if err := c.BodyParser(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	// 验证必填字段
	if requestData.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "姓名不能为空",
		})
	}

	if requestData.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "邮箱不能为空",
		})
	}

	if requestData.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "密码不能为空",
		})
	}

	// 验证邮箱是否已存在
	var existingAffiliate models.Affiliate
	result := database.GetDB().Where("email = ?", requestData.Email).First(&existingAffiliate)
	if result.Error == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "邮箱已被注册",
		})
	} else if result.Error != gorm.ErrRecordNotFound {
		// 如果发生其他错误，返回服务器错误
		log.Printf("查询合伙人失败: %v", result.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询合伙人失败",
		})
	}

	// 处理推广码：自选的需要校验语法和唯一性，未提供时自动生成
	code := utils.NormalizeReferralCode(requestData.ReferralCode)
	if code != "" {
		if !utils.IsValidReferralCode(code) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "推广码格式无效，需为4-20位字母或数字",
			})
		}

		var existing models.Affiliate
		result := database.GetDB().Where("referral_code = ?", code).First(&existing)
		if result.Error == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "推广码已被使用",
			})
		} else if result.Error != gorm.ErrRecordNotFound {
			log.Printf("查询推广码失败: %v", result.Error)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "查询推广码失败",
			})
		}
	} else {
		code = utils.GenerateReferralCode()
	}

	affiliate := models.Affiliate{
		Name:            requestData.Name,
		Email:           requestData.Email,
		ReferralCode:    code,
		Status:          "active",
		BankName:        requestData.BankName,
		BankAccount:     requestData.BankAccount,
		BeneficiaryName: requestData.BeneficiaryName,
	}

	// 设置加密密码
	if err := affiliate.SetPassword(requestData.Password); err != nil {
		log.Printf("密码加密失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "密码加密失败",
		})
	}

	// 保存合伙人记录
	if err := database.GetDB().Create(&affiliate).Error; err != nil {
		log.Printf("创建合伙人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "创建合伙人失败: " + err.Error(),
		})
	}

	// 返回创建成功的合伙人信息
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "合伙人创建成功",
		"data":    affiliate,
	})
}

// GetAllAffiliates 获取所有推广合伙人
// 支持分页和筛选
func GetAllAffiliates(c *fiber.Ctx) error {
	// 解析查询参数
	var query models.AffiliateQuery
	if err := c.QueryParser(&query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "查询参数解析失败: " + err.Error(),
		})
	}

	// 设置默认分页参数
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 10
	}

	// 构建查询
	db := database.GetDB().Model(&models.Affiliate{})

	// 应用筛选条件
	if query.Name != "" {
		db = db.Where("name LIKE ?", "%"+query.Name+"%")
	}
	if query.Email != "" {
		db = db.Where("email LIKE ?", "%"+query.Email+"%")
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}

	// 计算总数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("计算合伙人总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "计算合伙人总数失败",
		})
	}

	// 获取分页数据
	var affiliates []models.Affiliate
	offset := (query.Page - 1) * query.PageSize
	if err := db.Offset(offset).Limit(query.PageSize).Find(&affiliates).Error; err != nil {
		log.Printf("获取合伙人列表失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取合伙人列表失败",
		})
	}

	// 返回结果
	return c.JSON(fiber.Map{
		"total": total,
		"page":  query.Page,
		"size":  query.PageSize,
		"data":  affiliates,
	})
}

// GetAffiliate 获取单个合伙人信息
func GetAffiliate(c *fiber.Ctx) error {
	// 获取合伙人ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的合伙人ID",
		})
	}

	// 查询合伙人
	var affiliate models.Affiliate
	if err := database.GetDB().First(&affiliate, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "合伙人不存在",
			})
		}
		log.Printf("获取合伙人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取合伙人失败",
		})
	}

	// 返回合伙人信息
	return c.JSON(fiber.Map{
		"data": affiliate,
	})
}

// UpdateAffiliate 更新合伙人信息
// 管理端接口，可以修改姓名、收款信息和状态（暂停/恢复）
// 推广码不在可更新字段中，创建后永不修改
func UpdateAffiliate(c *fiber.Ctx) error {
	// 获取合伙人ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的合伙人ID",
		})
	}

	// 查询合伙人是否存在
	var affiliate models.Affiliate
	if err := database.GetDB().First(&affiliate, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "合伙人不存在",
			})
		}
		log.Printf("查询合伙人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询合伙人失败",
		})
	}

	// 解析请求体
	var updateData struct {
		Name            string `json:"name"`
		Status          string `json:"status"`
		BankName        string `json:"bank_name"`
		BankAccount     string `json:"bank_account"`
		BeneficiaryName string `json:"beneficiary_name"`
		TelegramChatID  int64  `json:"telegram_chat_id"`
		Password        string `json:"password"`
	}

	if err := c.BodyParser(&updateData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	// 更新字段
	updates := make(map[string]interface{})

	if updateData.Name != "" {
		updates["name"] = updateData.Name
	}
	if updateData.Status != "" {
		if updateData.Status != "active" && updateData.Status != "suspended" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "无效的状态，只支持active或suspended",
			})
		}
		updates["status"] = updateData.Status
	}
	if updateData.BankName != "" {
		updates["bank_name"] = updateData.BankName
	}
	if updateData.BankAccount != "" {
		updates["bank_account"] = updateData.BankAccount
	}
	if updateData.BeneficiaryName != "" {
		updates["beneficiary_name"] = updateData.BeneficiaryName
	}
	if updateData.TelegramChatID != 0 {
		updates["telegram_chat_id"] = updateData.TelegramChatID
	}

	// 处理密码更新
	if updateData.Password != "" {
		if err := affiliate.SetPassword(updateData.Password); err != nil {
			log.Printf("密码加密失败: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "密码加密失败",
			})
		}
		updates["password"] = affiliate.Password
	}

	// 执行更新
	if err := database.GetDB().Model(&affiliate).Updates(updates).Error; err != nil {
		log.Printf("更新合伙人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "更新合伙人失败: " + err.Error(),
		})
	}

	// 重新获取更新后的合伙人信息
	if err := database.GetDB().First(&affiliate, id).Error; err != nil {
		log.Printf("获取更新后的合伙人信息失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取更新后的合伙人信息失败",
		})
	}

	// 返回更新后的合伙人信息
	return c.JSON(fiber.Map{
		"message": "合伙人信息更新成功",
		"data":    affiliate,
	})
}

// 处理登录失败响应
func handleLoginFailure(c *fiber.Ctx, email string, message string) error {
	// 记录失败的登录尝试
	isLocked, minutes := utils.DefaultLoginLimiter.RecordFailedLogin(email)

	log.Printf("登录失败，原因: %s, 邮箱: %s", message, email)

	var response fiber.Map
	if isLocked {
		response = fiber.Map{
			"error":   "登录尝试次数过多，账号已被临时锁定",
			"minutes": minutes,
		}
	} else {
		remainingAttempts := utils.DefaultLoginLimiter.GetRemainingAttempts(email)
		response = fiber.Map{
			"error":              "邮箱或密码错误",
			"remaining_attempts": remainingAttempts,
		}
	}

	return c.Status(fiber.StatusUnauthorized).JSON(response)
}

// AffiliateLogin 合伙人登录
func AffiliateLogin(c *fiber.Ctx) error {
	// 解析请求数据
	var loginData struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&loginData); err != nil {
		log.Printf("解析登录数据失败: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败，请检查输入格式",
		})
	}

	// 验证必填字段
	if loginData.Email == "" || loginData.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "邮箱和密码不能为空",
		})
	}

	// 检查登录尝试次数限制
	isLocked, remainingMinutes := utils.DefaultLoginLimiter.IsLocked(loginData.Email)
	if isLocked {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":   "登录尝试次数过多，账号已被临时锁定",
			"minutes": remainingMinutes,
		})
	}

	// 查询合伙人信息
	var affiliate models.Affiliate
	if err := database.GetDB().Where("email = ?", loginData.Email).First(&affiliate).Error; err != nil {
		// 不要泄露账号是否存在的信息，统一返回邮箱或密码错误
		return handleLoginFailure(c, loginData.Email, "邮箱不存在")
	}

	// 验证密码
	if !affiliate.CheckPassword(loginData.Password) {
		return handleLoginFailure(c, loginData.Email, "密码错误")
	}

	// 重置登录尝试次数
	utils.DefaultLoginLimiter.ResetAttempts(loginData.Email)

	// 懒惰删除：清理该合伙人的过期令牌
	if err := database.GetDB().Where("affiliate_id = ? AND expired_at < ?", affiliate.ID, time.Now()).Delete(&models.AffiliateToken{}).Error; err != nil {
		log.Printf("删除过期令牌失败: %v", err)
		// 不返回错误，继续处理
	}

	// 生成JWT令牌，有效期24小时
	token, err := utils.GenerateToken(affiliate.ID, affiliate.Email, 24*time.Hour)
	if err != nil {
		log.Printf("生成令牌失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "登录失败，请稍后重试",
		})
	}

	// 获取客户端信息
	userAgent := c.Get("User-Agent")
	ip := c.IP()

	// 定义过期时间
	expireTime := time.Now().Add(24 * time.Hour)

	// 存储令牌到数据库
	affiliateToken := models.AffiliateToken{
		AffiliateID: affiliate.ID,
		Token:       token,
		UserAgent:   userAgent,
		IP:          ip,
		ExpiredAt:   expireTime,
	}

	if err := database.GetDB().Create(&affiliateToken).Error; err != nil {
		log.Printf("存储令牌失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "登录失败，请稍后重试",
		})
	}

	// 更新最后登录时间
	now := time.Now()
	affiliate.LastLoginAt = &now
	if err := database.GetDB().Model(&affiliate).Update("last_login_at", now).Error; err != nil {
		log.Printf("更新最后登录时间失败: %v", err)
	}

	log.Printf("合伙人登录成功: %s, ID: %d", affiliate.Email, affiliate.ID)

	// 返回登录成功信息和令牌
	return c.JSON(fiber.Map{
		"message":    "登录成功",
		"token":      token,
		"expires_at": expireTime.Unix(), // 返回过期时间戳，方便前端处理
		"data": fiber.Map{
			"id":            affiliate.ID,
			"name":          affiliate.Name,
			"email":         affiliate.Email,
			"referral_code": affiliate.ReferralCode,
			"status":        affiliate.Status,
		},
	})
}

// AffiliateRefreshToken 刷新认证令牌
// 为当前会话签发新令牌并使旧令牌立即失效，用于长会话的无感续期
func AffiliateRefreshToken(c *fiber.Ctx) error {
	// 从上下文中获取合伙人ID
	affiliateID, err := utils.GetAffiliateIDFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未找到合伙人身份信息",
		})
	}

	// 提取当前使用的令牌，刷新成功后将其删除
	authHeader := c.Get("Authorization")
	if authHeader == "" || len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "未提供有效的认证令牌",
		})
	}
	oldToken := authHeader[7:]

	// 查询合伙人信息
	var affiliate models.Affiliate
	if err := database.GetDB().First(&affiliate, affiliateID).Error; err != nil {
		log.Printf("查询合伙人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "刷新令牌失败，请稍后重试",
		})
	}

	// 生成新令牌，有效期24小时
	token, err := utils.GenerateToken(affiliate.ID, affiliate.Email, 24*time.Hour)
	if err != nil {
		log.Printf("生成令牌失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "刷新令牌失败，请稍后重试",
		})
	}

	expireTime := time.Now().Add(24 * time.Hour)

	// 存储新令牌到数据库
	affiliateToken := models.AffiliateToken{
		AffiliateID: affiliate.ID,
		Token:       token,
		UserAgent:   c.Get("User-Agent"),
		IP:          c.IP(),
		ExpiredAt:   expireTime,
	}

	if err := database.GetDB().Create(&affiliateToken).Error; err != nil {
		log.Printf("存储令牌失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "刷新令牌失败，请稍后重试",
		})
	}

	// 删除旧令牌，旧令牌立即失效
	if err := database.GetDB().Where("token = ?", oldToken).Delete(&models.AffiliateToken{}).Error; err != nil {
		log.Printf("删除旧令牌失败: %v", err)
	}

	return c.JSON(fiber.Map{
		"message":    "令牌刷新成功",
		"token":      token,
		"expires_at": expireTime.Unix(),
	})
}

// AffiliateLogout 合伙人登出
// 该处理函数用于使当前会话的令牌失效
func AffiliateLogout(c *fiber.Ctx) error {
	// 从请求头获取令牌
	// 验证Authorization头是否存在且格式正确
	authHeader := c.Get("Authorization")
	if authHeader == "" || len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "未提供有效的认证令牌",
		})
	}

	tokenString := authHeader[7:]

	// 将令牌从数据库中删除
	// 使令牌立即失效，防止后续使用
	if err := database.GetDB().Where("token = ?", tokenString).Delete(&models.AffiliateToken{}).Error; err != nil {
		log.Printf("删除令牌失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "登出失败，请稍后重试",
		})
	}

	return c.JSON(fiber.Map{
		"message": "登出成功",
	})
}

// UpdateOwnBankAccount 合伙人更新自己的收款信息
// 收款账户是合伙人资料中唯一允许自助修改的部分
func UpdateOwnBankAccount(c *fiber.Ctx) error {
	// 从上下文中获取合伙人ID
	affiliateID, err := utils.GetAffiliateIDFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未找到合伙人身份信息",
		})
	}

	// 解析请求数据
	var bankData struct {
		BankName        string `json:"bank_name"`
		BankAccount     string `json:"bank_account"`
		BeneficiaryName string `json:"beneficiary_name"`
	}

	if err := c.BodyParser(&bankData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	// 验证必填字段
	if bankData.BankName == "" || bankData.BankAccount == "" || bankData.BeneficiaryName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "收款银行、账号和收款人姓名不能为空",
		})
	}

	// 执行更新
	if err := database.GetDB().Model(&models.Affiliate{}).Where("id = ?", affiliateID).
		Updates(map[string]interface{}{
			"bank_name":        bankData.BankName,
			"bank_account":     bankData.BankAccount,
			"beneficiary_name": bankData.BeneficiaryName,
		}).Error; err != nil {
		log.Printf("更新收款信息失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "更新收款信息失败",
		})
	}

	return c.JSON(fiber.Map{
		"message": "收款信息更新成功",
	})
}

// GetOwnProfile 合伙人查询自己的资料
func GetOwnProfile(c *fiber.Ctx) error {
	// 从上下文中获取合伙人ID
	affiliateID, err := utils.GetAffiliateIDFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未找到合伙人身份信息",
		})
	}

	var affiliate models.Affiliate
	if err := database.GetDB().First(&affiliate, affiliateID).Error; err != nil {
		log.Printf("查询合伙人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询合伙人信息失败",
		})
	}

	return c.JSON(fiber.Map{
		"data": affiliate,
	})
}
