package services

import (
	"errors"
	"fmt"
	"log"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"menulink/database"
	"menulink/models"
)

// telegramBot 全局Telegram机器人实例
// 未配置TELEGRAM_BOT_TOKEN时保持为nil，所有推送静默跳过
var telegramBot *tgbotapi.BotAPI

// InitTelegramNotifier 初始化Telegram推送通道
// Telegram只是站内通知之外的附加推送渠道，初始化失败不影响程序启动
func InitTelegramNotifier() {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("未配置TELEGRAM_BOT_TOKEN，Telegram推送通道已禁用")
		return
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Printf("初始化Telegram机器人失败: %v，推送通道已禁用", err)
		return
	}

	telegramBot = bot
	log.Printf("Telegram推送通道已启用, 机器人: %s", bot.Self.UserName)
}

// pushTelegram 向合伙人绑定的Telegram聊天推送一条消息
// 推送是尽力而为的：机器人未启用、合伙人未绑定聊天ID或发送失败都只记录日志
func pushTelegram(affiliateID uint, title, body string) {
	if telegramBot == nil {
		return
	}

	var affiliate models.Affiliate
	if err := database.GetDB().First(&affiliate, affiliateID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Telegram推送查询合伙人失败: %v, 合伙人ID: %d", err, affiliateID)
		}
		return
	}

	if affiliate.TelegramChatID == 0 {
		return
	}

	msg := tgbotapi.NewMessage(affiliate.TelegramChatID, fmt.Sprintf("%s\n%s", title, body))
	if _, err := telegramBot.Send(msg); err != nil {
		log.Printf("Telegram推送失败: %v, 合伙人ID: %d", err, affiliateID)
	}
}
