package utils

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"
)

// loginAttempt 单个邮箱的连续登录失败记录
type loginAttempt struct {
	failures  int       // 连续失败次数
	lastFail  time.Time // 最近一次失败时间
	lockUntil time.Time // 锁定截止时间，零值表示未触发过锁定
}

// LoginLimiter 登录限制器
// 按邮箱统计连续登录失败次数，达到上限后临时锁定该邮箱的登录，
// 防止对合伙人账号的暴力破解
// 记录只保存在内存中，进程重启即清零，对登录防护来说可以接受
type LoginLimiter struct {
	mu           sync.Mutex
	attempts     map[string]*loginAttempt
	maxAttempts  int           // 触发锁定的连续失败次数
	lockDuration time.Duration // 锁定时长
}

// NewLoginLimiter 创建登录限制器
// cleanInterval控制后台清理协程的运行间隔，过期的失败记录会被定期回收
func NewLoginLimiter(maxAttempts int, lockDuration, cleanInterval time.Duration) *LoginLimiter {
	l := &LoginLimiter{
		attempts:     make(map[string]*loginAttempt),
		maxAttempts:  maxAttempts,
		lockDuration: lockDuration,
	}

	go l.cleanupLoop(cleanInterval)

	return l
}

// cleanupLoop 定期回收过期的失败记录
// 锁定已解除且超过24小时没有新失败的邮箱记录被删除
func (l *LoginLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for email, attempt := range l.attempts {
			if now.After(attempt.lockUntil) && now.Sub(attempt.lastFail) > 24*time.Hour {
				delete(l.attempts, email)
			}
		}
		l.mu.Unlock()
	}
}

// RecordFailedLogin 记录一次登录失败
// 上一次锁定过期后计数从头开始，历史失败不会导致立刻再次锁定
// 返回本次失败是否触发锁定以及锁定时长（分钟）
func (l *LoginLimiter) RecordFailedLogin(email string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	attempt, ok := l.attempts[email]
	if !ok {
		attempt = &loginAttempt{}
		l.attempts[email] = attempt
	}

	// 锁定已过期，从头计数
	if !attempt.lockUntil.IsZero() && now.After(attempt.lockUntil) {
		attempt.failures = 0
		attempt.lockUntil = time.Time{}
	}

	attempt.failures++
	attempt.lastFail = now

	if attempt.failures >= l.maxAttempts {
		attempt.lockUntil = now.Add(l.lockDuration)
		return true, int(l.lockDuration.Minutes())
	}

	return false, 0
}

// IsLocked 检查邮箱是否处于锁定状态
// 返回是否锁定及剩余锁定时间（分钟，向上取整）
func (l *LoginLimiter) IsLocked(email string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	attempt, ok := l.attempts[email]
	if !ok {
		return false, 0
	}

	now := time.Now()
	if now.Before(attempt.lockUntil) {
		return true, int(attempt.lockUntil.Sub(now).Minutes()) + 1
	}

	return false, 0
}

// ResetAttempts 登录成功后清除该邮箱的失败记录
func (l *LoginLimiter) ResetAttempts(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.attempts, email)
}

// GetRemainingAttempts 查询触发锁定前剩余的尝试次数
func (l *LoginLimiter) GetRemainingAttempts(email string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	attempt, ok := l.attempts[email]
	if !ok {
		return l.maxAttempts
	}

	remaining := l.maxAttempts - attempt.failures
	if remaining < 0 {
		return 0
	}

	return remaining
}

// DefaultLoginLimiter 默认的登录限制器实例
// 连续失败5次锁定15分钟，每小时清理一次过期记录
// 阈值可通过ConfigureLoginLimiter用环境变量覆盖
var DefaultLoginLimiter = NewLoginLimiter(5, 15*time.Minute, time.Hour)

// ConfigureLoginLimiter 从环境变量重建默认限制器
// LOGIN_MAX_ATTEMPTS设置触发锁定的失败次数，LOGIN_LOCK_MINUTES设置锁定分钟数
// 未设置或格式非法的配置项保持默认值
func ConfigureLoginLimiter() {
	maxAttempts := 5
	lockMinutes := 15

	if v := os.Getenv("LOGIN_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxAttempts = n
		} else {
			log.Printf("LOGIN_MAX_ATTEMPTS配置非法: %s，使用默认值", v)
		}
	}

	if v := os.Getenv("LOGIN_LOCK_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lockMinutes = n
		} else {
			log.Printf("LOGIN_LOCK_MINUTES配置非法: %s，使用默认值", v)
		}
	}

	DefaultLoginLimiter = NewLoginLimiter(maxAttempts, time.Duration(lockMinutes)*time.Minute, time.Hour)
}
