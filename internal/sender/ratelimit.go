package sender

import (
	"context"
	"time"

	"seniorcare-notify/internal/models"

	"go.uber.org/zap"
)

// SentCounter 投递日志查询接口（由 repository.DeliveryLogRepository 实现）
type SentCounter interface {
	CountSentSince(ctx context.Context, channel, recipient string, since time.Time) (int, error)
}

// RateLimiter SMS 限流器
// 冷却窗口基于投递日志按次重算，不在内存中缓存历史，
// 并发扫描之间以持久日志为串行化点
type RateLimiter struct {
	cooldown time.Duration
	counter  SentCounter
	attempts AttemptRecorder
	logger   *zap.Logger
}

// NewRateLimiter 创建 SMS 限流器
func NewRateLimiter(cooldown time.Duration, counter SentCounter, attempts AttemptRecorder, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		cooldown: cooldown,
		counter:  counter,
		attempts: attempts,
		logger:   logger,
	}
}

// CheckAndRecord 检查号码是否在冷却窗口内
// 返回 true 表示允许发送；返回 false 时已记录一条 blocked 投递记录（仅审计用，
// blocked 记录本身不计入冷却窗口）。
// 日志存储不可用时 fail open：宁可重复发送也不能静默丢掉告警。
// 已知竞态：并发检查可能同时通过，最坏情况为一条重复 SMS，接受该风险而不加分布式锁
func (l *RateLimiter) CheckAndRecord(ctx context.Context, phone, text string) bool {
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return false
	}

	since := time.Now().Add(-l.cooldown)
	count, err := l.counter.CountSentSince(ctx, models.ChannelSMS, normalized, since)
	if err != nil {
		// fail open
		l.logger.Warn("Rate limit check failed, failing open",
			zap.String("recipient", normalized),
			zap.Error(err),
		)
		return true
	}

	if count > 0 {
		l.logger.Info("SMS blocked by cooldown window",
			zap.String("recipient", normalized),
			zap.Duration("cooldown", l.cooldown),
			zap.Int("recent_sent", count),
		)
		if err := l.attempts.RecordAttempt(ctx, models.ChannelSMS, normalized, models.OutcomeBlocked, truncate(text, 80)); err != nil {
			l.logger.Error("Failed to record blocked attempt",
				zap.Error(err),
			)
		}
		return false
	}

	return true
}
