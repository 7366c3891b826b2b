package acktracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"seniorcare-notify/internal/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AckRecord 确认记录
type AckRecord struct {
	NotificationID string     `json:"notification_id"`
	RegisteredAt   time.Time  `json:"registered_at"`
	AckedAt        *time.Time `json:"acked_at,omitempty"`
}

// Tracker 确认状态追踪器
// 记录保护人是否确认收到某条 Push 通知；记录存 Redis，带 TTL，
// 键格式 "notify:ack:<notification_id>"
type Tracker struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewTracker 创建确认状态追踪器
func NewTracker(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *Tracker {
	return &Tracker{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// GetAckKey 构建确认记录键
func (t *Tracker) GetAckKey(notificationID string) string {
	return t.config.Notify.AckKeyPrefix + notificationID
}

func (t *Tracker) ttl() time.Duration {
	return time.Duration(t.config.Notify.AckTTLHours) * time.Hour
}

// Register 注册一条待确认记录（随 Push 发送创建）
func (t *Tracker) Register(ctx context.Context, notificationID string) error {
	if notificationID == "" {
		return fmt.Errorf("notification_id is required")
	}

	record := AckRecord{
		NotificationID: notificationID,
		RegisteredAt:   time.Now(),
	}

	return t.setRecord(ctx, notificationID, &record)
}

// Acknowledge 幂等标记已确认
// 重复确认是 no-op；记录不存在时（如 TTL 过期后客户端才回调）补写一条已确认记录
func (t *Tracker) Acknowledge(ctx context.Context, notificationID string) error {
	if notificationID == "" {
		return fmt.Errorf("notification_id is required")
	}

	record, err := t.getRecord(ctx, notificationID)
	if err != nil {
		return err
	}

	now := time.Now()
	if record == nil {
		record = &AckRecord{
			NotificationID: notificationID,
			RegisteredAt:   now,
		}
	}
	if record.AckedAt != nil {
		// 已确认，no-op
		return nil
	}
	record.AckedAt = &now

	return t.setRecord(ctx, notificationID, record)
}

// IsAcknowledged 查询是否已确认
// 记录不存在视为未确认（确认通道缺失时让截止时间自然触发 SMS fallback）
func (t *Tracker) IsAcknowledged(ctx context.Context, notificationID string) (bool, error) {
	if notificationID == "" {
		return false, fmt.Errorf("notification_id is required")
	}

	record, err := t.getRecord(ctx, notificationID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	return record.AckedAt != nil, nil
}

// getRecord 读取确认记录，不存在返回 nil
func (t *Tracker) getRecord(ctx context.Context, notificationID string) (*AckRecord, error) {
	val, err := t.redisClient.Get(ctx, t.GetAckKey(notificationID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ack record: %w", err)
	}

	var record AckRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ack record: %w", err)
	}

	return &record, nil
}

// setRecord 写入确认记录（带 TTL）
func (t *Tracker) setRecord(ctx context.Context, notificationID string, record *AckRecord) error {
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ack record: %w", err)
	}

	err = t.redisClient.Set(ctx, t.GetAckKey(notificationID), jsonData, t.ttl()).Err()
	if err != nil {
		return fmt.Errorf("failed to set ack record: %w", err)
	}

	return nil
}
