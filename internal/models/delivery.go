package models

import (
	"time"
)

// 投递通道
const (
	ChannelPush = "push"
	ChannelSMS  = "sms"
)

// 投递结果
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeBlocked = "blocked" // 被冷却窗口抑制，与 failed 区分
)

// DeliveryAttempt 一次通道投递尝试（对应 delivery_attempts 表，追加写入，创建后不再修改）
type DeliveryAttempt struct {
	ID        int64     `json:"id" db:"id"`
	Channel   string    `json:"channel" db:"channel"`     // push, sms
	Recipient string    `json:"recipient" db:"recipient"` // push token 或规范化电话号码
	Outcome   string    `json:"outcome" db:"outcome"`     // sent, failed, blocked
	Preview   string    `json:"preview" db:"preview"`     // 消息内容摘要（审计用）
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
