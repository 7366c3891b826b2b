package models

import (
	"time"
)

// 事件类型
const (
	EventKindMissedDose = "missed_dose"
	EventKindEmergency  = "emergency"
)

// NotificationEvent 通知事件（一次需要保护人关注的事项）
type NotificationEvent struct {
	EventID      string    `json:"event_id"`
	Kind         string    `json:"kind"` // missed_dose, emergency
	SeniorID     string    `json:"senior_id"`
	SeniorName   string    `json:"senior_name"`
	Summary      string    `json:"summary"`                 // 人类可读摘要（如未服药品名称列表）
	LogIDs       []string  `json:"log_ids,omitempty"`       // missed_dose 事件关联的 medication_logs 记录
	LocationLink *string   `json:"location_link,omitempty"` // emergency 事件可选的位置链接
	CreatedAt    time.Time `json:"created_at"`
}

// Guardian 保护人（profiles 表中 role='guardian' 且 linked_to=senior 的记录）
type Guardian struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Phone     string `json:"phone" db:"phone"`
	PushToken string `json:"push_token" db:"push_token"` // 空字符串表示未注册 Push
}

// EscalationResult 一次升级的聚合结果
type EscalationResult struct {
	PushSent     bool `json:"push_sent"`
	SMSSent      bool `json:"sms_sent"`
	Acknowledged bool `json:"acknowledged"`
}

// EscalationOutcome 发布到 Redis Stream 的升级结果消息
type EscalationOutcome struct {
	EventID      string    `json:"event_id"`
	Kind         string    `json:"kind"`
	SeniorID     string    `json:"senior_id"`
	GuardianID   string    `json:"guardian_id"`
	PushSent     bool      `json:"push_sent"`
	SMSSent      bool      `json:"sms_sent"`
	Acknowledged bool      `json:"acknowledged"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// SubjectResult 扫描批次中单个老人的处理结果
type SubjectResult struct {
	SeniorID   string `json:"senior_id"`
	GuardianID string `json:"guardian_id,omitempty"`
	Notified   bool   `json:"notified"`
	Error      string `json:"error,omitempty"`
}

// ScanReport 一次扫描的汇总报告
type ScanReport struct {
	OverdueCount int             `json:"overdue_count"`
	Results      []SubjectResult `json:"results"`
	CheckedAt    string          `json:"checked_at"` // "HH:MM"
}
