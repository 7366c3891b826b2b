package escalation

import (
	"context"
	"time"

	"seniorcare-notify/internal/config"
	"seniorcare-notify/internal/models"
	"seniorcare-notify/internal/sender"

	"go.uber.org/zap"
)

// PushChannel Push 通道接口
type PushChannel interface {
	Send(ctx context.Context, token string, payload sender.PushPayload) bool
}

// SMSChannel SMS 通道接口
type SMSChannel interface {
	Send(ctx context.Context, phone, text string) bool
}

// SMSGate SMS 限流接口
type SMSGate interface {
	CheckAndRecord(ctx context.Context, phone, text string) bool
}

// AckStore 确认状态接口
type AckStore interface {
	Register(ctx context.Context, notificationID string) error
	IsAcknowledged(ctx context.Context, notificationID string) (bool, error)
}

// OutcomePublisher 升级结果发布接口（可选，nil 表示不发布）
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, outcome *models.EscalationOutcome) error
}

// Orchestrator 升级编排器
// 对单个（事件, 保护人）执行 failover 协议：
// Push 优先（免费、即时、不可靠）→ 等待确认 → SMS 兜底（可靠、计费、限流）。
// push-then-sms 顺序是设计核心，不可颠倒或并行
type Orchestrator struct {
	config    *config.Config
	push      PushChannel
	sms       SMSChannel
	gate      SMSGate
	acks      AckStore
	publisher OutcomePublisher
	logger    *zap.Logger
}

// NewOrchestrator 创建升级编排器
func NewOrchestrator(
	cfg *config.Config,
	push PushChannel,
	sms SMSChannel,
	gate SMSGate,
	acks AckStore,
	publisher OutcomePublisher,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:    cfg,
		push:      push,
		sms:       sms,
		gate:      gate,
		acks:      acks,
		publisher: publisher,
		logger:    logger,
	}
}

// Escalate 执行一次升级，总是返回终态聚合结果，从不向上抛错
// 通道失败只体现为对应布尔值为 false
func (o *Orchestrator) Escalate(ctx context.Context, event *models.NotificationEvent, guardian models.Guardian) models.EscalationResult {
	result := models.EscalationResult{}

	// 1. 有 Push 注册则先尝试 Push
	if guardian.PushToken != "" {
		payload := BuildPushPayload(event)
		// 确认记录按（事件, 保护人）区分，一个保护人的确认不抑制其他保护人的 SMS
		notificationID := event.EventID + ":" + guardian.ID
		payload.NotificationID = notificationID

		result.PushSent = o.push.Send(ctx, guardian.PushToken, payload)

		// 2. Push 成功后注册确认记录并等待
		if result.PushSent {
			if err := o.acks.Register(ctx, notificationID); err != nil {
				// 注册失败视为无法确认，照常等待后 fallback
				o.logger.Warn("Failed to register ack record",
					zap.String("notification_id", notificationID),
					zap.Error(err),
				)
			}

			if o.waitForAck(ctx, notificationID) {
				// 3. 截止时间内确认：升级结束，不发 SMS
				result.Acknowledged = true
				o.logger.Info("Guardian acknowledged push, sms not needed",
					zap.String("event_id", event.EventID),
					zap.String("guardian_id", guardian.ID),
				)
				o.publishOutcome(ctx, event, guardian, result)
				return result
			}
		}
	}

	// 4. SMS 兜底（Push 缺失、失败或未确认）
	if guardian.Phone == "" {
		o.logger.Warn("Guardian has no phone number, sms fallback skipped",
			zap.String("event_id", event.EventID),
			zap.String("guardian_id", guardian.ID),
		)
	} else {
		text := BuildSMSText(event)
		if o.gate.CheckAndRecord(ctx, guardian.Phone, text) {
			result.SMSSent = o.sms.Send(ctx, guardian.Phone, text)
		} else {
			o.logger.Info("SMS fallback suppressed by cooldown",
				zap.String("event_id", event.EventID),
				zap.String("guardian_id", guardian.ID),
			)
		}
	}

	o.logger.Info("Escalation finished",
		zap.String("event_id", event.EventID),
		zap.String("kind", event.Kind),
		zap.String("guardian_id", guardian.ID),
		zap.Bool("push_sent", result.PushSent),
		zap.Bool("sms_sent", result.SMSSent),
	)

	// 5. 返回聚合结果，调用方只用于记录，不在此处重试
	o.publishOutcome(ctx, event, guardian, result)
	return result
}

// waitForAck 有界轮询确认状态
// 轮询间隔远粗于截止时间（不忙等）；ctx 取消时立即放弃等待，
// fallback 到 SMS 而不是让告警悬空
func (o *Orchestrator) waitForAck(ctx context.Context, notificationID string) bool {
	timeout := time.Duration(o.config.Notify.AckTimeout) * time.Second
	interval := time.Duration(o.config.Notify.AckPollInterval) * time.Second

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Ack wait abandoned, falling through to sms",
				zap.String("notification_id", notificationID),
			)
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
			acked, err := o.acks.IsAcknowledged(ctx, notificationID)
			if err != nil {
				// 确认状态不确定时不抑制 SMS
				o.logger.Warn("Failed to query ack record",
					zap.String("notification_id", notificationID),
					zap.Error(err),
				)
				continue
			}
			if acked {
				return true
			}
		}
	}
}

// publishOutcome 发布升级结果到 Redis Stream（尽力而为，失败只记日志）
func (o *Orchestrator) publishOutcome(ctx context.Context, event *models.NotificationEvent, guardian models.Guardian, result models.EscalationResult) {
	if o.publisher == nil {
		return
	}

	outcome := &models.EscalationOutcome{
		EventID:      event.EventID,
		Kind:         event.Kind,
		SeniorID:     event.SeniorID,
		GuardianID:   guardian.ID,
		PushSent:     result.PushSent,
		SMSSent:      result.SMSSent,
		Acknowledged: result.Acknowledged,
		OccurredAt:   time.Now(),
	}

	if err := o.publisher.PublishOutcome(ctx, outcome); err != nil {
		o.logger.Error("Failed to publish escalation outcome",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}
}
