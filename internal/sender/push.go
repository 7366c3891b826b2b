package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"seniorcare-notify/internal/config"
	"seniorcare-notify/internal/models"

	"go.uber.org/zap"
)

// AttemptRecorder 投递日志写入接口（由 repository.DeliveryLogRepository 实现）
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, channel, recipient, outcome, preview string) error
}

// PushPayload Push 通知内容
// Tag 为同一逻辑告警的稳定去重键（如 "guardian-alert-<senior_id>"），
// NotificationID 供客户端确认回调使用
type PushPayload struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	Tag            string `json:"tag"`
	URL            string `json:"url"`
	NotificationID string `json:"notification_id,omitempty"`
}

// PushSender Push 通道发送器（FCM 风格 HTTP 端点）
type PushSender struct {
	config     *config.Config
	httpClient *http.Client
	attempts   AttemptRecorder
	logger     *zap.Logger
}

// NewPushSender 创建 Push 发送器
func NewPushSender(cfg *config.Config, attempts AttemptRecorder, logger *zap.Logger) *PushSender {
	return &PushSender{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		attempts: attempts,
		logger:   logger,
	}
}

// fcmRequest FCM legacy send 请求体
type fcmRequest struct {
	To           string      `json:"to"`
	Notification PushPayload `json:"notification"`
	Data         struct {
		URL            string `json:"url"`
		NotificationID string `json:"notification_id"`
	} `json:"data"`
}

// fcmResponse FCM legacy send 响应体（只取成功计数）
type fcmResponse struct {
	Success int `json:"success"`
}

// Send 向 Push 端点投递一次通知
// 提供商错误与超时一律吞掉并返回 false（由上层决定是否 fallback），
// 每次调用无论结果都记录一条 DeliveryAttempt
func (s *PushSender) Send(ctx context.Context, token string, payload PushPayload) bool {
	if token == "" {
		return false
	}

	if s.config.Push.DryRun {
		// 干跑模式：记录日志和投递记录，不调用提供商
		s.logger.Info("Push send (dry-run)",
			zap.Bool("dry_run", true),
			zap.String("token_prefix", tokenPrefix(token)),
			zap.String("title", payload.Title),
			zap.String("tag", payload.Tag),
		)
		s.recordAttempt(ctx, token, models.OutcomeSent, payload.Title)
		return true
	}

	delivered := s.deliver(ctx, token, payload)

	outcome := models.OutcomeSent
	if !delivered {
		outcome = models.OutcomeFailed
	}
	s.recordAttempt(ctx, token, outcome, payload.Title)

	return delivered
}

// deliver 调用提供商端点
func (s *PushSender) deliver(ctx context.Context, token string, payload PushPayload) bool {
	reqBody := fcmRequest{
		To:           token,
		Notification: payload,
	}
	reqBody.Data.URL = payload.URL
	reqBody.Data.NotificationID = payload.NotificationID

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		s.logger.Error("Failed to marshal push request",
			zap.Error(err),
		)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Push.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		s.logger.Error("Failed to build push request",
			zap.Error(err),
		)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.config.Push.ServerKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("Push provider request failed",
			zap.String("token_prefix", tokenPrefix(token)),
			zap.Error(err),
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Push provider returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.String("token_prefix", tokenPrefix(token)),
		)
		return false
	}

	// FCM legacy 对无效 token 也返回 200，需检查 success 计数
	var fcmResp fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&fcmResp); err == nil && fcmResp.Success == 0 {
		s.logger.Warn("Push provider reported delivery failure",
			zap.String("token_prefix", tokenPrefix(token)),
		)
		return false
	}

	return true
}

func (s *PushSender) recordAttempt(ctx context.Context, token, outcome, preview string) {
	if err := s.attempts.RecordAttempt(ctx, models.ChannelPush, token, outcome, preview); err != nil {
		// 审计写入失败不影响投递结果
		s.logger.Error("Failed to record push attempt",
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
}

// tokenPrefix 日志中只输出 token 前缀
func tokenPrefix(token string) string {
	if len(token) > 20 {
		return token[:20]
	}
	return token
}
