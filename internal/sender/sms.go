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

// SMSSender SMS 通道发送器（Solapi 风格 HTTP 端点）
type SMSSender struct {
	config     *config.Config
	httpClient *http.Client
	attempts   AttemptRecorder
	logger     *zap.Logger
}

// NewSMSSender 创建 SMS 发送器
func NewSMSSender(cfg *config.Config, attempts AttemptRecorder, logger *zap.Logger) *SMSSender {
	return &SMSSender{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		attempts: attempts,
		logger:   logger,
	}
}

// smsRequest Solapi 风格请求体
type smsRequest struct {
	Message struct {
		To   string `json:"to"`
		From string `json:"from"`
		Text string `json:"text"`
	} `json:"message"`
}

// Send 发送一条 SMS
// 号码先规范化为纯数字形式再发送和记录；
// 提供商错误一律吞掉并返回 false，每次调用都记录一条 DeliveryAttempt
func (s *SMSSender) Send(ctx context.Context, phone, text string) bool {
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return false
	}

	if s.config.SMS.DryRun {
		// 干跑模式：凭证缺失的开发/测试环境也能完整走通限流和升级逻辑
		s.logger.Info("SMS send (dry-run)",
			zap.Bool("dry_run", true),
			zap.String("to", normalized),
			zap.String("text", text),
		)
		s.recordAttempt(ctx, normalized, models.OutcomeSent, truncate(text, 80))
		return true
	}

	sent := s.deliver(ctx, normalized, text)

	outcome := models.OutcomeSent
	if !sent {
		outcome = models.OutcomeFailed
	}
	s.recordAttempt(ctx, normalized, outcome, truncate(text, 80))

	return sent
}

// deliver 调用提供商端点
func (s *SMSSender) deliver(ctx context.Context, to, text string) bool {
	var reqBody smsRequest
	reqBody.Message.To = to
	reqBody.Message.From = s.config.SMS.FromNumber
	reqBody.Message.Text = text

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		s.logger.Error("Failed to marshal sms request",
			zap.Error(err),
		)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.SMS.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		s.logger.Error("Failed to build sms request",
			zap.Error(err),
		)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.SMS.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("SMS provider request failed",
			zap.String("to", to),
			zap.Error(err),
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn("SMS provider returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("to", to),
		)
		return false
	}

	return true
}

func (s *SMSSender) recordAttempt(ctx context.Context, recipient, outcome, preview string) {
	if err := s.attempts.RecordAttempt(ctx, models.ChannelSMS, recipient, outcome, preview); err != nil {
		s.logger.Error("Failed to record sms attempt",
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
