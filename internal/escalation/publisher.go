package escalation

import (
	"context"
	"fmt"

	"seniorcare-notify/internal/models"
	rediscommon "seniorcare-notify/internal/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamPublisher 升级结果的 Redis Stream 发布器
// 保护人端实时面板消费该流
type StreamPublisher struct {
	redisClient *redis.Client
	stream      string
	logger      *zap.Logger
}

// NewStreamPublisher 创建 Stream 发布器
func NewStreamPublisher(redisClient *redis.Client, stream string, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

// PublishOutcome 发布一条升级结果
func (p *StreamPublisher) PublishOutcome(ctx context.Context, outcome *models.EscalationOutcome) error {
	id, err := rediscommon.PublishJSONToStream(ctx, p.redisClient, p.stream, outcome)
	if err != nil {
		return fmt.Errorf("failed to publish escalation outcome: %w", err)
	}

	p.logger.Debug("Published escalation outcome",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("event_id", outcome.EventID),
	)

	return nil
}
