package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DeliveryLogRepository 投递日志仓库（delivery_attempts 表）
// 追加写入，是并发扫描与限流共享的唯一事实来源
type DeliveryLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeliveryLogRepository 创建投递日志仓库
func NewDeliveryLogRepository(db *sql.DB, logger *zap.Logger) *DeliveryLogRepository {
	return &DeliveryLogRepository{
		db:     db,
		logger: logger,
	}
}

// RecordAttempt 记录一次投递尝试（sent / failed / blocked）
func (r *DeliveryLogRepository) RecordAttempt(ctx context.Context, channel, recipient, outcome, preview string) error {
	if channel == "" {
		return fmt.Errorf("channel is required")
	}
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if outcome == "" {
		return fmt.Errorf("outcome is required")
	}

	query := `
		INSERT INTO delivery_attempts (channel, recipient, outcome, preview, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, channel, recipient, outcome, preview, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record delivery attempt: %w", err)
	}

	return nil
}

// CountSentSince 统计某接收方在 since 之后的 sent 投递数
// blocked/failed 记录不计入冷却窗口
func (r *DeliveryLogRepository) CountSentSince(ctx context.Context, channel, recipient string, since time.Time) (int, error) {
	if recipient == "" {
		return 0, fmt.Errorf("recipient is required")
	}

	query := `
		SELECT COUNT(*)
		FROM delivery_attempts
		WHERE channel = $1
		  AND recipient = $2
		  AND outcome = 'sent'
		  AND created_at >= $3
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, channel, recipient, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sent attempts: %w", err)
	}

	return count, nil
}
