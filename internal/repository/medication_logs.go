package repository

import (
	"context"
	"database/sql"
	"fmt"

	"seniorcare-notify/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// MedicationLogsRepository 服药记录仓库
type MedicationLogsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMedicationLogsRepository 创建服药记录仓库
func NewMedicationLogsRepository(db *sql.DB, logger *zap.Logger) *MedicationLogsRepository {
	return &MedicationLogsRepository{
		db:     db,
		logger: logger,
	}
}

// FindOverduePending 查询超过宽限期且尚未通知保护人的 pending 记录
// date 为当天日历日期 "2026-09-01"，cutoff 为宽限期截止时刻 "HH:MM"
// notified_guardian=false 是防止重复升级的幂等保证（而非时间过滤）
func (r *MedicationLogsRepository) FindOverduePending(ctx context.Context, date, cutoff string) ([]models.MedicationLog, error) {
	if date == "" {
		return nil, fmt.Errorf("date is required")
	}
	if cutoff == "" {
		return nil, fmt.Errorf("cutoff is required")
	}

	query := `
		SELECT
			id,
			user_id,
			medication_id,
			schedule_id,
			medication_name,
			scheduled_date,
			scheduled_time,
			status,
			notified_guardian
		FROM medication_logs
		WHERE scheduled_date = $1
		  AND status = 'pending'
		  AND notified_guardian = false
		  AND scheduled_time <= $2
		ORDER BY user_id, scheduled_time
	`

	rows, err := r.db.QueryContext(ctx, query, date, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue logs: %w", err)
	}
	defer rows.Close()

	var logs []models.MedicationLog
	for rows.Next() {
		var log models.MedicationLog
		if err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.MedicationID,
			&log.ScheduleID,
			&log.MedicationName,
			&log.ScheduledDate,
			&log.ScheduledTime,
			&log.Status,
			&log.NotifiedGuardian,
		); err != nil {
			return nil, fmt.Errorf("failed to scan medication log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate medication logs: %w", err)
	}

	return logs, nil
}

// MarkNotified 标记已通知保护人（无论投递结果如何，保证每条记录至多升级一次）
func (r *MedicationLogsRepository) MarkNotified(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE medication_logs
		SET notified_guardian = true
		WHERE id = ANY($1)
	`

	result, err := r.db.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to mark logs notified: %w", err)
	}

	affected, _ := result.RowsAffected()
	r.logger.Debug("Marked medication logs notified",
		zap.Int("requested", len(ids)),
		zap.Int64("affected", affected),
	)

	return nil
}

// MarkMissed 将超过更长阈值仍为 pending 的记录转为 missed
// 该状态转换与通知是否成功无关
func (r *MedicationLogsRepository) MarkMissed(ctx context.Context, seniorID, date, cutoff string) (int64, error) {
	if seniorID == "" {
		return 0, fmt.Errorf("senior_id is required")
	}

	query := `
		UPDATE medication_logs
		SET status = 'missed'
		WHERE scheduled_date = $1
		  AND status = 'pending'
		  AND user_id = $2
		  AND scheduled_time <= $3
	`

	result, err := r.db.ExecContext(ctx, query, date, seniorID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark logs missed: %w", err)
	}

	affected, _ := result.RowsAffected()
	return affected, nil
}
