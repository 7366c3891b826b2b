package repository

import (
	"context"
	"database/sql"
	"fmt"

	"seniorcare-notify/internal/models"

	"go.uber.org/zap"
)

// GuardiansRepository 保护人目录仓库（profiles 表）
type GuardiansRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewGuardiansRepository 创建保护人目录仓库
func NewGuardiansRepository(db *sql.DB, logger *zap.Logger) *GuardiansRepository {
	return &GuardiansRepository{
		db:     db,
		logger: logger,
	}
}

// FindGuardiansOf 查询老人的保护人列表
func (r *GuardiansRepository) FindGuardiansOf(ctx context.Context, seniorID string) ([]models.Guardian, error) {
	if seniorID == "" {
		return nil, fmt.Errorf("senior_id is required")
	}

	query := `
		SELECT id, name, COALESCE(phone, ''), COALESCE(push_token, '')
		FROM profiles
		WHERE linked_to = $1
		  AND role = 'guardian'
	`

	rows, err := r.db.QueryContext(ctx, query, seniorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query guardians: %w", err)
	}
	defer rows.Close()

	var guardians []models.Guardian
	for rows.Next() {
		var g models.Guardian
		if err := rows.Scan(&g.ID, &g.Name, &g.Phone, &g.PushToken); err != nil {
			return nil, fmt.Errorf("failed to scan guardian: %w", err)
		}
		guardians = append(guardians, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate guardians: %w", err)
	}

	return guardians, nil
}

// GetSeniorName 查询老人姓名（用于通知文案）
func (r *GuardiansRepository) GetSeniorName(ctx context.Context, seniorID string) (string, error) {
	if seniorID == "" {
		return "", fmt.Errorf("senior_id is required")
	}

	query := `
		SELECT name
		FROM profiles
		WHERE id = $1
		  AND role = 'senior'
	`

	var name string
	err := r.db.QueryRowContext(ctx, query, seniorID).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("senior not found: %s", seniorID)
		}
		return "", fmt.Errorf("failed to query senior name: %w", err)
	}

	return name, nil
}
