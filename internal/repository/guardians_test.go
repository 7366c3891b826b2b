package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockGuardiansDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *GuardiansRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewGuardiansRepository(db, logger)

	return db, mock, repo
}

func TestFindGuardiansOf_Success(t *testing.T) {
	db, mock, repo := setupMockGuardiansDB(t)
	defer db.Close()

	ctx := context.Background()
	seniorID := uuid.New().String()
	guardianID := uuid.New().String()

	rows := sqlmock.NewRows([]string{"id", "name", "phone", "push_token"}).
		AddRow(guardianID, "김보호", "010-1234-5678", "fcm-token-abc").
		AddRow(uuid.New().String(), "이보호", "010-9876-5432", "")

	mock.ExpectQuery(`SELECT`).
		WithArgs(seniorID).
		WillReturnRows(rows)

	guardians, err := repo.FindGuardiansOf(ctx, seniorID)

	require.NoError(t, err)
	require.Len(t, guardians, 2)
	assert.Equal(t, guardianID, guardians[0].ID)
	assert.Equal(t, "김보호", guardians[0].Name)
	assert.Equal(t, "010-1234-5678", guardians[0].Phone)
	assert.Equal(t, "fcm-token-abc", guardians[0].PushToken)
	// 未注册 Push 的保护人 push_token 为空字符串
	assert.Equal(t, "", guardians[1].PushToken)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindGuardiansOf_NoGuardians(t *testing.T) {
	db, mock, repo := setupMockGuardiansDB(t)
	defer db.Close()

	ctx := context.Background()
	seniorID := uuid.New().String()

	rows := sqlmock.NewRows([]string{"id", "name", "phone", "push_token"})

	mock.ExpectQuery(`SELECT`).
		WithArgs(seniorID).
		WillReturnRows(rows)

	guardians, err := repo.FindGuardiansOf(ctx, seniorID)

	require.NoError(t, err)
	assert.Empty(t, guardians)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindGuardiansOf_MissingSeniorID(t *testing.T) {
	db, mock, repo := setupMockGuardiansDB(t)
	defer db.Close()

	ctx := context.Background()

	guardians, err := repo.FindGuardiansOf(ctx, "")

	assert.Error(t, err)
	assert.Nil(t, guardians)
	assert.Contains(t, err.Error(), "senior_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSeniorName_Success(t *testing.T) {
	db, mock, repo := setupMockGuardiansDB(t)
	defer db.Close()

	ctx := context.Background()
	seniorID := uuid.New().String()

	rows := sqlmock.NewRows([]string{"name"}).AddRow("박어르신")

	mock.ExpectQuery(`SELECT`).
		WithArgs(seniorID).
		WillReturnRows(rows)

	name, err := repo.GetSeniorName(ctx, seniorID)

	require.NoError(t, err)
	assert.Equal(t, "박어르신", name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSeniorName_NotFound(t *testing.T) {
	db, mock, repo := setupMockGuardiansDB(t)
	defer db.Close()

	ctx := context.Background()
	seniorID := uuid.New().String()

	mock.ExpectQuery(`SELECT`).
		WithArgs(seniorID).
		WillReturnError(sql.ErrNoRows)

	name, err := repo.GetSeniorName(ctx, seniorID)

	assert.Error(t, err)
	assert.Equal(t, "", name)
	assert.Contains(t, err.Error(), "not found")

	require.NoError(t, mock.ExpectationsWereMet())
}
