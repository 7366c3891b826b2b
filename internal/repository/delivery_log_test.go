package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDeliveryLogDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *DeliveryLogRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewDeliveryLogRepository(db, logger)

	return db, mock, repo
}

func TestRecordAttempt_Success(t *testing.T) {
	db, mock, repo := setupMockDeliveryLogDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO delivery_attempts`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.RecordAttempt(ctx, "sms", "01012345678", "sent", "[시니어케어] 복약 알림")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAttempt_MissingFields(t *testing.T) {
	db, mock, repo := setupMockDeliveryLogDB(t)
	defer db.Close()

	ctx := context.Background()

	err := repo.RecordAttempt(ctx, "", "01012345678", "sent", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "channel is required")

	err = repo.RecordAttempt(ctx, "sms", "", "sent", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "recipient is required")

	err = repo.RecordAttempt(ctx, "sms", "01012345678", "", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "outcome is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountSentSince_Success(t *testing.T) {
	db, mock, repo := setupMockDeliveryLogDB(t)
	defer db.Close()

	ctx := context.Background()
	since := time.Now().Add(-180 * time.Second)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(1)

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("sms", "01012345678", since).
		WillReturnRows(rows)

	count, err := repo.CountSentSince(ctx, "sms", "01012345678", since)

	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountSentSince_QueryError(t *testing.T) {
	db, mock, repo := setupMockDeliveryLogDB(t)
	defer db.Close()

	ctx := context.Background()
	since := time.Now().Add(-180 * time.Second)

	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnError(fmt.Errorf("connection refused"))

	count, err := repo.CountSentSince(ctx, "sms", "01012345678", since)

	assert.Error(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, mock.ExpectationsWereMet())
}
