package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/hr-approval/internal/domain/entity"
)

func TestNotificationRepository_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db, zap.NewNop())
	ctx := context.Background()

	sent := &entity.Notification{RequestType: entity.RequestTypeLeave, RequestID: 1, RecipientID: 9, Channel: "lark", Message: "Leave request #1: Pending HR Approval"}
	failed := &entity.Notification{RequestType: entity.RequestTypeLeave, RequestID: 2, RecipientID: 9, Channel: "websocket", Message: "Leave request #2: Approved"}
	require.NoError(t, repo.Create(ctx, sent))
	require.NoError(t, repo.Create(ctx, failed))
	assert.Equal(t, entity.NotificationStatusPending, sent.Status)

	require.NoError(t, repo.MarkSent(ctx, sent.ID))
	require.NoError(t, repo.UpdateStatus(ctx, failed.ID, entity.NotificationStatusFailed, "no open id"))

	list, err := repo.ListByRecipient(ctx, 9, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byID := map[int64]*entity.Notification{}
	for _, n := range list {
		byID[n.ID] = n
	}
	assert.Equal(t, entity.NotificationStatusSent, byID[sent.ID].Status)
	assert.NotNil(t, byID[sent.ID].SentAt)
	assert.Equal(t, entity.NotificationStatusFailed, byID[failed.ID].Status)
	assert.Equal(t, "no open id", byID[failed.ID].ErrorMessage)
	assert.Nil(t, byID[failed.ID].SentAt)
	assert.Equal(t, 1, byID[failed.ID].Attempts)

	limited, err := repo.ListByRecipient(ctx, 9, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestNotificationRepository_RejectsUnknownStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db, zap.NewNop())
	ctx := context.Background()

	n := &entity.Notification{RequestType: entity.RequestTypeTravel, RequestID: 1, RecipientID: 1, Channel: "lark", Message: "x"}
	require.NoError(t, repo.Create(ctx, n))
	assert.Error(t, repo.UpdateStatus(ctx, n.ID, "LOST", ""))
}

func TestNotificationRepository_ListRetryable(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db, zap.NewNop())
	ctx := context.Background()

	newFailed := func(requestID int64, attempts int) *entity.Notification {
		n := &entity.Notification{RequestType: entity.RequestTypeLeave, RequestID: requestID, RecipientID: 3, Channel: "lark", Message: "m"}
		require.NoError(t, repo.Create(ctx, n))
		for i := 0; i < attempts; i++ {
			require.NoError(t, repo.UpdateStatus(ctx, n.ID, entity.NotificationStatusFailed, "down"))
		}
		return n
	}

	once := newFailed(1, 1)
	twice := newFailed(2, 2)
	newFailed(3, 3)
	delivered := &entity.Notification{RequestType: entity.RequestTypeLeave, RequestID: 4, RecipientID: 3, Channel: "lark", Message: "m"}
	require.NoError(t, repo.Create(ctx, delivered))
	require.NoError(t, repo.MarkSent(ctx, delivered.ID))

	retryable, err := repo.ListRetryable(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, retryable, 2)
	assert.Equal(t, once.ID, retryable[0].ID)
	assert.Equal(t, twice.ID, retryable[1].ID)
	assert.Equal(t, 2, retryable[1].Attempts)

	require.NoError(t, repo.MarkSent(ctx, once.ID))
	retryable, err = repo.ListRetryable(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, retryable, 1)
	assert.Equal(t, twice.ID, retryable[0].ID)
}
