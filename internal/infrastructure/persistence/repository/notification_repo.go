package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new notification record
func (r *NotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			request_type, request_id, recipient_id, channel, message,
			status, error_message, sent_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	if notification.Status == "" {
		notification.Status = entity.NotificationStatusPending
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		string(notification.RequestType),
		notification.RequestID,
		notification.RecipientID,
		notification.Channel,
		notification.Message,
		notification.Status,
		notification.ErrorMessage,
		notification.SentAt,
		notification.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.Int64("request_id", notification.RequestID),
			zap.Int64("recipient_id", notification.RecipientID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	notification.ID = id
	return nil
}

// UpdateStatus records the outcome of a delivery attempt
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id int64, status string, errorMsg string) error {
	query := `
		UPDATE notifications
		SET status = ?, error_message = ?, attempts = attempts + 1
		WHERE id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, status, errorMsg, id)
	if err != nil {
		r.logger.Error("Failed to update notification status",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update status: %w", err)
	}

	return nil
}

// MarkSent marks notification as sent
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE notifications
		SET status = 'SENT', error_message = '', sent_at = ?, attempts = attempts + 1
		WHERE id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to mark notification as sent",
			zap.Int64("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to mark sent: %w", err)
	}

	return nil
}

// ListByRecipient returns the newest notifications of a user
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]*entity.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		r.logger.Error("Failed to list notifications",
			zap.Int64("recipient_id", recipientID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// ListRetryable returns the oldest failed notifications still under maxAttempts
func (r *NotificationRepository) ListRetryable(ctx context.Context, maxAttempts int, limit int) ([]*entity.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE status = 'FAILED' AND attempts < ?
		ORDER BY id ASC
		LIMIT ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, maxAttempts, limit)
	if err != nil {
		r.logger.Error("Failed to list retryable notifications",
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list retryable notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

const notificationColumns = `id, request_type, request_id, recipient_id, channel, message,
			status, error_message, attempts, sent_at, created_at`

func scanNotifications(rows *sql.Rows) ([]*entity.Notification, error) {
	notifications := []*entity.Notification{}
	for rows.Next() {
		var n entity.Notification
		var sentAt sql.NullTime
		err := rows.Scan(
			&n.ID,
			&n.RequestType,
			&n.RequestID,
			&n.RecipientID,
			&n.Channel,
			&n.Message,
			&n.Status,
			&n.ErrorMessage,
			&n.Attempts,
			&sentAt,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if sentAt.Valid {
			n.SentAt = &sentAt.Time
		}
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *NotificationRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
