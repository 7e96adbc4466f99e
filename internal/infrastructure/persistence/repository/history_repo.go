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

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.RequestHistory) error {
	query := `
		INSERT INTO request_history (
			request_type, request_id, actor_id, actor_name, acting_role, track,
			action, previous_status, new_status, stage_data, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		string(history.RequestType),
		history.RequestID,
		history.ActorID,
		history.ActorName,
		string(history.ActingRole),
		string(history.Track),
		history.Action,
		string(history.PreviousStatus),
		string(history.NewStatus),
		history.StageData,
		history.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create history record",
			zap.String("request_type", history.RequestType.String()),
			zap.Int64("request_id", history.RequestID),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByRequest retrieves all history records of a request, oldest first
func (r *HistoryRepository) GetByRequest(ctx context.Context, requestType entity.RequestType, requestID int64) ([]*entity.RequestHistory, error) {
	query := `
		SELECT id, request_type, request_id, actor_id, actor_name, acting_role, track,
			action, previous_status, new_status, stage_data, created_at
		FROM request_history
		WHERE request_type = ? AND request_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, string(requestType), requestID)
	if err != nil {
		r.logger.Error("Failed to get history by request",
			zap.String("request_type", requestType.String()),
			zap.Int64("request_id", requestID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := []*entity.RequestHistory{}
	for rows.Next() {
		var record entity.RequestHistory
		err := rows.Scan(
			&record.ID,
			&record.RequestType,
			&record.RequestID,
			&record.ActorID,
			&record.ActorName,
			&record.ActingRole,
			&record.Track,
			&record.Action,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.StageData,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// RequestIDsByActor returns the ids of requests the actor transitioned, most recent first
func (r *HistoryRepository) RequestIDsByActor(ctx context.Context, requestType entity.RequestType, actorID int64) ([]int64, error) {
	query := `
		SELECT request_id
		FROM request_history
		WHERE request_type = ? AND actor_id = ? AND action != ?
		GROUP BY request_id
		ORDER BY MAX(created_at) DESC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, string(requestType), actorID, entity.ActionSubmit)
	if err != nil {
		r.logger.Error("Failed to get requests by actor",
			zap.String("request_type", requestType.String()),
			zap.Int64("actor_id", actorID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get requests by actor: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan request id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
