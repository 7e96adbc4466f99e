package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/workflow"
	"github.com/garyjia/hr-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// requestTable describes the table of one request type
type requestTable struct {
	name        string
	hasTeamLead bool
	tracks      []workflow.Track
}

var requestTables = map[entity.RequestType]requestTable{
	entity.RequestTypeLeave:      {name: "leave_requests", hasTeamLead: true, tracks: []workflow.Track{workflow.TrackStatus}},
	entity.RequestTypePermission: {name: "permission_requests", hasTeamLead: true, tracks: []workflow.Track{workflow.TrackStatus}},
	entity.RequestTypeTravel:     {name: "travel_requests", tracks: []workflow.Track{workflow.TrackStatus}},
	entity.RequestTypeConveyance: {name: "conveyance_requests", tracks: []workflow.Track{workflow.TrackHR, workflow.TrackAccounts}},
	entity.RequestTypeAsset:      {name: "asset_requests", hasTeamLead: true, tracks: []workflow.Track{workflow.TrackStatus}},
}

func tableFor(t entity.RequestType) (requestTable, error) {
	tbl, ok := requestTables[t]
	if !ok {
		return requestTable{}, fmt.Errorf("%w: unknown request type %q", workflow.ErrValidation, t)
	}
	return tbl, nil
}

func (t requestTable) hasTrack(track workflow.Track) bool {
	for _, tr := range t.tracks {
		if tr == track {
			return true
		}
	}
	return false
}

func (t requestTable) columns() string {
	cols := []string{"id", "requester_id"}
	if t.hasTeamLead {
		cols = append(cols, "team_lead_id")
	}
	for _, tr := range t.tracks {
		cols = append(cols, string(tr))
	}
	cols = append(cols, "version", "payload", "stage_fields", "created_at", "updated_at")
	return strings.Join(cols, ", ")
}

// RequestRepository implements port.RequestRepository over one table per request type
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new request and assigns its ID
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	tbl, err := tableFor(req.Type)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	stages, err := json.Marshal(req.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stage fields: %w", err)
	}

	now := time.Now()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	if req.Version == 0 {
		req.Version = 1
	}

	cols := []string{"requester_id"}
	args := []interface{}{req.RequesterID}
	if tbl.hasTeamLead {
		cols = append(cols, "team_lead_id")
		args = append(args, req.TeamLeadID)
	}
	for _, tr := range tbl.tracks {
		cols = append(cols, string(tr))
		args = append(args, string(req.Status(tr)))
	}
	cols = append(cols, "version", "payload", "stage_fields", "created_at", "updated_at")
	args = append(args, req.Version, string(payload), string(stages), req.CreatedAt, req.UpdatedAt)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tbl.name, strings.Join(cols, ", "), placeholders(len(cols)))

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to create request",
			zap.String("request_type", req.Type.String()),
			zap.Int64("requester_id", req.RequesterID),
			zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// GetByID retrieves a request by ID; nil, nil when it does not exist
func (r *RequestRepository) GetByID(ctx context.Context, requestType entity.RequestType, id int64) (*entity.Request, error) {
	tbl, err := tableFor(requestType)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", tbl.columns(), tbl.name)
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to get request by ID",
			zap.String("request_type", requestType.String()),
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanRequest(rows, requestType, tbl)
}

// List returns requests matching the filter, newest first
func (r *RequestRepository) List(ctx context.Context, requestType entity.RequestType, filter port.RequestFilter) ([]*entity.Request, error) {
	tbl, err := tableFor(requestType)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []interface{}
	)
	if len(filter.Statuses) > 0 {
		track := filter.Track
		if track == "" {
			track = tbl.tracks[0]
		}
		if !tbl.hasTrack(track) {
			return nil, fmt.Errorf("%w: %s has no track %q", workflow.ErrValidation, requestType, track)
		}
		where = append(where, fmt.Sprintf("%s IN (%s)", track, placeholders(len(filter.Statuses))))
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if filter.RequesterID != nil {
		where = append(where, "requester_id = ?")
		args = append(args, *filter.RequesterID)
	}
	if filter.TeamLeadID != nil {
		if !tbl.hasTeamLead {
			return []*entity.Request{}, nil
		}
		where = append(where, "team_lead_id = ?")
		args = append(args, *filter.TeamLeadID)
	}
	if len(filter.IDs) > 0 {
		where = append(where, fmt.Sprintf("id IN (%s)", placeholders(len(filter.IDs))))
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}

	query := fmt.Sprintf("SELECT %s FROM %s", tbl.columns(), tbl.name)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests",
			zap.String("request_type", requestType.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := []*entity.Request{}
	for rows.Next() {
		req, err := scanRequest(rows, requestType, tbl)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// UpdateTransition writes the new track status and stage fields if the
// stored status and version still match
func (r *RequestRepository) UpdateTransition(ctx context.Context, req *entity.Request, track workflow.Track, expected workflow.State, expectedVersion int64) error {
	tbl, err := tableFor(req.Type)
	if err != nil {
		return err
	}
	if !tbl.hasTrack(track) {
		return fmt.Errorf("%w: %s has no track %q", workflow.ErrValidation, req.Type, track)
	}

	stages, err := json.Marshal(req.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stage fields: %w", err)
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s = ?, version = ?, stage_fields = ?, updated_at = ? WHERE id = ? AND %s = ? AND version = ?",
		tbl.name, track, track)

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		string(req.Status(track)),
		req.Version,
		string(stages),
		req.UpdatedAt,
		req.ID,
		string(expected),
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update request transition",
			zap.String("request_type", req.Type.String()),
			zap.Int64("id", req.ID),
			zap.String("track", track.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		r.logger.Info("Transition lost a concurrent update",
			zap.String("request_type", req.Type.String()),
			zap.Int64("id", req.ID),
			zap.String("expected_status", expected.String()),
			zap.Int64("expected_version", expectedVersion))
		return fmt.Errorf("%w: %s request %d changed since it was read", workflow.ErrConcurrentModification, req.Type, req.ID)
	}

	return nil
}

func scanRequest(rows *sql.Rows, requestType entity.RequestType, tbl requestTable) (*entity.Request, error) {
	req := &entity.Request{
		Type:     requestType,
		Statuses: make(map[workflow.Track]workflow.State, len(tbl.tracks)),
	}

	var (
		teamLead sql.NullInt64
		payload  string
		stages   string
	)
	dest := []interface{}{&req.ID, &req.RequesterID}
	if tbl.hasTeamLead {
		dest = append(dest, &teamLead)
	}
	statuses := make([]string, len(tbl.tracks))
	for i := range tbl.tracks {
		dest = append(dest, &statuses[i])
	}
	dest = append(dest, &req.Version, &payload, &stages, &req.CreatedAt, &req.UpdatedAt)

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}

	if teamLead.Valid {
		id := teamLead.Int64
		req.TeamLeadID = &id
	}
	for i, tr := range tbl.tracks {
		req.Statuses[tr] = workflow.State(statuses[i])
	}

	p, err := entity.NewPayload(requestType)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload of %s request %d: %w", requestType, req.ID, err)
	}
	s, err := entity.NewStageFields(requestType)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stages), s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stage fields of %s request %d: %w", requestType, req.ID, err)
	}
	req.Payload, req.Stages = p, s

	return req, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// getExecutor returns appropriate executor based on context
func (r *RequestRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
