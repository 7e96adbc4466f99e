package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/hr-approval/internal/application/dispatcher"
	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/application/workflow"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/event"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

// SubmitCommand carries a new request of any type
type SubmitCommand struct {
	Type    entity.RequestType
	Actor   identity.Identity
	Payload map[string]interface{}
}

// SubmitResult is returned after a request is created
type SubmitResult struct {
	Request *entity.Request
	Message string
}

// RequestService creates requests in their start state
type RequestService interface {
	Submit(ctx context.Context, cmd SubmitCommand) (*SubmitResult, error)
}

type requestServiceImpl struct {
	registry    workflow.Registry
	requestRepo port.RequestRepository
	historyRepo port.HistoryRepository
	users       port.UserDirectory
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	recorder    port.MetricsRecorder
	logger      Logger
	now         func() time.Time
}

// NewRequestService creates a new RequestService. dispatcher and recorder may be nil.
func NewRequestService(
	registry workflow.Registry,
	requestRepo port.RequestRepository,
	historyRepo port.HistoryRepository,
	users port.UserDirectory,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	recorder port.MetricsRecorder,
	logger Logger,
) RequestService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &requestServiceImpl{
		registry:    registry,
		requestRepo: requestRepo,
		historyRepo: historyRepo,
		users:       users,
		txManager:   txManager,
		dispatcher:  d,
		recorder:    recorder,
		logger:      logger,
		now:         time.Now,
	}
}

type submitRefs struct {
	TeamLeadID *int64 `json:"team_lead_id"`
}

// Submit validates the payload, binds the team lead and stores the request
// in the start state of every track
func (s *requestServiceImpl) Submit(ctx context.Context, cmd SubmitCommand) (*SubmitResult, error) {
	if cmd.Actor.IsZero() {
		return nil, domainwf.ErrUnauthenticated
	}

	def, err := s.registry.Get(cmd.Type)
	if err != nil {
		return nil, err
	}

	payload, err := entity.NewPayload(cmd.Type)
	if err != nil {
		return nil, err
	}
	if err := workflow.Decode(cmd.Payload, payload, nil); err != nil {
		return nil, err
	}

	now := s.now()
	payload.Prepare(cmd.Actor.Name, now)
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var refs submitRefs
	if err := workflow.Decode(cmd.Payload, &refs, map[string]string{"team_lead": "team_lead_id"}); err != nil {
		return nil, err
	}

	stages, err := entity.NewStageFields(cmd.Type)
	if err != nil {
		return nil, err
	}

	req := &entity.Request{
		Type:        cmd.Type,
		RequesterID: cmd.Actor.UserID,
		Statuses:    def.StartStatuses(),
		Version:     1,
		Payload:     payload,
		Stages:      stages,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if def.RequiresTeamLead {
		if err := s.checkTeamLead(ctx, refs.TeamLeadID); err != nil {
			return nil, err
		}
		req.TeamLeadID = refs.TeamLeadID
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requestRepo.Create(txCtx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		for _, td := range def.Tracks {
			history := &entity.RequestHistory{
				RequestType: req.Type,
				RequestID:   req.ID,
				ActorID:     cmd.Actor.UserID,
				ActorName:   cmd.Actor.Name,
				Track:       td.Track,
				Action:      entity.ActionSubmit,
				NewStatus:   td.Start,
				CreatedAt:   now,
			}
			if err := s.historyRepo.Create(txCtx, history); err != nil {
				return fmt.Errorf("create history: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		s.logger.Error("Failed to submit request", "error", err, "request_type", cmd.Type, "user_id", cmd.Actor.UserID)
		return nil, err
	}

	s.logger.Info("Request submitted", "request_type", req.Type, "id", req.ID, "user_id", req.RequesterID)

	if s.recorder != nil {
		s.recorder.RecordSubmission(req.Type.String())
	}
	if s.dispatcher != nil {
		evt := event.NewEvent(event.TypeRequestSubmitted, req.Type.String(), req.ID, map[string]interface{}{
			event.KeyAction:    entity.ActionSubmit,
			event.KeyActorID:   cmd.Actor.UserID,
			event.KeyNewStatus: req.DisplayStatus(),
		})
		s.dispatcher.Publish(ctx, evt)
	}

	return &SubmitResult{Request: req, Message: submittedMessage(req.Type)}, nil
}

// checkTeamLead requires a bound user holding the Team Lead role
func (s *requestServiceImpl) checkTeamLead(ctx context.Context, id *int64) error {
	if id == nil || *id == 0 {
		return fmt.Errorf("%w: missing required fields: team_lead_id", domainwf.ErrValidation)
	}
	roles, err := s.users.RolesOf(ctx, *id)
	if err != nil {
		return fmt.Errorf("lookup team lead %d: %w", *id, err)
	}
	if !roles.Has(identity.RoleTeamLead) {
		return fmt.Errorf("%w: user %d is not a team lead", domainwf.ErrValidation, *id)
	}
	return nil
}

func submittedMessage(t entity.RequestType) string {
	if t == entity.RequestTypeAsset {
		return "Indent request submitted successfully!"
	}
	return t.Title() + " submitted successfully!"
}
