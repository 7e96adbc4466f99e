package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/hr-approval/internal/application/dispatcher"
	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/event"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	registry    Registry
	requestRepo port.RequestRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	recorder    port.MetricsRecorder
	now         func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r port.MetricsRecorder) EngineOption {
	return func(e *engineImpl) {
		e.recorder = r
	}
}

// WithClock overrides the transition clock
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithRegistry replaces the default workflow definitions
func WithRegistry(r Registry) EngineOption {
	return func(e *engineImpl) {
		e.registry = r
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	requestRepo port.RequestRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		registry:    DefaultRegistry(),
		requestRepo: requestRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Registry returns the workflow definitions
func (e *engineImpl) Registry() Registry {
	return e.registry
}

// AttemptTransition validates and commits one approve or reject action
func (e *engineImpl) AttemptTransition(ctx context.Context, cmd TransitionCommand) (result *TransitionResult, err error) {
	defer func() {
		if e.recorder != nil {
			outcome := "ok"
			if err != nil {
				outcome = domainwf.Kind(err)
			}
			e.recorder.RecordTransition(cmd.Type.String(), cmd.Action.String(), outcome)
		}
	}()

	if cmd.Actor.IsZero() {
		return nil, domainwf.ErrUnauthenticated
	}

	def, err := e.registry.Get(cmd.Type)
	if err != nil {
		return nil, err
	}

	req, err := e.requestRepo.GetByID(ctx, cmd.Type, cmd.RequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s request %d: %w", cmd.Type, cmd.RequestID, err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s request %d", domainwf.ErrNotFound, cmd.Type, cmd.RequestID)
	}

	// Collect the tracks on which the action is defined at their current state
	var candidates []*TrackDefinition
	for _, td := range def.Tracks {
		state := req.Status(td.Track)
		if !td.States.IsValid(state) {
			return nil, fmt.Errorf("%s request %d %s: %w: %q", cmd.Type, req.ID, td.Track, domainwf.ErrInvalidState, state)
		}
		m := td.Machine(state)
		if !m.IsTerminal() && m.CanFire(cmd.Action) {
			candidates = append(candidates, td)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: cannot %s %s request %d in status %s",
			domainwf.ErrInvalidTransition, cmd.Action, cmd.Type, req.ID, req.DisplayStatus())
	}

	var fireOpts []domainwf.FireOption
	if cmd.ActingRole != "" {
		fireOpts = append(fireOpts, domainwf.AsRole(cmd.ActingRole))
	}

	var (
		track   *TrackDefinition
		fired   domainwf.Transition
		fireErr error
	)
	for _, td := range candidates {
		m := td.Machine(req.Status(td.Track))
		tr, err := m.Fire(ctx, cmd.Action, cmd.Actor, req, fireOpts...)
		if err == nil {
			track, fired = td, tr
			break
		}
		fireErr = err
	}
	if track == nil {
		if errors.Is(fireErr, domainwf.ErrUnauthorized) && actorTracksClosed(def, req, cmd.Actor) {
			return nil, fmt.Errorf("%w: cannot %s %s request %d in status %s",
				domainwf.ErrInvalidTransition, cmd.Action, cmd.Type, req.ID, req.DisplayStatus())
		}
		return nil, fireErr
	}

	st, err := def.stage(track.Track, fired)
	if err != nil {
		return nil, err
	}

	now := e.now()
	written, err := st.merge(req, StageContext{
		Actor:      cmd.Actor,
		Transition: fired,
		Input:      cmd.Payload,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	stageData, err := json.Marshal(written)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stage data: %w", err)
	}

	expectedVersion := req.Version
	req.SetStatus(track.Track, fired.To)
	req.Version = expectedVersion + 1
	req.UpdatedAt = now

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.requestRepo.UpdateTransition(txCtx, req, track.Track, fired.From, expectedVersion); err != nil {
			if errors.Is(err, domainwf.ErrConcurrentModification) {
				return err
			}
			return fmt.Errorf("failed to update request status: %w", err)
		}

		history := &entity.RequestHistory{
			RequestType:    req.Type,
			RequestID:      req.ID,
			ActorID:        cmd.Actor.UserID,
			ActorName:      cmd.Actor.Name,
			ActingRole:     fired.Role,
			Track:          track.Track,
			Action:         fired.Trigger.String(),
			PreviousStatus: fired.From,
			NewStatus:      fired.To,
			StageData:      string(stageData),
			CreatedAt:      now,
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	result = &TransitionResult{
		Request:        req,
		Track:          track.Track,
		Role:           fired.Role,
		PreviousStatus: fired.From,
		NewStatus:      fired.To,
		Terminal:       track.States.IsTerminal(fired.To),
		Message:        st.message,
	}

	if e.dispatcher != nil {
		evt := event.NewEvent(event.TypeRequestTransitioned, req.Type.String(), req.ID, map[string]interface{}{
			event.KeyTrack:          track.Track.String(),
			event.KeyAction:         fired.Trigger.String(),
			event.KeyActorID:        cmd.Actor.UserID,
			event.KeyActingRole:     fired.Role.String(),
			event.KeyPreviousStatus: fired.From.String(),
			event.KeyNewStatus:      fired.To.String(),
			event.KeyMessage:        st.message,
			event.KeyTerminal:       result.Terminal,
		})
		// Notification failures never reach the caller
		e.dispatcher.Publish(ctx, evt)
	}

	return result, nil
}

// actorTracksClosed reports whether every track gated by one of the actor's
// roles has already reached a terminal state
func actorTracksClosed(def *Definition, req *entity.Request, actor identity.Identity) bool {
	gated := false
	for _, td := range def.Tracks {
		if !actor.Roles.HasAny(td.GateRoles().Slice()...) {
			continue
		}
		gated = true
		if !td.States.IsTerminal(req.Status(td.Track)) {
			return false
		}
	}
	return gated
}
