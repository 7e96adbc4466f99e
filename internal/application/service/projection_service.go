package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/application/workflow"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

// Scope names a projection
type Scope string

const (
	ScopePending   Scope = "pending"
	ScopeMine      Scope = "mine"
	ScopeFinalized Scope = "finalized"
	ScopeActed     Scope = "acted"
)

// ParseScope parses a scope query value, defaulting to mine
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "":
		return ScopeMine, nil
	case ScopePending, ScopeMine, ScopeFinalized, ScopeActed:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("%w: unknown scope %q", domainwf.ErrValidation, s)
	}
}

// Page bounds a listing. A zero Limit returns everything.
type Page struct {
	Limit  int
	Offset int
}

// RequestDetail is a request together with its audit trail
type RequestDetail struct {
	Request *entity.Request          `json:"request"`
	History []*entity.RequestHistory `json:"history"`
}

// ProjectionService answers the visibility queries
type ProjectionService interface {
	List(ctx context.Context, scope Scope, actor identity.Identity, requestType entity.RequestType, page Page) ([]*entity.Request, error)
	Pending(ctx context.Context, actor identity.Identity, requestType entity.RequestType, page Page) ([]*entity.Request, error)
	Mine(ctx context.Context, actor identity.Identity, requestType entity.RequestType, page Page) ([]*entity.Request, error)
	Finalized(ctx context.Context, actor identity.Identity, requestType entity.RequestType, page Page) ([]*entity.Request, error)
	Acted(ctx context.Context, actor identity.Identity, requestType entity.RequestType, page Page) ([]*entity.Request, error)
	Get(ctx context.Context, actor identity.Identity, requestType entity.RequestType, id int64) (*RequestDetail, error)
}

type projectionServiceImpl struct {
	registry    workflow.Registry
	requestRepo port.RequestRepository
	historyRepo port.HistoryRepository
	logger      Logger
}

// NewProjectionService creates a new ProjectionService
func NewProjectionService(
	registry workflow.Registry,
	requestRepo port.RequestRepository,
	historyRepo port.HistoryRepository,
	logger Logger,
) ProjectionService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &projectionServiceImpl{
		registry:    registry,
		requestRepo: requestRepo,
		historyRepo: historyRepo,
		logger:      logger,
	}
}

// List dispatches to the named projection
func (s *projectionServiceImpl) List(ctx context.Context, scope Scope, actor identity.Identity, requestType entity.RequestType, page Page) ([]*entity.Request, error) {
	switch scope {
	case ScopePending:
		return s.Pending(ctx, actor, requestType, page)
	case ScopeMine:
		return s.Mine(ctx, actor, requestType, page)
	case ScopeFinalized:
		return s.Finalized(ctx, actor, requestType, page)
	case ScopeActed:
		return s.Acted(ctx, actor, requestType, page)
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", domainwf.ErrValidation, scope)
	}
}

// Pending returns records awaiting an action the actor can perform
func (s *projectionServiceImpl) Pending(ctx context.Context, actor identity.Identity, requestType entity.RequestType, page Page) ([]*entity.Request, error) {
	def, err := s.prepare(actor, requestType)
	if err != nil {
		return nil, err
	}

	var filters []port.RequestFilter
	for _, td := range def.Tracks {
		open, scoped := actionableStates(td, actor)
		if len(open) > 0 {
			filters = append(filters, port.RequestFilter{Track: td.Track, Statuses: open})
		}
		if len(scoped) > 0 {
			owner := actor.UserID
			filters = append(filters, port.RequestFilter{Track: td.Track, Statuses: scoped, TeamLeadID: &owner})
		}
	}

	return s.union(ctx, requestType, filters, page)
}

// actionableStates splits the states the actor can act on into those open to
// any holder of the role and those scoped to the bound owner
func actionableStates(td *workflow.TrackDefinition, actor identity.Identity) (open, scoped []domainwf.State) {
	openSet := make(map[domainwf.State]bool)
	scopedSet := make(map[domainwf.State]bool)
	for _, tr := range td.Transitions() {
		if !actor.Roles.Has(tr.Role) || !actor.Roles.HasAll(tr.AlsoRequires...) {
			continue
		}
		if tr.IsOwnershipScoped() {
			scopedSet[tr.From] = true
		} else {
			openSet[tr.From] = true
		}
	}
	for _, st := range td.States.States() {
		switch {
		case openSet[st]:
			open = append(open, st)
		case scopedSet[st]:
			scoped = append(scoped, st)
		}
	}
	return open, scoped
}

// Mine returns the actor's own submissions
func (s *projectionServiceImpl) Mine(ctx context.Context, actor identity.Identity, requestType entity.RequestType, page Page) ([]*entity.Request, error) {
	if _, err := s.prepare(actor, requestType); err != nil {
		return nil, err
	}
	requester := actor.UserID
	return s.union(ctx, requestType, []port.RequestFilter{{RequesterID: &requester}}, page)
}

// Finalized returns records terminal on some track. Broad readers and the
// roles gating a track see all of them; others see only their own.
func (s *projectionServiceImpl) Finalized(ctx context.Context, actor identity.Identity, requestType entity.RequestType, page Page) ([]*entity.Request, error) {
	def, err := s.prepare(actor, requestType)
	if err != nil {
		return nil, err
	}

	var filters []port.RequestFilter
	for _, td := range def.Tracks {
		f := port.RequestFilter{Track: td.Track, Statuses: td.States.Terminal()}
		if !td.SeesFinalized(actor) {
			requester := actor.UserID
			f.RequesterID = &requester
		}
		filters = append(filters, f)
	}

	return s.union(ctx, requestType, filters, page)
}

// Acted returns the records the actor has transitioned
func (s *projectionServiceImpl) Acted(ctx context.Context, actor identity.Identity, requestType entity.RequestType, page Page) ([]*entity.Request, error) {
	if _, err := s.prepare(actor, requestType); err != nil {
		return nil, err
	}

	ids, err := s.historyRepo.RequestIDsByActor(ctx, requestType, actor.UserID)
	if err != nil {
		s.logger.Error("Failed to load acted requests", "error", err, "request_type", requestType, "user_id", actor.UserID)
		return nil, fmt.Errorf("list acted requests: %w", err)
	}
	if len(ids) == 0 {
		return []*entity.Request{}, nil
	}

	return s.union(ctx, requestType, []port.RequestFilter{{IDs: ids}}, page)
}

// Get returns the record and its history when the actor may read it
func (s *projectionServiceImpl) Get(ctx context.Context, actor identity.Identity, requestType entity.RequestType, id int64) (*RequestDetail, error) {
	def, err := s.prepare(actor, requestType)
	if err != nil {
		return nil, err
	}

	req, err := s.requestRepo.GetByID(ctx, requestType, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s request %d", domainwf.ErrNotFound, requestType, id)
	}
	if !def.CanRead(actor, req) {
		return nil, fmt.Errorf("%w: user %d cannot view %s request %d", domainwf.ErrUnauthorized, actor.UserID, requestType, id)
	}

	history, err := s.historyRepo.GetByRequest(ctx, requestType, id)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	return &RequestDetail{Request: req, History: history}, nil
}

func (s *projectionServiceImpl) prepare(actor identity.Identity, requestType entity.RequestType) (*workflow.Definition, error) {
	if actor.IsZero() {
		return nil, domainwf.ErrUnauthenticated
	}
	return s.registry.Get(requestType)
}

// union runs every filter, removes duplicates and orders newest first. Each
// filter is capped at Offset+Limit rows since the repository returns them in
// the same order.
func (s *projectionServiceImpl) union(ctx context.Context, requestType entity.RequestType, filters []port.RequestFilter, page Page) ([]*entity.Request, error) {
	seen := make(map[int64]bool)
	out := []*entity.Request{}
	for _, f := range filters {
		if page.Limit > 0 {
			f.Limit = page.Offset + page.Limit
			f.Offset = 0
		}
		rows, err := s.requestRepo.List(ctx, requestType, f)
		if err != nil {
			s.logger.Error("Failed to list requests", "error", err, "request_type", requestType)
			return nil, fmt.Errorf("list requests: %w", err)
		}
		for _, r := range rows {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return paginate(out, page), nil
}

func paginate(rows []*entity.Request, page Page) []*entity.Request {
	if page.Offset > 0 {
		if page.Offset >= len(rows) {
			return []*entity.Request{}
		}
		rows = rows[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(rows) {
		rows = rows[:page.Limit]
	}
	return rows
}
