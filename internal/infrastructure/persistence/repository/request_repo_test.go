package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	"github.com/garyjia/hr-approval/internal/domain/workflow"
	"github.com/garyjia/hr-approval/internal/infrastructure/persistence/sqlite"
)

type requestFixture struct {
	repo     port.RequestRepository
	employee *entity.User
	lead     *entity.User
	db       *sqlite.DB
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()
	db := newTestDB(t)
	users := NewUserRepository(db, zap.NewNop()).(*UserRepository)
	return &requestFixture{
		repo:     NewRequestRepository(db, zap.NewNop()),
		employee: seedUser(t, users, "Emp", "emp@example.com", identity.RoleEmployee),
		lead:     seedUser(t, users, "Lead", "lead@example.com", identity.RoleTeamLead),
		db:       sqlite.NewDB(db, zap.NewNop()),
	}
}

func (f *requestFixture) leave(t *testing.T, status workflow.State) *entity.Request {
	t.Helper()
	lead := f.lead.ID
	req := &entity.Request{
		Type:        entity.RequestTypeLeave,
		RequesterID: f.employee.ID,
		TeamLeadID:  &lead,
		Statuses:    map[workflow.Track]workflow.State{workflow.TrackStatus: status},
		Payload: &entity.LeavePayload{
			ApplicantName: "Emp",
			FromDate:      "2024-05-01",
			ToDate:        "2024-05-03",
			Reason:        "family",
			TotalLeaves:   decimal.NewFromInt(3),
		},
		Stages: &entity.LeaveStages{},
	}
	require.NoError(t, f.repo.Create(context.Background(), req))
	return req
}

func TestRequestRepository_CreateAndGet(t *testing.T) {
	f := newRequestFixture(t)
	created := f.leave(t, workflow.StatePending)
	assert.NotZero(t, created.ID)
	assert.Equal(t, int64(1), created.Version)

	got, err := f.repo.GetByID(context.Background(), entity.RequestTypeLeave, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, workflow.StatePending, got.Status(workflow.TrackStatus))
	require.NotNil(t, got.TeamLeadID)
	assert.Equal(t, f.lead.ID, *got.TeamLeadID)

	payload, ok := got.Payload.(*entity.LeavePayload)
	require.True(t, ok)
	assert.Equal(t, "family", payload.Reason)
	assert.True(t, payload.TotalLeaves.Equal(decimal.NewFromInt(3)))
	assert.IsType(t, &entity.LeaveStages{}, got.Stages)
}

func TestRequestRepository_GetMissing(t *testing.T) {
	f := newRequestFixture(t)

	got, err := f.repo.GetByID(context.Background(), entity.RequestTypeTravel, 42)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = f.repo.GetByID(context.Background(), "payroll", 1)
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func TestRequestRepository_ConveyanceTracks(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	req := &entity.Request{
		Type:        entity.RequestTypeConveyance,
		RequesterID: f.employee.ID,
		Statuses: map[workflow.Track]workflow.State{
			workflow.TrackHR:       workflow.StatePending,
			workflow.TrackAccounts: workflow.StatePending,
		},
		Payload: &entity.ConveyancePayload{
			RequestDate: "2024-05-01",
			ClaimDetails: []entity.ClaimLine{
				{Date: "2024-04-30", From: "Office", To: "Site", Amount: decimal.RequireFromString("120.50")},
			},
		},
		Stages: &entity.ConveyanceStages{},
	}
	require.NoError(t, f.repo.Create(ctx, req))

	req.SetStatus(workflow.TrackHR, workflow.StateSeen)
	req.Version = 2
	req.UpdatedAt = time.Now()
	require.NoError(t, f.repo.UpdateTransition(ctx, req, workflow.TrackHR, workflow.StatePending, 1))

	hrSeen, err := f.repo.List(ctx, entity.RequestTypeConveyance, port.RequestFilter{
		Track:    workflow.TrackHR,
		Statuses: []workflow.State{workflow.StateSeen},
	})
	require.NoError(t, err)
	require.Len(t, hrSeen, 1)
	assert.Equal(t, workflow.StatePending, hrSeen[0].Status(workflow.TrackAccounts))

	accountsSeen, err := f.repo.List(ctx, entity.RequestTypeConveyance, port.RequestFilter{
		Track:    workflow.TrackAccounts,
		Statuses: []workflow.State{workflow.StateSeen},
	})
	require.NoError(t, err)
	assert.Empty(t, accountsSeen)

	_, err = f.repo.List(ctx, entity.RequestTypeConveyance, port.RequestFilter{
		Statuses: []workflow.State{workflow.StateSeen},
	})
	require.NoError(t, err, "first track is used when none is given")

	_, err = f.repo.List(ctx, entity.RequestTypeLeave, port.RequestFilter{
		Track:    workflow.TrackHR,
		Statuses: []workflow.State{workflow.StateSeen},
	})
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func TestRequestRepository_ListFilters(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	first := f.leave(t, workflow.StatePending)
	second := f.leave(t, workflow.StatePendingHRApproval)
	third := f.leave(t, workflow.StatePending)

	pending, err := f.repo.List(ctx, entity.RequestTypeLeave, port.RequestFilter{
		Statuses: []workflow.State{workflow.StatePending},
	})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, third.ID, pending[0].ID)
	assert.Equal(t, first.ID, pending[1].ID)

	lead := f.lead.ID
	other := f.employee.ID
	byLead, err := f.repo.List(ctx, entity.RequestTypeLeave, port.RequestFilter{TeamLeadID: &lead})
	require.NoError(t, err)
	assert.Len(t, byLead, 3)

	none, err := f.repo.List(ctx, entity.RequestTypeLeave, port.RequestFilter{TeamLeadID: &other})
	require.NoError(t, err)
	assert.Empty(t, none)

	byIDs, err := f.repo.List(ctx, entity.RequestTypeLeave, port.RequestFilter{IDs: []int64{first.ID, second.ID}})
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)

	page, err := f.repo.List(ctx, entity.RequestTypeLeave, port.RequestFilter{RequesterID: &other, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)

	travel, err := f.repo.List(ctx, entity.RequestTypeTravel, port.RequestFilter{TeamLeadID: &lead})
	require.NoError(t, err)
	assert.Empty(t, travel, "travel requests are never bound to a team lead")
}

func TestRequestRepository_UpdateTransitionCompareAndSwap(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	req := f.leave(t, workflow.StatePending)

	winner := *req
	winner.Statuses = map[workflow.Track]workflow.State{workflow.TrackStatus: workflow.StatePendingHRApproval}
	winner.Version = 2
	winner.UpdatedAt = time.Now()
	winner.Stages = &entity.LeaveStages{TeamLead: &entity.LeaveTeamLeadStage{Remarks: "ok", By: f.lead.ID}}
	require.NoError(t, f.repo.UpdateTransition(ctx, &winner, workflow.TrackStatus, workflow.StatePending, 1))

	loser := *req
	loser.Statuses = map[workflow.Track]workflow.State{workflow.TrackStatus: workflow.StateRejected}
	loser.Version = 2
	err := f.repo.UpdateTransition(ctx, &loser, workflow.TrackStatus, workflow.StatePending, 1)
	require.Error(t, err)
	assert.True(t, workflow.IsRetryable(err))

	got, err := f.repo.GetByID(ctx, entity.RequestTypeLeave, req.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatePendingHRApproval, got.Status(workflow.TrackStatus))
	assert.Equal(t, int64(2), got.Version)
	stages := got.Stages.(*entity.LeaveStages)
	require.NotNil(t, stages.TeamLead)
	assert.Equal(t, "ok", stages.TeamLead.Remarks)
}

func TestRequestRepository_RejectsUndeclaredState(t *testing.T) {
	f := newRequestFixture(t)
	req := &entity.Request{
		Type:        entity.RequestTypeTravel,
		RequesterID: f.employee.ID,
		Statuses:    map[workflow.Track]workflow.State{workflow.TrackStatus: workflow.StateSeen},
		Payload:     &entity.TravelPayload{Purpose: "x"},
		Stages:      &entity.TravelStages{},
	}
	assert.Error(t, f.repo.Create(context.Background(), req))
}

func TestRequestRepository_TransactionRollback(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	boom := errors.New("boom")

	var createdID int64
	err := f.db.WithTransaction(ctx, func(txCtx context.Context) error {
		inTx := &entity.Request{
			Type:        entity.RequestTypeTravel,
			RequesterID: f.employee.ID,
			Statuses:    map[workflow.Track]workflow.State{workflow.TrackStatus: workflow.StatePendingDirectorApproval},
			Payload:     &entity.TravelPayload{Purpose: "site visit"},
			Stages:      &entity.TravelStages{},
		}
		if err := f.repo.Create(txCtx, inTx); err != nil {
			return err
		}
		createdID = inTx.ID
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NotZero(t, createdID)

	got, err := f.repo.GetByID(ctx, entity.RequestTypeTravel, createdID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRequestRepository_UpdateTransitionLostRace_Mock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRequestRepository(db, zap.NewNop())
	lead := int64(2)
	req := &entity.Request{
		ID:          7,
		Type:        entity.RequestTypeAsset,
		RequesterID: 1,
		TeamLeadID:  &lead,
		Statuses:    map[workflow.Track]workflow.State{workflow.TrackStatus: workflow.StatePendingProcurementApproval},
		Version:     4,
		Stages:      &entity.AssetStages{},
		UpdatedAt:   time.Now(),
	}

	mock.ExpectExec("UPDATE asset_requests SET status = \\?, version = \\?, stage_fields = \\?, updated_at = \\? WHERE id = \\? AND status = \\? AND version = \\?").
		WithArgs(string(workflow.StatePendingProcurementApproval), int64(4), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(7), string(workflow.StatePendingTLApproval), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateTransition(context.Background(), req, workflow.TrackStatus, workflow.StatePendingTLApproval, 3)
	assert.ErrorIs(t, err, workflow.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_ExecError_Mock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRequestRepository(db, zap.NewNop())
	mock.ExpectExec("INSERT INTO travel_requests").WillReturnError(errors.New("disk full"))

	err = repo.Create(context.Background(), &entity.Request{
		Type:        entity.RequestTypeTravel,
		RequesterID: 1,
		Statuses:    map[workflow.Track]workflow.State{workflow.TrackStatus: workflow.StatePendingDirectorApproval},
		Payload:     &entity.TravelPayload{},
		Stages:      &entity.TravelStages{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create request")
	assert.NoError(t, mock.ExpectationsWereMet())
}
