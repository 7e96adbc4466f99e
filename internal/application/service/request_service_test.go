package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/hr-approval/internal/application/workflow"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/event"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

type submitFixture struct {
	repo     *mockRequestRepo
	history  *mockHistoryRepo
	disp     *mockDispatcher
	recorder *mockRecorder
	svc      RequestService
}

func newSubmitFixture() *submitFixture {
	f := &submitFixture{
		repo:     newMockRequestRepo(),
		history:  &mockHistoryRepo{},
		disp:     &mockDispatcher{},
		recorder: &mockRecorder{},
	}
	svc := NewRequestService(workflow.DefaultRegistry(), f.repo, f.history, directory(), &mockTxManager{}, f.disp, f.recorder, nil)
	svc.(*requestServiceImpl).now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
	f.svc = svc
	return f
}

func TestRequestService_SubmitLeave(t *testing.T) {
	f := newSubmitFixture()

	res, err := f.svc.Submit(context.Background(), SubmitCommand{
		Type:  entity.RequestTypeLeave,
		Actor: userEmployee.Identity(),
		Payload: map[string]interface{}{
			"teamLeadId":    "2",
			"fromDate":      "2025-03-20",
			"toDate":        "2025-03-21",
			"reason":        "family function",
			"total_leaves":  "12",
			"leave_availed": 2.5,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Leave request submitted successfully!", res.Message)

	req := res.Request
	assert.Equal(t, int64(1), req.ID)
	assert.Equal(t, domainwf.StatePending, req.Status(domainwf.TrackStatus))
	assert.Equal(t, int64(1), req.Version)
	require.NotNil(t, req.TeamLeadID)
	assert.Equal(t, userLead.ID, *req.TeamLeadID)

	payload := req.Payload.(*entity.LeavePayload)
	assert.Equal(t, "Asha", payload.ApplicantName)
	assert.Equal(t, "2025-03-14", payload.ApplicantSignDate)
	assert.Equal(t, "2.5", payload.LeaveAvailed.String())

	require.Len(t, f.history.histories, 1)
	assert.Equal(t, entity.ActionSubmit, f.history.histories[0].Action)
	assert.Equal(t, domainwf.StatePending, f.history.histories[0].NewStatus)

	require.Len(t, f.disp.events, 1)
	assert.Equal(t, event.TypeRequestSubmitted, f.disp.events[0].Type)
	assert.Equal(t, []string{"leave"}, f.recorder.submissions)
}

func TestRequestService_SubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		rt      entity.RequestType
		payload map[string]interface{}
		wantErr error
	}{
		{
			name:    "leave missing team lead",
			rt:      entity.RequestTypeLeave,
			payload: map[string]interface{}{"from_date": "2025-03-20", "to_date": "2025-03-21", "reason": "x"},
			wantErr: domainwf.ErrValidation,
		},
		{
			name:    "leave bound to a non team lead",
			rt:      entity.RequestTypeLeave,
			payload: map[string]interface{}{"team_lead_id": 4, "from_date": "2025-03-20", "to_date": "2025-03-21", "reason": "x"},
			wantErr: domainwf.ErrValidation,
		},
		{
			name:    "leave bound to an unknown user",
			rt:      entity.RequestTypeLeave,
			payload: map[string]interface{}{"team_lead_id": 99, "from_date": "2025-03-20", "to_date": "2025-03-21", "reason": "x"},
			wantErr: domainwf.ErrValidation,
		},
		{
			name:    "leave dates reversed",
			rt:      entity.RequestTypeLeave,
			payload: map[string]interface{}{"team_lead_id": 2, "from_date": "2025-03-22", "to_date": "2025-03-21", "reason": "x"},
			wantErr: domainwf.ErrValidation,
		},
		{
			name:    "conveyance without lines",
			rt:      entity.RequestTypeConveyance,
			payload: map[string]interface{}{},
			wantErr: domainwf.ErrValidation,
		},
		{
			name:    "asset bad decimal",
			rt:      entity.RequestTypeAsset,
			payload: map[string]interface{}{"team_lead_id": 2, "discount_amount": "ten"},
			wantErr: domainwf.ErrValidation,
		},
		{
			name:    "unknown type",
			rt:      "payroll",
			payload: map[string]interface{}{},
			wantErr: domainwf.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSubmitFixture()
			_, err := f.svc.Submit(context.Background(), SubmitCommand{Type: tt.rt, Actor: userEmployee.Identity(), Payload: tt.payload})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.repo.requests)
			assert.Empty(t, f.disp.events)
		})
	}
}

func TestRequestService_SubmitConveyanceTracks(t *testing.T) {
	f := newSubmitFixture()

	res, err := f.svc.Submit(context.Background(), SubmitCommand{
		Type:  entity.RequestTypeConveyance,
		Actor: userEmployee.Identity(),
		Payload: map[string]interface{}{
			"claimDetails": []interface{}{
				map[string]interface{}{"date": "2025-03-10", "from": "Office", "to": "Client", "mode": "Auto", "amount": "120.50"},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Conveyance claim submitted successfully!", res.Message)
	assert.Nil(t, res.Request.TeamLeadID)
	assert.Equal(t, domainwf.StatePending, res.Request.Status(domainwf.TrackHR))
	assert.Equal(t, domainwf.StatePending, res.Request.Status(domainwf.TrackAccounts))
	assert.Len(t, f.history.histories, 2)

	payload := res.Request.Payload.(*entity.ConveyancePayload)
	assert.Equal(t, "2025-03-14", payload.RequestDate)
	assert.Equal(t, "120.50", payload.Total().StringFixed(2))
}

func TestRequestService_SubmitFailures(t *testing.T) {
	f := newSubmitFixture()

	_, err := f.svc.Submit(context.Background(), SubmitCommand{Type: entity.RequestTypeTravel})
	assert.ErrorIs(t, err, domainwf.ErrUnauthenticated)

	f.history.createErr = errors.New("disk full")
	_, err = f.svc.Submit(context.Background(), SubmitCommand{
		Type:  entity.RequestTypeTravel,
		Actor: userEmployee.Identity(),
		Payload: map[string]interface{}{
			"company": "Acme", "date": "2025-04-01", "purpose": "audit",
			"journey_details": []interface{}{map[string]interface{}{"from": "Pune", "to": "Delhi", "mode": "Air"}},
		},
	})
	require.Error(t, err)
	assert.Empty(t, f.disp.events)
	assert.Empty(t, f.recorder.submissions)
}
