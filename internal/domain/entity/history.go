package entity

import (
	"time"

	"github.com/garyjia/hr-approval/internal/domain/identity"
	"github.com/garyjia/hr-approval/internal/domain/workflow"
)

// History action recorded when a request is created
const ActionSubmit = "submit"

// RequestHistory is one row of the audit trail of a request
type RequestHistory struct {
	ID             int64          `json:"id"`
	RequestType    RequestType    `json:"request_type"`
	RequestID      int64          `json:"request_id"`
	ActorID        int64          `json:"actor_id"`
	ActorName      string         `json:"actor_name"`
	ActingRole     identity.Role  `json:"acting_role"`
	Track          workflow.Track `json:"track"`
	Action         string         `json:"action"`
	PreviousStatus workflow.State `json:"previous_status"`
	NewStatus      workflow.State `json:"new_status"`
	StageData      string         `json:"stage_data"`
	CreatedAt      time.Time      `json:"created_at"`
}
