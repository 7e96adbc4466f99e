package workflow

import (
	"context"

	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

// TransitionCommand asks the engine to move one request forward or stop it
type TransitionCommand struct {
	Type      entity.RequestType
	RequestID int64
	Actor     identity.Identity
	Action    domainwf.Trigger

	// ActingRole narrows the candidate transitions when the actor holds several roles
	ActingRole identity.Role

	// Payload carries the stage inputs (signatures, comments, line items)
	Payload map[string]interface{}
}

// TransitionResult describes a committed transition
type TransitionResult struct {
	Request        *entity.Request
	Track          domainwf.Track
	Role           identity.Role
	PreviousStatus domainwf.State
	NewStatus      domainwf.State
	Terminal       bool
	Message        string
}

// WorkflowEngine drives requests through their approval chains
type WorkflowEngine interface {
	// AttemptTransition validates and commits one approve or reject action
	AttemptTransition(ctx context.Context, cmd TransitionCommand) (*TransitionResult, error)

	// Registry returns the workflow definitions the engine enforces
	Registry() Registry
}
