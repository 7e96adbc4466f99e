package port

import (
	"context"

	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	"github.com/garyjia/hr-approval/internal/domain/workflow"
)

// RequestFilter narrows a request listing. Zero values do not filter.
type RequestFilter struct {
	Track       workflow.Track
	Statuses    []workflow.State
	RequesterID *int64
	TeamLeadID  *int64
	IDs         []int64
	Limit       int
	Offset      int
}

// RequestRepository defines persistence operations for approval requests of every type
type RequestRepository interface {
	// Create inserts the request and assigns its ID
	Create(ctx context.Context, req *entity.Request) error

	// GetByID returns nil, nil when the request does not exist
	GetByID(ctx context.Context, requestType entity.RequestType, id int64) (*entity.Request, error)

	// List returns requests matching the filter, newest first
	List(ctx context.Context, requestType entity.RequestType, filter RequestFilter) ([]*entity.Request, error)

	// UpdateTransition writes the new status on track together with the stage fields,
	// only if the stored status and version still match. A lost race returns
	// workflow.ErrConcurrentModification.
	UpdateTransition(ctx context.Context, req *entity.Request, track workflow.Track, expected workflow.State, expectedVersion int64) error
}

// HistoryRepository defines persistence operations for the request audit trail
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.RequestHistory) error
	GetByRequest(ctx context.Context, requestType entity.RequestType, requestID int64) ([]*entity.RequestHistory, error)
	// RequestIDsByActor returns the ids of requests the actor transitioned (submissions excluded)
	RequestIDsByActor(ctx context.Context, requestType entity.RequestType, actorID int64) ([]int64, error)
}

// UserDirectory resolves users and their roles
type UserDirectory interface {
	RolesOf(ctx context.Context, userID int64) (identity.RoleSet, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	UsersWithRole(ctx context.Context, role identity.Role) ([]*entity.User, error)
	Create(ctx context.Context, user *entity.User) error
}

// NotificationRepository defines persistence operations for the notification log
type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	UpdateStatus(ctx context.Context, id int64, status string, errorMsg string) error
	MarkSent(ctx context.Context, id int64) error
	ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]*entity.Notification, error)
	// ListRetryable returns the oldest FAILED notifications with fewer than maxAttempts deliveries
	ListRetryable(ctx context.Context, maxAttempts int, limit int) ([]*entity.Notification, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
