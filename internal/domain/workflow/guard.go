package workflow

import (
	"context"

	"github.com/garyjia/hr-approval/internal/domain/identity"
)

// Subject is the record a transition is evaluated against. Ref returns an
// approver reference bound on the record at submission (e.g. "team_lead_id").
type Subject interface {
	Ref(name string) (int64, bool)
}

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context, actor identity.Identity, subject Subject) bool

// TransitionOption configures a single permitted transition
type TransitionOption func(*Transition)

// OwnedBy scopes the transition to the user bound under ref on the subject
func OwnedBy(ref string) TransitionOption {
	return func(t *Transition) {
		t.Owner = ref
	}
}

// AlsoRequires demands additional roles besides the acting role
func AlsoRequires(roles ...identity.Role) TransitionOption {
	return func(t *Transition) {
		t.AlsoRequires = append(t.AlsoRequires, roles...)
	}
}

// When attaches an arbitrary guard
func When(guard GuardFunc) TransitionOption {
	return func(t *Transition) {
		t.guard = guard
	}
}

// Transition is one permitted edge of a machine
type Transition struct {
	From         State
	To           State
	Trigger      Trigger
	Role         identity.Role
	Owner        string
	AlsoRequires []identity.Role

	guard GuardFunc
}

// Authorize evaluates the role, ownership and guard conditions for the actor
func (t Transition) Authorize(ctx context.Context, actor identity.Identity, subject Subject) bool {
	if !actor.Roles.Has(t.Role) {
		return false
	}
	if !actor.Roles.HasAll(t.AlsoRequires...) {
		return false
	}
	if t.Owner != "" {
		if subject == nil {
			return false
		}
		ref, ok := subject.Ref(t.Owner)
		if !ok || !actor.Is(ref) {
			return false
		}
	}
	if t.guard != nil && !t.guard(ctx, actor, subject) {
		return false
	}
	return true
}

// IsOwnershipScoped reports whether the transition is bound to a specific approver
func (t Transition) IsOwnershipScoped() bool {
	return t.Owner != ""
}
