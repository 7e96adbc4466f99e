package workflow

import (
	"fmt"
	"time"

	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

// StageContext is the input of a stage merge
type StageContext struct {
	Actor      identity.Identity
	Transition domainwf.Transition
	Input      map[string]interface{}
	Now        time.Time
}

// Date returns value, or the transition date when value is empty
func (sc StageContext) Date(value string) string {
	if value != "" {
		return value
	}
	return sc.Now.Format(entity.DateLayout)
}

// MergeFunc writes one stage's sub-record into the request's stage fields and
// returns the written sub-record for the audit trail
type MergeFunc func(req *entity.Request, sc StageContext) (interface{}, error)

type stageKey struct {
	track   domainwf.Track
	from    domainwf.State
	trigger domainwf.Trigger
	role    identity.Role
}

type stage struct {
	merge   MergeFunc
	message string
}

// TrackDefinition is one status column of a request type and its machine
type TrackDefinition struct {
	Track   domainwf.Track
	States  domainwf.StateSet
	Start   domainwf.State
	builder domainwf.StateMachineBuilder
}

// Machine builds the track's state machine positioned at state
func (t *TrackDefinition) Machine(state domainwf.State) domainwf.StateMachine {
	return t.builder.Build(state)
}

// Transitions returns every transition of the track
func (t *TrackDefinition) Transitions() []domainwf.Transition {
	return t.builder.Build(t.Start).Transitions()
}

// FinalizedReaders see every record of a type that is terminal on some track
var FinalizedReaders = identity.NewRoleSet(identity.RoleHR, identity.RoleDirector, identity.RoleAdmin)

// SeesFinalized reports whether the actor sees every record terminal on the track
func (t *TrackDefinition) SeesFinalized(actor identity.Identity) bool {
	return actor.Roles.HasAny(FinalizedReaders.Slice()...) || actor.Roles.HasAny(t.GateRoles().Slice()...)
}

// GateRoles returns the roles that act on the track
func (t *TrackDefinition) GateRoles() identity.RoleSet {
	var roles []identity.Role
	for _, tr := range t.Transitions() {
		roles = append(roles, tr.Role)
	}
	return identity.NewRoleSet(roles...)
}

// Definition describes the approval workflow of one request type
type Definition struct {
	Type entity.RequestType

	// Tracks in firing order
	Tracks []*TrackDefinition

	// RequiresTeamLead binds team_lead_id at submission
	RequiresTeamLead bool

	// Readers may view any request of the type besides the requester and bound team lead
	Readers identity.RoleSet

	// Observers are notified of submissions without gating any stage
	Observers []identity.Role

	stages map[stageKey]stage
}

func newDefinition(t entity.RequestType) *Definition {
	return &Definition{
		Type:   t,
		stages: make(map[stageKey]stage),
	}
}

func (d *Definition) addTrack(track domainwf.Track, states domainwf.StateSet, start domainwf.State) *TrackDefinition {
	td := &TrackDefinition{
		Track:   track,
		States:  states,
		Start:   start,
		builder: domainwf.NewBuilder(states),
	}
	d.Tracks = append(d.Tracks, td)
	return td
}

// permit declares a transition together with its stage merge and confirmation message
func (d *Definition) permit(td *TrackDefinition, from domainwf.State, trigger domainwf.Trigger, to domainwf.State, role identity.Role, merge MergeFunc, message string, opts ...domainwf.TransitionOption) {
	td.builder.Configure(from).Permit(trigger, to, role, opts...)
	d.stages[stageKey{track: td.Track, from: from, trigger: trigger, role: role}] = stage{merge: merge, message: message}
}

// Track returns the definition of the named track
func (d *Definition) Track(track domainwf.Track) (*TrackDefinition, bool) {
	for _, td := range d.Tracks {
		if td.Track == track {
			return td, true
		}
	}
	return nil, false
}

// StartStatuses returns the initial status of every track
func (d *Definition) StartStatuses() map[domainwf.Track]domainwf.State {
	out := make(map[domainwf.Track]domainwf.State, len(d.Tracks))
	for _, td := range d.Tracks {
		out[td.Track] = td.Start
	}
	return out
}

// stage returns the merge and message of a fired transition
func (d *Definition) stage(track domainwf.Track, tr domainwf.Transition) (stage, error) {
	s, ok := d.stages[stageKey{track: track, from: tr.From, trigger: tr.Trigger, role: tr.Role}]
	if !ok {
		return stage{}, fmt.Errorf("no stage declared for %s %s %s as %s", d.Type, tr.From, tr.Trigger, tr.Role)
	}
	return s, nil
}

// CanRead reports whether the actor may view the request. A record terminal
// on a track is also readable by whoever lists it as finalized.
func (d *Definition) CanRead(actor identity.Identity, req *entity.Request) bool {
	if actor.IsZero() {
		return false
	}
	if actor.Is(req.RequesterID) {
		return true
	}
	if d.RequiresTeamLead && req.TeamLeadID != nil && actor.Is(*req.TeamLeadID) {
		return true
	}
	if actor.Roles.HasAny(d.Readers.Slice()...) {
		return true
	}
	for _, td := range d.Tracks {
		if td.States.IsTerminal(req.Status(td.Track)) && td.SeesFinalized(actor) {
			return true
		}
	}
	return false
}

// Registry holds the definitions of every request type
type Registry map[entity.RequestType]*Definition

// Get returns the definition of a request type
func (r Registry) Get(t entity.RequestType) (*Definition, error) {
	d, ok := r[t]
	if !ok {
		return nil, fmt.Errorf("%w: unknown request type %q", domainwf.ErrValidation, t)
	}
	return d, nil
}

// DefaultRegistry builds the workflows of all request types
func DefaultRegistry() Registry {
	return Registry{
		entity.RequestTypeLeave:      leaveDefinition(),
		entity.RequestTypePermission: permissionDefinition(),
		entity.RequestTypeTravel:     travelDefinition(),
		entity.RequestTypeConveyance: conveyanceDefinition(),
		entity.RequestTypeAsset:      assetDefinition(),
	}
}
