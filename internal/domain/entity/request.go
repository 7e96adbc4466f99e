package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/hr-approval/internal/domain/workflow"
)

// RequestType identifies one of the approval request variants
type RequestType string

const (
	RequestTypeLeave      RequestType = "leave"
	RequestTypePermission RequestType = "permission"
	RequestTypeTravel     RequestType = "travel"
	RequestTypeConveyance RequestType = "conveyance"
	RequestTypeAsset      RequestType = "asset"
)

// String returns the string representation of the request type
func (t RequestType) String() string {
	return string(t)
}

// IsValid checks if the request type is one of the defined constants
func (t RequestType) IsValid() bool {
	switch t {
	case RequestTypeLeave,
		RequestTypePermission,
		RequestTypeTravel,
		RequestTypeConveyance,
		RequestTypeAsset:
		return true
	default:
		return false
	}
}

// Title returns the human readable name used in messages
func (t RequestType) Title() string {
	switch t {
	case RequestTypeConveyance:
		return "Conveyance claim"
	case RequestTypeAsset:
		return "Asset request"
	default:
		return strings.ToUpper(string(t[:1])) + string(t[1:]) + " request"
	}
}

// ParseRequestType parses a request type path segment. Plural forms and
// the "_requests" suffix used by older clients are accepted.
func ParseRequestType(s string) (RequestType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, "_requests")
	v = strings.TrimSuffix(v, "_request")
	switch v {
	case "leaves":
		v = "leave"
	case "permissions":
		v = "permission"
	case "conveyances":
		v = "conveyance"
	case "assets", "indent":
		v = "asset"
	}
	t := RequestType(v)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: unknown request type %q", workflow.ErrValidation, s)
	}
	return t, nil
}

// AllRequestTypes returns every request type in a stable order
func AllRequestTypes() []RequestType {
	return []RequestType{
		RequestTypeLeave,
		RequestTypePermission,
		RequestTypeTravel,
		RequestTypeConveyance,
		RequestTypeAsset,
	}
}

// Approver reference names bound on a request
const (
	RefRequester = "requester_id"
	RefTeamLead  = "team_lead_id"
)

// Request is one approval request of any type. Payload and Stages hold the
// type-specific records; Statuses holds one state per track.
type Request struct {
	ID          int64                             `json:"id"`
	Type        RequestType                       `json:"type"`
	RequesterID int64                             `json:"requester_id"`
	TeamLeadID  *int64                            `json:"team_lead_id,omitempty"`
	Statuses    map[workflow.Track]workflow.State `json:"statuses"`
	Version     int64                             `json:"version"`
	Payload     Payload                           `json:"payload"`
	Stages      StageFields                       `json:"stage_fields"`
	CreatedAt   time.Time                         `json:"created_at"`
	UpdatedAt   time.Time                         `json:"updated_at"`
}

// Ref returns the user bound under the given approver reference
func (r *Request) Ref(name string) (int64, bool) {
	switch name {
	case RefRequester:
		return r.RequesterID, r.RequesterID != 0
	case RefTeamLead:
		if r.TeamLeadID == nil {
			return 0, false
		}
		return *r.TeamLeadID, true
	default:
		return 0, false
	}
}

// Status returns the state of the request on the given track
func (r *Request) Status(track workflow.Track) workflow.State {
	return r.Statuses[track]
}

// SetStatus sets the state of the request on the given track
func (r *Request) SetStatus(track workflow.Track, state workflow.State) {
	if r.Statuses == nil {
		r.Statuses = make(map[workflow.Track]workflow.State)
	}
	r.Statuses[track] = state
}

// DisplayStatus renders the status for listings. Single-track requests show
// their state; multi-track requests show each track.
func (r *Request) DisplayStatus() string {
	if len(r.Statuses) == 1 {
		for _, s := range r.Statuses {
			return s.String()
		}
	}
	tracks := make([]string, 0, len(r.Statuses))
	for t := range r.Statuses {
		tracks = append(tracks, string(t))
	}
	sort.Strings(tracks)
	parts := make([]string, 0, len(tracks))
	for _, t := range tracks {
		parts = append(parts, fmt.Sprintf("%s: %s", t, r.Statuses[workflow.Track(t)]))
	}
	return strings.Join(parts, ", ")
}
