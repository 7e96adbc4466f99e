package identity

import (
	"encoding/json"
	"sort"
	"strings"
)

// Role is a role label held by a user
type Role string

const (
	RoleEmployee         Role = "Employee"
	RoleTeamLead         Role = "Team Lead"
	RoleHR               Role = "HR"
	RoleDirector         Role = "Director"
	RoleManagingDirector Role = "Managing Director"
	RoleProcurement      Role = "Procurement"
	RoleAccounts         Role = "Accounts"
	RoleAdmin            Role = "Admin"
)

var knownRoles = map[Role]bool{
	RoleEmployee:         true,
	RoleTeamLead:         true,
	RoleHR:               true,
	RoleDirector:         true,
	RoleManagingDirector: true,
	RoleProcurement:      true,
	RoleAccounts:         true,
	RoleAdmin:            true,
}

// aliases maps lower-cased spellings found in the role directory to canonical roles
var aliases = map[string]Role{
	"md":                RoleManagingDirector,
	"managing director": RoleManagingDirector,
	"team lead":         RoleTeamLead,
	"teamlead":          RoleTeamLead,
	"tl":                RoleTeamLead,
	"hr":                RoleHR,
	"director":          RoleDirector,
	"procurement":       RoleProcurement,
	"accounts":          RoleAccounts,
	"admin":             RoleAdmin,
	"employee":          RoleEmployee,
}

// ParseRole normalizes a role label. Unknown labels are returned as-is
// and reported as not ok.
func ParseRole(s string) (Role, bool) {
	trimmed := strings.TrimSpace(s)
	if r, ok := aliases[strings.ToLower(trimmed)]; ok {
		return r, true
	}
	r := Role(trimmed)
	return r, knownRoles[r]
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is one of the canonical roles
func (r Role) IsValid() bool {
	return knownRoles[r]
}

// RoleSet is an immutable set of roles
type RoleSet struct {
	roles map[Role]struct{}
}

// NewRoleSet builds a set from canonical roles
func NewRoleSet(roles ...Role) RoleSet {
	m := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		m[r] = struct{}{}
	}
	return RoleSet{roles: m}
}

// ParseRoleSet builds a set from raw labels, normalizing known aliases
func ParseRoleSet(labels ...string) RoleSet {
	roles := make([]Role, 0, len(labels))
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			continue
		}
		r, _ := ParseRole(l)
		roles = append(roles, r)
	}
	return NewRoleSet(roles...)
}

// Has reports whether the set contains the role
func (s RoleSet) Has(r Role) bool {
	_, ok := s.roles[r]
	return ok
}

// HasAll reports whether the set contains every given role
func (s RoleSet) HasAll(roles ...Role) bool {
	for _, r := range roles {
		if !s.Has(r) {
			return false
		}
	}
	return true
}

// HasAny reports whether the set contains at least one of the given roles
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Len returns the number of roles
func (s RoleSet) Len() int {
	return len(s.roles)
}

// Slice returns the roles in sorted order
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s.roles))
	for r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the roles as sorted strings
func (s RoleSet) Strings() []string {
	roles := s.Slice()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.String()
	}
	return out
}

// MarshalJSON encodes the set as a sorted list of labels
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes a list of labels
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	*s = ParseRoleSet(labels...)
	return nil
}
