// Package identity holds the acting caller passed explicitly into every workflow call.
package identity

// Identity is a resolved caller: a user and the roles the directory grants them
type Identity struct {
	UserID int64
	Name   string
	Email  string
	Roles  RoleSet
}

// New creates an identity
func New(userID int64, name string, roles ...Role) Identity {
	return Identity{
		UserID: userID,
		Name:   name,
		Roles:  NewRoleSet(roles...),
	}
}

// IsZero reports whether the identity is unresolved
func (i Identity) IsZero() bool {
	return i.UserID == 0
}

// Is reports whether the identity is the given user
func (i Identity) Is(userID int64) bool {
	return i.UserID != 0 && i.UserID == userID
}
