package entity

import (
	"time"

	"github.com/garyjia/hr-approval/internal/domain/identity"
)

// User is an entry of the role directory
type User struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	LarkOpenID string           `json:"lark_open_id,omitempty"`
	Roles      identity.RoleSet `json:"roles"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Identity returns the caller identity of the user
func (u *User) Identity() identity.Identity {
	return identity.Identity{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Roles:  u.Roles,
	}
}
