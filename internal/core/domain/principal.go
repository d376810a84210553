package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a coarse permission group attached to a principal.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Principal is an authenticated identity. A principal owns at most one
// customer record.
type Principal struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole returns true if the principal carries the given role.
func (p *Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin returns true if the principal carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}
