package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a wallet holder. Its balance is never stored; it is derived by
// summing the customer's non-deleted ledger entries.
type Customer struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Address   string     `json:"address"`
	Phone     string     `json:"phone"`
	BirthDate time.Time  `json:"birth_date"`
	OwnerID   uuid.UUID  `json:"owner_id"` // Owning principal
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// IsDeleted returns true if the customer has been soft-deleted.
func (c *Customer) IsDeleted() bool {
	return c.DeletedAt != nil
}
