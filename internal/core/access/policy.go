// Package access holds the single policy-evaluation point for the service.
// Every request-level authorization decision funnels through Authorize so the
// policy can be tested without any transport layer.
package access

import (
	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/pkg/apperror"

	"github.com/google/uuid"
)

// Action identifies an operation a principal may attempt on a resource.
type Action string

const (
	ActionCreateCustomer Action = "customer:create"
	ActionReadCustomer   Action = "customer:read"
	ActionUpdateCustomer Action = "customer:update"
	ActionDeleteCustomer Action = "customer:delete"
	ActionReadLedger     Action = "ledger:read"
	ActionMoveFunds      Action = "ledger:move"
	ActionReverseEntry   Action = "ledger:reverse"
	ActionListAllEntries Action = "ledger:list_all"
)

// Authorize evaluates the policy for a principal attempting an action on a
// resource owned by ownerID. Ownership must come from the loaded record,
// never from a caller-supplied path id.
//
// Returns nil when allowed, ErrUnauthenticated when there is no principal,
// and ErrForbidden when the policy denies.
func Authorize(p *domain.Principal, action Action, ownerID uuid.UUID) error {
	if p == nil {
		return apperror.ErrUnauthenticated()
	}

	switch action {
	case ActionCreateCustomer, ActionDeleteCustomer, ActionReverseEntry, ActionListAllEntries:
		// Administrative operations.
		if p.IsAdmin() {
			return nil
		}

	case ActionMoveFunds:
		// Deposits and withdrawals are customer-role only and always act on
		// the caller's own linked customer.
		if p.HasRole(domain.RoleCustomer) && p.ID == ownerID {
			return nil
		}

	case ActionReadCustomer, ActionUpdateCustomer, ActionReadLedger:
		if p.IsAdmin() || p.ID == ownerID {
			return nil
		}
	}

	return apperror.ErrForbidden()
}

// ListScope returns the owner filter for customer listings: nil for admins
// (all customers), the principal's own id otherwise.
func ListScope(p *domain.Principal) (*uuid.UUID, error) {
	if p == nil {
		return nil, apperror.ErrUnauthenticated()
	}
	if p.IsAdmin() {
		return nil, nil
	}
	ownerID := p.ID
	return &ownerID, nil
}
