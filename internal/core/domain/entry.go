package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType tags the direction of a ledger entry.
type EntryType string

const (
	EntryTypeDeposit  EntryType = "deposit"
	EntryTypeWithdraw EntryType = "withdraw"
)

// LedgerEntry is an immutable signed money movement attributed to one
// customer. The amount is positive for deposits and negative for withdrawals,
// so the balance is a single SUM over the entries. Entries are append-only:
// a correction is a new compensating entry or an administrative reversal
// (soft delete), never an edit.
type LedgerEntry struct {
	ID          uuid.UUID       `json:"id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        EntryType       `json:"type"`
	Description *string         `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	DeletedAt   *time.Time      `json:"-"`
}

// NewDepositEntry builds a deposit entry storing the amount as-is.
func NewDepositEntry(customerID uuid.UUID, amount decimal.Decimal, description *string) LedgerEntry {
	return LedgerEntry{
		ID:          uuid.New(),
		CustomerID:  customerID,
		Amount:      amount,
		Type:        EntryTypeDeposit,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewWithdrawEntry builds a withdraw entry storing the negated amount.
func NewWithdrawEntry(customerID uuid.UUID, amount decimal.Decimal, description *string) LedgerEntry {
	return LedgerEntry{
		ID:          uuid.New(),
		CustomerID:  customerID,
		Amount:      amount.Neg(),
		Type:        EntryTypeWithdraw,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// IsDeleted returns true if the entry has been reversed (soft-deleted).
func (e *LedgerEntry) IsDeleted() bool {
	return e.DeletedAt != nil
}

// IsValidAmount reports whether a requested movement amount is acceptable:
// strictly positive with at most two fractional digits.
func IsValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}
