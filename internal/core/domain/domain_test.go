package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsValidAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		valid  bool
	}{
		{"positive integer", "100", true},
		{"two decimal places", "99.99", true},
		{"one decimal place", "0.5", true},
		{"smallest unit", "0.01", true},
		{"zero", "0", false},
		{"negative", "-10", false},
		{"three decimal places", "10.123", false},
		{"large valid", "9999999999999.99", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			assert.Equal(t, tt.valid, IsValidAmount(amount))
		})
	}
}

func TestNewDepositEntry(t *testing.T) {
	customerID := uuid.New()
	amount := decimal.RequireFromString("150.50")

	e := NewDepositEntry(customerID, amount, nil)

	assert.Equal(t, customerID, e.CustomerID)
	assert.Equal(t, EntryTypeDeposit, e.Type)
	assert.True(t, amount.Equal(e.Amount), "deposits are stored as-is")
	assert.False(t, e.IsDeleted())
}

func TestNewWithdrawEntry(t *testing.T) {
	customerID := uuid.New()
	amount := decimal.RequireFromString("50000")

	e := NewWithdrawEntry(customerID, amount, nil)

	assert.Equal(t, EntryTypeWithdraw, e.Type)
	assert.True(t, e.Amount.IsNegative(), "withdrawals are stored negated")
	assert.True(t, amount.Neg().Equal(e.Amount))
}

func TestBalanceIsSignedSum(t *testing.T) {
	customerID := uuid.New()
	entries := []LedgerEntry{
		NewDepositEntry(customerID, decimal.RequireFromString("100000"), nil),
		NewWithdrawEntry(customerID, decimal.RequireFromString("50000"), nil),
		NewDepositEntry(customerID, decimal.RequireFromString("25000"), nil),
	}

	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}

	assert.True(t, decimal.RequireFromString("75000").Equal(sum))
}

func TestPrincipal_HasRole(t *testing.T) {
	p := &Principal{Roles: []Role{RoleCustomer}}

	assert.True(t, p.HasRole(RoleCustomer))
	assert.False(t, p.HasRole(RoleAdmin))
	assert.False(t, p.IsAdmin())

	admin := &Principal{Roles: []Role{RoleAdmin, RoleCustomer}}
	assert.True(t, admin.IsAdmin())
}

func TestCustomer_IsDeleted(t *testing.T) {
	c := &Customer{}
	assert.False(t, c.IsDeleted())

	now := time.Now()
	c.DeletedAt = &now
	assert.True(t, c.IsDeleted())
}
