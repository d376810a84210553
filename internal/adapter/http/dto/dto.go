package dto

import (
	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"

	"github.com/shopspring/decimal"
)

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// ChangePasswordRequest is the request body for a password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

// ProfileResponse is the authenticated account view.
type ProfileResponse struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// MovementRequest is the request body for deposits and withdrawals.
type MovementRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description *string         `json:"description,omitempty" binding:"omitempty,max=255"`
}

// TransactionResponse is one ledger entry on the wire.
type TransactionResponse struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description *string         `json:"description,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// MovementResultResponse is the response body for a committed movement.
type MovementResultResponse struct {
	Transaction    TransactionResponse `json:"transaction"`
	CurrentBalance decimal.Decimal     `json:"current_balance"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	CustomerID string          `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
}

// TransactionListResponse wraps a paginated transaction history. FilterTotal
// is the signed sum over the whole filtered set, not just the current page.
type TransactionListResponse struct {
	Items       []TransactionResponse `json:"items"`
	Total       int64                 `json:"total"`
	FilterTotal decimal.Decimal       `json:"filter_total"`
	Page        int                   `json:"page"`
	PageSize    int                   `json:"page_size"`
	TotalPages  int                   `json:"total_pages"`
}

// GlobalTransactionResponse is one entry in the admin-wide listing.
type GlobalTransactionResponse struct {
	TransactionResponse
	CustomerName  string `json:"customer_name"`
	OwnerUsername string `json:"owner_username"`
}

// GlobalTransactionListResponse wraps the paginated admin-wide listing.
type GlobalTransactionListResponse struct {
	Items       []GlobalTransactionResponse `json:"items"`
	Total       int64                       `json:"total"`
	FilterTotal decimal.Decimal             `json:"filter_total"`
	Page        int                         `json:"page"`
	PageSize    int                         `json:"page_size"`
	TotalPages  int                         `json:"total_pages"`
}

// CreateCustomerRequest is the request body for customer creation.
// OwnerUsername links to an existing account; omitted means a fresh account
// is provisioned for the customer.
type CreateCustomerRequest struct {
	Name          string  `json:"name" binding:"required,min=2,max=100"`
	Address       string  `json:"address" binding:"required,min=5,max=255"`
	Phone         string  `json:"phone" binding:"required,phone"`
	BirthDate     string  `json:"birth_date" binding:"required,datetime=2006-01-02"`
	OwnerUsername *string `json:"owner_username,omitempty" binding:"omitempty,min=3,max=50"`
}

// UpdateCustomerRequest is the request body for a partial customer update.
type UpdateCustomerRequest struct {
	Name      *string `json:"name,omitempty" binding:"omitempty,min=2,max=100"`
	Address   *string `json:"address,omitempty" binding:"omitempty,min=5,max=255"`
	Phone     *string `json:"phone,omitempty" binding:"omitempty,phone"`
	BirthDate *string `json:"birth_date,omitempty" binding:"omitempty,datetime=2006-01-02"`
}

// CustomerResponse is one customer record on the wire.
type CustomerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CustomerWithBalanceResponse annotates a customer with its derived balance.
type CustomerWithBalanceResponse struct {
	CustomerResponse
	Balance decimal.Decimal `json:"balance"`
}

// CustomerDetailResponse is a full customer view with preloaded history.
type CustomerDetailResponse struct {
	CustomerResponse
	Balance      decimal.Decimal       `json:"balance"`
	Transactions []TransactionResponse `json:"transactions"`
}

// ProvisionedCustomerResponse is the creation result. Password is present only
// when a fresh account was provisioned; it is never shown again.
type ProvisionedCustomerResponse struct {
	Customer CustomerResponse `json:"customer"`
	Username string           `json:"username"`
	Email    string           `json:"email"`
	Password string           `json:"password,omitempty"`
}

// CustomerListResponse wraps a paginated customer listing.
type CustomerListResponse struct {
	Items      []CustomerWithBalanceResponse `json:"items"`
	Total      int64                         `json:"total"`
	Page       int                           `json:"page"`
	PageSize   int                           `json:"page_size"`
	TotalPages int                           `json:"total_pages"`
}

// ---- Mapping helpers ----

// FromEntry maps a domain ledger entry to its wire form.
func FromEntry(e domain.LedgerEntry) TransactionResponse {
	return TransactionResponse{
		ID:          e.ID.String(),
		CustomerID:  e.CustomerID.String(),
		Amount:      e.Amount,
		Type:        string(e.Type),
		Description: e.Description,
		CreatedAt:   e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// FromEntries maps a slice of entries, returning an empty (non-nil) slice for
// none so JSON renders [] instead of null.
func FromEntries(entries []domain.LedgerEntry) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromEntry(e))
	}
	return out
}

// FromCustomer maps a domain customer to its wire form.
func FromCustomer(c domain.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Address:   c.Address,
		Phone:     c.Phone,
		BirthDate: c.BirthDate.Format("2006-01-02"),
		OwnerID:   c.OwnerID.String(),
		CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// FromPrincipal maps a domain principal to the profile view.
func FromPrincipal(p domain.Principal) ProfileResponse {
	roles := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		roles = append(roles, string(r))
	}
	return ProfileResponse{
		ID:       p.ID.String(),
		Username: p.Username,
		Email:    p.Email,
		Roles:    roles,
	}
}

// FromCustomersWithBalance maps annotated customer rows to their wire form.
func FromCustomersWithBalance(customers []ports.CustomerWithBalance) []CustomerWithBalanceResponse {
	out := make([]CustomerWithBalanceResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, CustomerWithBalanceResponse{
			CustomerResponse: FromCustomer(c.Customer),
			Balance:          c.Balance,
		})
	}
	return out
}
