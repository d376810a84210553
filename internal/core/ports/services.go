package ports

import (
	"context"
	"time"

	"wallet-ledger-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(principalID uuid.UUID, username string, roles []domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims. Roles are re-loaded from the store
// on every request; the claim copy is informational only.
type TokenClaims struct {
	PrincipalID uuid.UUID
	Username    string
	Roles       []domain.Role
}

// EventPublisher emits ledger events after commit (best-effort).
type EventPublisher interface {
	PublishEntryRecorded(ctx context.Context, entry *domain.LedgerEntry, balanceAfter decimal.Decimal) error
}

// --- Service Ports (Business Logic) ---

// AuthService defines authentication business logic.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
	Profile(ctx context.Context, principalID uuid.UUID) (*domain.Principal, error)
	ChangePassword(ctx context.Context, principalID uuid.UUID, oldPassword, newPassword string) error
}

// LedgerService defines the money-movement and reporting business logic.
// Every operation authorizes the acting principal before touching the ledger.
type LedgerService interface {
	Deposit(ctx context.Context, p *domain.Principal, req MovementRequest) (*MovementResult, error)
	Withdraw(ctx context.Context, p *domain.Principal, req MovementRequest) (*MovementResult, error)
	Balance(ctx context.Context, p *domain.Principal, customerID uuid.UUID) (decimal.Decimal, error)
	History(ctx context.Context, p *domain.Principal, customerID uuid.UUID, params HistoryParams) (*HistoryResult, error)
	ListAll(ctx context.Context, p *domain.Principal, params HistoryParams) (*GlobalHistoryResult, error)
	Reverse(ctx context.Context, p *domain.Principal, entryID uuid.UUID) error
}

// MovementRequest holds validated input for a deposit or withdrawal.
type MovementRequest struct {
	Amount      decimal.Decimal
	Description *string
}

// MovementResult is the outcome of a committed movement.
type MovementResult struct {
	Entry          *domain.LedgerEntry
	CurrentBalance decimal.Decimal
}

// HistoryParams holds filter + pagination for history queries.
type HistoryParams struct {
	Filter   EntryFilter
	Page     int
	PageSize int
}

// HistoryResult is a page of entries plus the signed total over the whole
// filtered set (independent of pagination).
type HistoryResult struct {
	Entries     []domain.LedgerEntry
	Total       int64
	FilterTotal decimal.Decimal
}

// GlobalHistoryResult is the admin view across all customers.
type GlobalHistoryResult struct {
	Entries     []EntryWithContext
	Total       int64
	FilterTotal decimal.Decimal
}

// CustomerService defines the customer directory business logic.
type CustomerService interface {
	List(ctx context.Context, p *domain.Principal, page, pageSize int) ([]CustomerWithBalance, int64, error)
	Get(ctx context.Context, p *domain.Principal, id uuid.UUID) (*CustomerDetail, error)
	Create(ctx context.Context, p *domain.Principal, req CreateCustomerRequest) (*ProvisionedCustomer, error)
	Update(ctx context.Context, p *domain.Principal, id uuid.UUID, req UpdateCustomerRequest) (*domain.Customer, error)
	SoftDelete(ctx context.Context, p *domain.Principal, id uuid.UUID) error
}

// CreateCustomerRequest holds validated input for customer creation.
// OwnerUsername links the customer to an existing principal; when nil a fresh
// principal is provisioned.
type CreateCustomerRequest struct {
	Name          string
	Address       string
	Phone         string
	BirthDate     time.Time
	OwnerUsername *string
}

// UpdateCustomerRequest holds a partial profile update; nil fields are untouched.
type UpdateCustomerRequest struct {
	Name      *string
	Address   *string
	Phone     *string
	BirthDate *time.Time
}

// CustomerDetail is a full customer record with preloaded entries and balance.
type CustomerDetail struct {
	domain.Customer
	Balance decimal.Decimal      `json:"balance"`
	Entries []domain.LedgerEntry `json:"transactions"`
}

// ProvisionedCustomer is the creation result. Password is the plaintext
// credential of a freshly provisioned principal, shown only once; empty when
// the customer was linked to an existing principal.
type ProvisionedCustomer struct {
	Customer *domain.Customer
	Username string
	Email    string
	Password string
}
