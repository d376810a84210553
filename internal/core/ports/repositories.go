package ports

import (
	"context"
	"errors"
	"time"

	"wallet-ledger-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrUniqueViolation marks an insert that lost a race on a unique constraint.
// Repositories wrap it so services can report a conflict instead of an opaque
// internal error.
var ErrUniqueViolation = errors.New("unique constraint violation")

// PrincipalRepository defines persistence operations for principals.
type PrincipalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, p *domain.Principal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Principal, error)
	GetByUsername(ctx context.Context, username string) (*domain.Principal, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// CustomerRepository defines persistence operations for customer records.
// All reads exclude soft-deleted rows. Methods accepting pgx.Tx run inside
// transaction blocks; GetByIDForUpdate takes a row lock so concurrent
// withdrawals against the same customer serialize.
type CustomerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, c *domain.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Customer, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Customer, error)
	List(ctx context.Context, params CustomerListParams) ([]CustomerWithBalance, int64, error)
	Update(ctx context.Context, c *domain.Customer) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// CustomerListParams holds scoping + pagination for listing customers.
// OwnerID nil means no owner scoping (admin listing).
type CustomerListParams struct {
	OwnerID  *uuid.UUID
	Page     int
	PageSize int
}

// CustomerWithBalance annotates a customer row with its derived balance,
// computed in the same query as the listing to avoid N+1 round trips.
type CustomerWithBalance struct {
	domain.Customer
	Balance decimal.Decimal `json:"balance"`
}

// EntryRepository is the append-only ledger store. Entries are never updated;
// SoftDelete implements the administrative reversal path.
type EntryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	// SumByCustomer derives the balance: SUM over non-deleted entries, 0 when none.
	SumByCustomer(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error)
	// SumByCustomerTx is SumByCustomer inside an open transaction, used for
	// the withdraw balance check under the customer row lock.
	SumByCustomerTx(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (decimal.Decimal, error)
	// SumFiltered computes the signed total over the filtered, unpaginated set.
	// customerID nil means all customers.
	SumFiltered(ctx context.Context, customerID *uuid.UUID, filter EntryFilter) (decimal.Decimal, error)
	List(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
	// ListGlobal is the admin view across all customers, annotated with
	// customer and owner context.
	ListGlobal(ctx context.Context, params EntryListParams) ([]EntryWithContext, int64, error)
	ListAllByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.LedgerEntry, error)
	SoftDelete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// EntryFilter narrows history queries. StartDate is inclusive; EndDate is an
// inclusive calendar date extended to end-of-day.
type EntryFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Type      *domain.EntryType
}

// EntryListParams holds filter + pagination for listing ledger entries.
type EntryListParams struct {
	CustomerID *uuid.UUID
	Filter     EntryFilter
	Page       int
	PageSize   int
}

// EntryWithContext annotates a ledger entry with customer/owner identity for
// the global admin listing.
type EntryWithContext struct {
	domain.LedgerEntry
	CustomerName  string `json:"customer_name"`
	OwnerUsername string `json:"owner_username"`
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
