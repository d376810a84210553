package service

import (
	"context"
	"fmt"

	"wallet-ledger-service/internal/core/access"
	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerServiceImpl implements ports.LedgerService. Balances are never stored:
// every read derives them by summing the customer's non-deleted entries.
type LedgerServiceImpl struct {
	entryRepo    ports.EntryRepository
	customerRepo ports.CustomerRepository
	transactor   ports.DBTransactor
	publisher    ports.EventPublisher // nil disables event publishing
	log          zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	entryRepo ports.EntryRepository,
	customerRepo ports.CustomerRepository,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		entryRepo:    entryRepo,
		customerRepo: customerRepo,
		transactor:   transactor,
		publisher:    publisher,
		log:          log,
	}
}

// Deposit records a positive entry against the caller's own customer.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, p *domain.Principal, req ports.MovementRequest) (*ports.MovementResult, error) {
	if p == nil {
		return nil, apperror.ErrUnauthenticated()
	}
	if !domain.IsValidAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if err := access.Authorize(p, access.ActionMoveFunds, p.ID); err != nil {
		return nil, err
	}

	customer, err := s.customerRepo.GetByOwner(ctx, p.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find customer: %w", err))
	}
	if customer == nil {
		return nil, apperror.ErrNotFound("customer")
	}

	entry := domain.NewDepositEntry(customer.ID, req.Amount, req.Description)

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.entryRepo.Create(ctx, dbTx, &entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	balance, err := s.entryRepo.SumByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum balance: %w", err))
	}

	s.publishEntryRecorded(ctx, &entry, balance)

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("customer_id", customer.ID.String()).
		Str("amount", req.Amount.String()).
		Msg("deposit recorded")

	return &ports.MovementResult{Entry: &entry, CurrentBalance: balance}, nil
}

// Withdraw records a negative entry against the caller's own customer after a
// balance check. The customer row is locked for the read-then-write so two
// concurrent withdrawals cannot both pass the check.
func (s *LedgerServiceImpl) Withdraw(ctx context.Context, p *domain.Principal, req ports.MovementRequest) (*ports.MovementResult, error) {
	if p == nil {
		return nil, apperror.ErrUnauthenticated()
	}
	if !domain.IsValidAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if err := access.Authorize(p, access.ActionMoveFunds, p.ID); err != nil {
		return nil, err
	}

	customer, err := s.customerRepo.GetByOwner(ctx, p.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find customer: %w", err))
	}
	if customer == nil {
		return nil, apperror.ErrNotFound("customer")
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock the customer row
	locked, err := s.customerRepo.GetByIDForUpdate(ctx, dbTx, customer.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock customer: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("customer")
	}

	// Balance check under the lock
	currentBalance, err := s.entryRepo.SumByCustomerTx(ctx, dbTx, locked.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum balance: %w", err))
	}
	if currentBalance.LessThan(req.Amount) {
		return nil, apperror.ErrInsufficientFunds(currentBalance, req.Amount)
	}

	entry := domain.NewWithdrawEntry(locked.ID, req.Amount, req.Description)

	if err := s.entryRepo.Create(ctx, dbTx, &entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	newBalance, err := s.entryRepo.SumByCustomer(ctx, locked.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum balance: %w", err))
	}

	s.publishEntryRecorded(ctx, &entry, newBalance)

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("customer_id", locked.ID.String()).
		Str("amount", req.Amount.String()).
		Str("balance", newBalance.String()).
		Msg("withdrawal recorded")

	return &ports.MovementResult{Entry: &entry, CurrentBalance: newBalance}, nil
}

// Balance derives the current balance for a customer the principal may read.
func (s *LedgerServiceImpl) Balance(ctx context.Context, p *domain.Principal, customerID uuid.UUID) (decimal.Decimal, error) {
	customer, err := s.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("find customer: %w", err))
	}
	if customer == nil {
		return decimal.Zero, apperror.ErrNotFound("customer")
	}
	if err := access.Authorize(p, access.ActionReadLedger, customer.OwnerID); err != nil {
		return decimal.Zero, err
	}

	balance, err := s.entryRepo.SumByCustomer(ctx, customer.ID)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("sum balance: %w", err))
	}
	return balance, nil
}

// History returns a page of a customer's entries plus the signed total over
// the whole filtered set.
func (s *LedgerServiceImpl) History(ctx context.Context, p *domain.Principal, customerID uuid.UUID, params ports.HistoryParams) (*ports.HistoryResult, error) {
	customer, err := s.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find customer: %w", err))
	}
	if customer == nil {
		return nil, apperror.ErrNotFound("customer")
	}
	if err := access.Authorize(p, access.ActionReadLedger, customer.OwnerID); err != nil {
		return nil, err
	}

	entries, total, err := s.entryRepo.List(ctx, ports.EntryListParams{
		CustomerID: &customer.ID,
		Filter:     params.Filter,
		Page:       params.Page,
		PageSize:   params.PageSize,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list entries: %w", err))
	}

	filterTotal, err := s.entryRepo.SumFiltered(ctx, &customer.ID, params.Filter)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum filtered: %w", err))
	}

	return &ports.HistoryResult{
		Entries:     entries,
		Total:       total,
		FilterTotal: filterTotal,
	}, nil
}

// ListAll is the admin-only view across every customer.
func (s *LedgerServiceImpl) ListAll(ctx context.Context, p *domain.Principal, params ports.HistoryParams) (*ports.GlobalHistoryResult, error) {
	if err := access.Authorize(p, access.ActionListAllEntries, uuid.Nil); err != nil {
		return nil, err
	}

	entries, total, err := s.entryRepo.ListGlobal(ctx, ports.EntryListParams{
		Filter:   params.Filter,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list global entries: %w", err))
	}

	filterTotal, err := s.entryRepo.SumFiltered(ctx, nil, params.Filter)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum filtered: %w", err))
	}

	return &ports.GlobalHistoryResult{
		Entries:     entries,
		Total:       total,
		FilterTotal: filterTotal,
	}, nil
}

// Reverse soft-deletes an entry, removing it from every balance and sum. The
// entry row itself is retained for audit.
func (s *LedgerServiceImpl) Reverse(ctx context.Context, p *domain.Principal, entryID uuid.UUID) error {
	if err := access.Authorize(p, access.ActionReverseEntry, uuid.Nil); err != nil {
		return err
	}

	entry, err := s.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("find entry: %w", err))
	}
	if entry == nil {
		return apperror.ErrNotFound("ledger entry")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.entryRepo.SoftDelete(ctx, dbTx, entryID); err != nil {
		return apperror.InternalError(fmt.Errorf("soft delete entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("entry_id", entryID.String()).
		Str("admin_id", p.ID.String()).
		Msg("ledger entry reversed")

	return nil
}

// publishEntryRecorded emits the post-commit event (best-effort).
func (s *LedgerServiceImpl) publishEntryRecorded(ctx context.Context, entry *domain.LedgerEntry, balance decimal.Decimal) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEntryRecorded(ctx, entry, balance); err != nil {
		s.log.Warn().Err(err).Str("entry_id", entry.ID.String()).Msg("failed to publish entry event")
	}
}
