package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- In-Memory Principal Repo ---

type inMemoryPrincipalRepo struct {
	mu         sync.RWMutex
	principals map[uuid.UUID]*domain.Principal
}

func newInMemoryPrincipalRepo() *inMemoryPrincipalRepo {
	return &inMemoryPrincipalRepo{principals: make(map[uuid.UUID]*domain.Principal)}
}

func (r *inMemoryPrincipalRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.principals {
		if existing.Username == p.Username {
			return fmt.Errorf("username already exists")
		}
	}
	r.principals[p.ID] = p
	return nil
}

func (r *inMemoryPrincipalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.principals[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (r *inMemoryPrincipalRepo) GetByUsername(ctx context.Context, username string) (*domain.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.principals {
		if p.Username == username {
			return p, nil
		}
	}
	return nil, nil
}

func (r *inMemoryPrincipalRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	p, err := r.GetByUsername(ctx, username)
	return p != nil, err
}

func (r *inMemoryPrincipalRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return fmt.Errorf("principal not found")
	}
	p.PasswordHash = passwordHash
	return nil
}

// --- In-Memory Customer Repo ---

type inMemoryCustomerRepo struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]*domain.Customer
	entries   *inMemoryEntryRepo
}

func newInMemoryCustomerRepo(entries *inMemoryEntryRepo) *inMemoryCustomerRepo {
	return &inMemoryCustomerRepo{
		customers: make(map[uuid.UUID]*domain.Customer),
		entries:   entries,
	}
}

func (r *inMemoryCustomerRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[c.ID] = c
	return nil
}

func (r *inMemoryCustomerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customers[id]
	if !ok || c.IsDeleted() {
		return nil, nil
	}
	return c, nil
}

func (r *inMemoryCustomerRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Customer, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryCustomerRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.customers {
		if c.OwnerID == ownerID && !c.IsDeleted() {
			return c, nil
		}
	}
	return nil, nil
}

func (r *inMemoryCustomerRepo) List(ctx context.Context, params ports.CustomerListParams) ([]ports.CustomerWithBalance, int64, error) {
	r.mu.RLock()
	var matched []*domain.Customer
	for _, c := range r.customers {
		if c.IsDeleted() {
			continue
		}
		if params.OwnerID != nil && c.OwnerID != *params.OwnerID {
			continue
		}
		matched = append(matched, c)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))

	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return []ports.CustomerWithBalance{}, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}

	result := make([]ports.CustomerWithBalance, 0, end-start)
	for _, c := range matched[start:end] {
		balance, err := r.entries.SumByCustomer(ctx, c.ID)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, ports.CustomerWithBalance{Customer: *c, Balance: balance})
	}
	return result, total, nil
}

func (r *inMemoryCustomerRepo) Update(ctx context.Context, c *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[c.ID]; !ok {
		return fmt.Errorf("customer not found")
	}
	r.customers[c.ID] = c
	return nil
}

func (r *inMemoryCustomerRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok || c.IsDeleted() {
		return fmt.Errorf("customer not found")
	}
	now := time.Now().UTC()
	c.DeletedAt = &now
	return nil
}

// --- In-Memory Entry Repo ---

type inMemoryEntryRepo struct {
	mu         sync.RWMutex
	entries    map[uuid.UUID]*domain.LedgerEntry
	customers  *inMemoryCustomerRepo
	principals *inMemoryPrincipalRepo
}

func newInMemoryEntryRepo() *inMemoryEntryRepo {
	return &inMemoryEntryRepo{entries: make(map[uuid.UUID]*domain.LedgerEntry)}
}

func (r *inMemoryEntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *e
	r.entries[e.ID] = &copied
	return nil
}

func (r *inMemoryEntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.IsDeleted() {
		return nil, nil
	}
	return e, nil
}

func (r *inMemoryEntryRepo) SumByCustomer(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	return r.SumFiltered(ctx, &customerID, ports.EntryFilter{})
}

func (r *inMemoryEntryRepo) SumByCustomerTx(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (decimal.Decimal, error) {
	return r.SumByCustomer(ctx, customerID)
}

func (r *inMemoryEntryRepo) SumFiltered(ctx context.Context, customerID *uuid.UUID, filter ports.EntryFilter) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := decimal.Zero
	for _, e := range r.entries {
		if matchesEntry(e, customerID, filter) {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (r *inMemoryEntryRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	matched := r.collect(params.CustomerID, params.Filter)
	total := int64(len(matched))

	matched = paginateEntries(matched, params.Page, params.PageSize)
	result := make([]domain.LedgerEntry, 0, len(matched))
	for _, e := range matched {
		result = append(result, *e)
	}
	return result, total, nil
}

func (r *inMemoryEntryRepo) ListGlobal(ctx context.Context, params ports.EntryListParams) ([]ports.EntryWithContext, int64, error) {
	matched := r.collect(params.CustomerID, params.Filter)
	total := int64(len(matched))

	matched = paginateEntries(matched, params.Page, params.PageSize)
	result := make([]ports.EntryWithContext, 0, len(matched))
	for _, e := range matched {
		item := ports.EntryWithContext{LedgerEntry: *e}
		if customer, _ := r.customers.GetByID(ctx, e.CustomerID); customer != nil {
			item.CustomerName = customer.Name
			if owner, _ := r.principals.GetByID(ctx, customer.OwnerID); owner != nil {
				item.OwnerUsername = owner.Username
			}
		}
		result = append(result, item)
	}
	return result, total, nil
}

func (r *inMemoryEntryRepo) ListAllByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.LedgerEntry, error) {
	matched := r.collect(&customerID, ports.EntryFilter{})
	result := make([]domain.LedgerEntry, 0, len(matched))
	for _, e := range matched {
		result = append(result, *e)
	}
	return result, nil
}

func (r *inMemoryEntryRepo) SoftDelete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.IsDeleted() {
		return fmt.Errorf("ledger entry not found: %s", id)
	}
	now := time.Now().UTC()
	e.DeletedAt = &now
	return nil
}

// collect returns non-deleted matching entries, newest first.
func (r *inMemoryEntryRepo) collect(customerID *uuid.UUID, filter ports.EntryFilter) []*domain.LedgerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*domain.LedgerEntry
	for _, e := range r.entries {
		if matchesEntry(e, customerID, filter) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched
}

// matchesEntry mirrors the SQL predicate: deleted rows excluded, start date
// inclusive, end date extended to end-of-day.
func matchesEntry(e *domain.LedgerEntry, customerID *uuid.UUID, filter ports.EntryFilter) bool {
	if e.IsDeleted() {
		return false
	}
	if customerID != nil && e.CustomerID != *customerID {
		return false
	}
	if filter.StartDate != nil && e.CreatedAt.Before(*filter.StartDate) {
		return false
	}
	if filter.EndDate != nil && !e.CreatedAt.Before(filter.EndDate.AddDate(0, 0, 1)) {
		return false
	}
	if filter.Type != nil && e.Type != *filter.Type {
		return false
	}
	return true
}

func paginateEntries(entries []*domain.LedgerEntry, page, pageSize int) []*domain.LedgerEntry {
	start := (page - 1) * pageSize
	if start >= len(entries) {
		return nil
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end]
}

// wireInMemoryRepos builds the three repos with their cross-references set.
func wireInMemoryRepos() (*inMemoryPrincipalRepo, *inMemoryCustomerRepo, *inMemoryEntryRepo) {
	principals := newInMemoryPrincipalRepo()
	entries := newInMemoryEntryRepo()
	customers := newInMemoryCustomerRepo(entries)
	entries.customers = customers
	entries.principals = principals
	return principals, customers, entries
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
