package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// EntryRepo implements ports.EntryRepository, the append-only ledger store.
// Amounts are numeric(15,2); all sums run in the database so accumulation
// never touches binary floating point.
type EntryRepo struct {
	pool Pool
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(pool Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

const entryColumns = `id, customer_id, amount, type, description, created_at, deleted_at`

// Create appends a ledger entry within a database transaction. There is no
// update counterpart: entries are immutable once written.
func (r *EntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, customer_id, amount, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.CustomerID, e.Amount, e.Type, e.Description, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByID fetches a non-deleted entry by UUID.
func (r *EntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE id = $1 AND deleted_at IS NULL`, entryColumns)
	return r.scanEntry(r.pool.QueryRow(ctx, query, id))
}

// SumByCustomer derives the customer's balance: SUM over non-deleted entries,
// 0 when there are none.
func (r *EntryRepo) SumByCustomer(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	return r.sumByCustomer(ctx, r.pool, customerID)
}

// SumByCustomerTx is SumByCustomer running on an open transaction, for the
// withdraw balance check under the customer row lock.
func (r *EntryRepo) SumByCustomerTx(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (decimal.Decimal, error) {
	return r.sumByCustomer(ctx, tx, customerID)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *EntryRepo) sumByCustomer(ctx context.Context, q rowQuerier, customerID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE customer_id = $1 AND deleted_at IS NULL`

	var sum decimal.Decimal
	if err := q.QueryRow(ctx, query, customerID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}

// SumFiltered computes the signed total over the filtered, unpaginated set.
func (r *EntryRepo) SumFiltered(ctx context.Context, customerID *uuid.UUID, filter ports.EntryFilter) (decimal.Decimal, error) {
	where, args := buildEntryWhere(customerID, filter)
	query := fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries %s`, where)

	var sum decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum filtered entries: %w", err)
	}
	return sum, nil
}

// List fetches entries with filtering and pagination, newest first.
func (r *EntryRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	where, args := buildEntryWhere(params.CustomerID, params.Filter)
	argIdx := len(args) + 1

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_entries %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_entries %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, entryColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		err := rows.Scan(&e.ID, &e.CustomerID, &e.Amount, &e.Type, &e.Description, &e.CreatedAt, &e.DeletedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate entry rows: %w", err)
	}
	return entries, total, nil
}

// ListGlobal fetches entries across all customers annotated with customer and
// owner context, for the admin-wide listing.
func (r *EntryRepo) ListGlobal(ctx context.Context, params ports.EntryListParams) ([]ports.EntryWithContext, int64, error) {
	where, args := buildQualifiedEntryWhere("e.", params.CustomerID, params.Filter)
	argIdx := len(args) + 1

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_entries e %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count global entries: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT e.id, e.customer_id, e.amount, e.type, e.description,
		e.created_at, e.deleted_at, c.name, p.username
		FROM ledger_entries e
		JOIN customers c ON c.id = e.customer_id
		JOIN principals p ON p.id = c.owner_id
		%s
		ORDER BY e.created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list global entries: %w", err)
	}
	defer rows.Close()

	var entries []ports.EntryWithContext
	for rows.Next() {
		e := ports.EntryWithContext{}
		err := rows.Scan(&e.ID, &e.CustomerID, &e.Amount, &e.Type, &e.Description,
			&e.CreatedAt, &e.DeletedAt, &e.CustomerName, &e.OwnerUsername)
		if err != nil {
			return nil, 0, fmt.Errorf("scan global entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate global entry rows: %w", err)
	}
	return entries, total, nil
}

// ListAllByCustomer fetches every non-deleted entry for a customer, newest
// first, for detail-view preloading.
func (r *EntryRepo) ListAllByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries
		WHERE customer_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, entryColumns)

	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list customer entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		err := rows.Scan(&e.ID, &e.CustomerID, &e.Amount, &e.Type, &e.Description, &e.CreatedAt, &e.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}
	return entries, nil
}

// SoftDelete marks an entry reversed within a database transaction, removing
// it from all balances and filtered sums.
func (r *EntryRepo) SoftDelete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE ledger_entries SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`

	tag, err := tx.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("soft delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger entry not found: %s", id)
	}
	return nil
}

// buildEntryWhere assembles the shared filter predicate. The end date is an
// inclusive calendar date: the condition extends it to end-of-day.
func buildEntryWhere(customerID *uuid.UUID, filter ports.EntryFilter) (string, []any) {
	return buildQualifiedEntryWhere("", customerID, filter)
}

func buildQualifiedEntryWhere(prefix string, customerID *uuid.UUID, filter ports.EntryFilter) (string, []any) {
	conditions := []string{prefix + "deleted_at IS NULL"}
	var args []any
	argIdx := 1

	if customerID != nil {
		conditions = append(conditions, fmt.Sprintf("%scustomer_id = $%d", prefix, argIdx))
		args = append(args, *customerID)
		argIdx++
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("%screated_at >= $%d", prefix, argIdx))
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("%screated_at < $%d", prefix, argIdx))
		args = append(args, filter.EndDate.AddDate(0, 0, 1))
		argIdx++
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("%stype = $%d", prefix, argIdx))
		args = append(args, *filter.Type)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// scanEntry is a helper to scan a single row into a LedgerEntry.
func (r *EntryRepo) scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(&e.ID, &e.CustomerID, &e.Amount, &e.Type, &e.Description, &e.CreatedAt, &e.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	return e, nil
}
