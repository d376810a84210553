package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CustomerRepo implements ports.CustomerRepository. Every read predicate
// mandates deleted_at IS NULL; soft-deleted rows are invisible.
type CustomerRepo struct {
	pool Pool
}

// NewCustomerRepo creates a new CustomerRepo.
func NewCustomerRepo(pool Pool) *CustomerRepo {
	return &CustomerRepo{pool: pool}
}

const customerColumns = `id, name, address, phone, birth_date, owner_id, created_at, updated_at, deleted_at`

// Create inserts a new customer within a database transaction. The partial
// unique index on owner_id (where deleted_at IS NULL) backs the
// one-customer-per-principal rule.
func (r *CustomerRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.Customer) error {
	query := `INSERT INTO customers (id, name, address, phone, birth_date, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		c.ID, c.Name, c.Address, c.Phone, c.BirthDate, c.OwnerID,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert customer: %w", ports.ErrUniqueViolation)
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// GetByID fetches a non-deleted customer by UUID.
func (r *CustomerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE id = $1 AND deleted_at IS NULL`, customerColumns)
	return r.scanCustomer(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a non-deleted customer with a row lock, so a
// withdraw's read-then-write holds exclusive write intent until commit.
func (r *CustomerRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Customer, error) {
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, customerColumns)
	return r.scanCustomer(tx.QueryRow(ctx, query, id))
}

// GetByOwner fetches the non-deleted customer linked to a principal.
func (r *CustomerRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Customer, error) {
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE owner_id = $1 AND deleted_at IS NULL`, customerColumns)
	return r.scanCustomer(r.pool.QueryRow(ctx, query, ownerID))
}

// List fetches customers with pagination, each row annotated with its derived
// balance. The aggregate joins in the same query to avoid N+1 round trips.
func (r *CustomerRepo) List(ctx context.Context, params ports.CustomerListParams) ([]ports.CustomerWithBalance, int64, error) {
	where := "WHERE c.deleted_at IS NULL"
	var args []any
	argIdx := 1

	if params.OwnerID != nil {
		where += fmt.Sprintf(" AND c.owner_id = $%d", argIdx)
		args = append(args, *params.OwnerID)
		argIdx++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM customers c %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT c.id, c.name, c.address, c.phone, c.birth_date, c.owner_id,
		c.created_at, c.updated_at, c.deleted_at,
		COALESCE(SUM(e.amount) FILTER (WHERE e.deleted_at IS NULL), 0) AS balance
		FROM customers c
		LEFT JOIN ledger_entries e ON e.customer_id = c.id
		%s
		GROUP BY c.id
		ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []ports.CustomerWithBalance
	for rows.Next() {
		c := ports.CustomerWithBalance{}
		err := rows.Scan(
			&c.ID, &c.Name, &c.Address, &c.Phone, &c.BirthDate, &c.OwnerID,
			&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt, &c.Balance,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan customer row: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate customer rows: %w", err)
	}
	return customers, total, nil
}

// Update persists profile changes to a non-deleted customer.
func (r *CustomerRepo) Update(ctx context.Context, c *domain.Customer) error {
	query := `UPDATE customers SET name = $1, address = $2, phone = $3, birth_date = $4, updated_at = $5
		WHERE id = $6 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, c.Name, c.Address, c.Phone, c.BirthDate, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer not found: %s", c.ID)
	}
	return nil
}

// SoftDelete marks a customer deleted, hiding it from all reads and sums.
func (r *CustomerRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE customers SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("soft delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer not found: %s", id)
	}
	return nil
}

// scanCustomer is a helper to scan a single row into a Customer.
func (r *CustomerRepo) scanCustomer(row pgx.Row) (*domain.Customer, error) {
	c := &domain.Customer{}
	err := row.Scan(
		&c.ID, &c.Name, &c.Address, &c.Phone, &c.BirthDate, &c.OwnerID,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return c, nil
}
