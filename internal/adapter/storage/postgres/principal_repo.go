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

// PrincipalRepo implements ports.PrincipalRepository.
type PrincipalRepo struct {
	pool Pool
}

// NewPrincipalRepo creates a new PrincipalRepo.
func NewPrincipalRepo(pool Pool) *PrincipalRepo {
	return &PrincipalRepo{pool: pool}
}

const principalColumns = `id, username, email, password_hash, roles, created_at, updated_at`

// Create inserts a new principal within a database transaction.
func (r *PrincipalRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Principal) error {
	query := `INSERT INTO principals (id, username, email, password_hash, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.Username, p.Email, p.PasswordHash, rolesToStrings(p.Roles),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert principal: %w", ports.ErrUniqueViolation)
		}
		return fmt.Errorf("insert principal: %w", err)
	}
	return nil
}

// GetByID fetches a principal by UUID.
func (r *PrincipalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Principal, error) {
	query := fmt.Sprintf(`SELECT %s FROM principals WHERE id = $1`, principalColumns)
	return r.scanPrincipal(r.pool.QueryRow(ctx, query, id))
}

// GetByUsername fetches a principal by username.
func (r *PrincipalRepo) GetByUsername(ctx context.Context, username string) (*domain.Principal, error) {
	query := fmt.Sprintf(`SELECT %s FROM principals WHERE username = $1`, principalColumns)
	return r.scanPrincipal(r.pool.QueryRow(ctx, query, username))
}

// UsernameExists checks whether a username is already taken.
func (r *PrincipalRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM principals WHERE username = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return exists, nil
}

// UpdatePassword replaces the stored password hash.
func (r *PrincipalRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE principals SET password_hash = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("principal not found: %s", id)
	}
	return nil
}

// scanPrincipal is a helper to scan a single row into a Principal.
func (r *PrincipalRepo) scanPrincipal(row pgx.Row) (*domain.Principal, error) {
	p := &domain.Principal{}
	var roles []string
	err := row.Scan(
		&p.ID, &p.Username, &p.Email, &p.PasswordHash, &roles,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan principal: %w", err)
	}
	p.Roles = stringsToRoles(roles)
	return p, nil
}

func rolesToStrings(roles []domain.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

func stringsToRoles(roles []string) []domain.Role {
	out := make([]domain.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, domain.Role(r))
	}
	return out
}
