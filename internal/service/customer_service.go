package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger-service/config"
	"wallet-ledger-service/internal/core/access"
	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CustomerServiceImpl implements ports.CustomerService.
type CustomerServiceImpl struct {
	customerRepo  ports.CustomerRepository
	principalRepo ports.PrincipalRepository
	entryRepo     ports.EntryRepository
	hashSvc       ports.HashService
	transactor    ports.DBTransactor
	provision     config.ProvisionConfig
	log           zerolog.Logger
}

// NewCustomerService creates a new CustomerServiceImpl.
func NewCustomerService(
	customerRepo ports.CustomerRepository,
	principalRepo ports.PrincipalRepository,
	entryRepo ports.EntryRepository,
	hashSvc ports.HashService,
	transactor ports.DBTransactor,
	provision config.ProvisionConfig,
	log zerolog.Logger,
) *CustomerServiceImpl {
	return &CustomerServiceImpl{
		customerRepo:  customerRepo,
		principalRepo: principalRepo,
		entryRepo:     entryRepo,
		hashSvc:       hashSvc,
		transactor:    transactor,
		provision:     provision,
		log:           log,
	}
}

// List returns a page of customers visible to the principal, each annotated
// with its derived balance. Admins see everyone; customers see only their own.
func (s *CustomerServiceImpl) List(ctx context.Context, p *domain.Principal, page, pageSize int) ([]ports.CustomerWithBalance, int64, error) {
	ownerID, err := access.ListScope(p)
	if err != nil {
		return nil, 0, err
	}

	customers, total, err := s.customerRepo.List(ctx, ports.CustomerListParams{
		OwnerID:  ownerID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list customers: %w", err))
	}
	return customers, total, nil
}

// Get returns a customer record with its derived balance and full entry
// history preloaded.
func (s *CustomerServiceImpl) Get(ctx context.Context, p *domain.Principal, id uuid.UUID) (*ports.CustomerDetail, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find customer: %w", err))
	}
	if customer == nil {
		return nil, apperror.ErrNotFound("customer")
	}
	if err := access.Authorize(p, access.ActionReadCustomer, customer.OwnerID); err != nil {
		return nil, err
	}

	balance, err := s.entryRepo.SumByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum balance: %w", err))
	}

	entries, err := s.entryRepo.ListAllByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list entries: %w", err))
	}

	return &ports.CustomerDetail{
		Customer: *customer,
		Balance:  balance,
		Entries:  entries,
	}, nil
}

// Create registers a customer. When OwnerUsername is set the customer links to
// that existing principal; otherwise a fresh customer-role principal is
// provisioned and its one-time credentials returned.
func (s *CustomerServiceImpl) Create(ctx context.Context, p *domain.Principal, req ports.CreateCustomerRequest) (*ports.ProvisionedCustomer, error) {
	if err := access.Authorize(p, access.ActionCreateCustomer, uuid.Nil); err != nil {
		return nil, err
	}

	if req.OwnerUsername != nil {
		return s.createForExistingPrincipal(ctx, req)
	}
	return s.createWithProvisionedPrincipal(ctx, req)
}

func (s *CustomerServiceImpl) createForExistingPrincipal(ctx context.Context, req ports.CreateCustomerRequest) (*ports.ProvisionedCustomer, error) {
	owner, err := s.principalRepo.GetByUsername(ctx, *req.OwnerUsername)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find principal: %w", err))
	}
	if owner == nil {
		return nil, apperror.ErrNotFound("principal")
	}

	existing, err := s.customerRepo.GetByOwner(ctx, owner.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check existing customer: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrConflict("principal already owns a customer")
	}

	customer := newCustomer(req, owner.ID)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.customerRepo.Create(ctx, dbTx, customer); err != nil {
		// A concurrent create can win the partial unique index on owner_id
		// after the pre-check passed.
		if errors.Is(err, ports.ErrUniqueViolation) {
			return nil, apperror.ErrConflict("principal already owns a customer")
		}
		return nil, apperror.InternalError(fmt.Errorf("create customer: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("customer_id", customer.ID.String()).
		Str("owner", owner.Username).
		Msg("customer linked to existing principal")

	return &ports.ProvisionedCustomer{
		Customer: customer,
		Username: owner.Username,
		Email:    owner.Email,
	}, nil
}

func (s *CustomerServiceImpl) createWithProvisionedPrincipal(ctx context.Context, req ports.CreateCustomerRequest) (*ports.ProvisionedCustomer, error) {
	username, err := s.generateUsername(ctx, req.Name)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate username: %w", err))
	}

	email := fmt.Sprintf("%s@%s", username, s.provision.EmailDomain)

	password := s.provision.DefaultPassword
	if password == "" {
		password, err = generateRandomHex(12)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("generate password: %w", err))
		}
	}

	passwordHash, err := s.hashSvc.Hash(password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	owner := &domain.Principal{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        []domain.Role{domain.RoleCustomer},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	customer := newCustomer(req, owner.ID)

	// Principal and customer are created atomically: a failure on either side
	// leaves no orphaned account.
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.principalRepo.Create(ctx, dbTx, owner); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return nil, apperror.ErrConflict("username already taken")
		}
		return nil, apperror.InternalError(fmt.Errorf("create principal: %w", err))
	}
	if err := s.customerRepo.Create(ctx, dbTx, customer); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return nil, apperror.ErrConflict("principal already owns a customer")
		}
		return nil, apperror.InternalError(fmt.Errorf("create customer: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("customer_id", customer.ID.String()).
		Str("username", username).
		Msg("customer created with provisioned principal")

	return &ports.ProvisionedCustomer{
		Customer: customer,
		Username: username,
		Email:    email,
		Password: password,
	}, nil
}

// Update applies a partial profile edit; nil fields are left untouched.
func (s *CustomerServiceImpl) Update(ctx context.Context, p *domain.Principal, id uuid.UUID, req ports.UpdateCustomerRequest) (*domain.Customer, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find customer: %w", err))
	}
	if customer == nil {
		return nil, apperror.ErrNotFound("customer")
	}
	if err := access.Authorize(p, access.ActionUpdateCustomer, customer.OwnerID); err != nil {
		return nil, err
	}

	if req.Name != nil {
		customer.Name = *req.Name
	}
	if req.Address != nil {
		customer.Address = *req.Address
	}
	if req.Phone != nil {
		customer.Phone = *req.Phone
	}
	if req.BirthDate != nil {
		customer.BirthDate = *req.BirthDate
	}
	customer.UpdatedAt = time.Now().UTC()

	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update customer: %w", err))
	}
	return customer, nil
}

// SoftDelete hides a customer from all reads. Its ledger entries survive for
// audit but no longer reach any listing through the customer.
func (s *CustomerServiceImpl) SoftDelete(ctx context.Context, p *domain.Principal, id uuid.UUID) error {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("find customer: %w", err))
	}
	if customer == nil {
		return apperror.ErrNotFound("customer")
	}
	if err := access.Authorize(p, access.ActionDeleteCustomer, customer.OwnerID); err != nil {
		return err
	}

	if err := s.customerRepo.SoftDelete(ctx, id); err != nil {
		return apperror.InternalError(fmt.Errorf("soft delete customer: %w", err))
	}

	s.log.Info().
		Str("customer_id", id.String()).
		Str("admin_id", p.ID.String()).
		Msg("customer soft-deleted")

	return nil
}

// generateUsername derives a unique username from the customer name:
// lowercased with spaces stripped, suffixed with a counter on collision.
func (s *CustomerServiceImpl) generateUsername(ctx context.Context, name string) (string, error) {
	base := strings.ToLower(strings.ReplaceAll(name, " ", ""))
	if base == "" {
		base = "customer"
	}

	candidate := base
	for i := 1; ; i++ {
		taken, err := s.principalRepo.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}

func newCustomer(req ports.CreateCustomerRequest, ownerID uuid.UUID) *domain.Customer {
	now := time.Now().UTC()
	return &domain.Customer{
		ID:        uuid.New(),
		Name:      req.Name,
		Address:   req.Address,
		Phone:     req.Phone,
		BirthDate: req.BirthDate,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// generateRandomHex generates a random hex string of n bytes.
func generateRandomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
