package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"wallet-ledger-service/config"
	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/internal/core/ports/mocks"
	"wallet-ledger-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type customerTestDeps struct {
	svc           *CustomerServiceImpl
	customerRepo  *mocks.MockCustomerRepository
	principalRepo *mocks.MockPrincipalRepository
	entryRepo     *mocks.MockEntryRepository
	hashSvc       *mocks.MockHashService
	transactor    *mocks.MockDBTransactor
	ctrl          *gomock.Controller
}

func setupCustomerService(t *testing.T) *customerTestDeps {
	ctrl := gomock.NewController(t)
	d := &customerTestDeps{
		customerRepo:  mocks.NewMockCustomerRepository(ctrl),
		principalRepo: mocks.NewMockPrincipalRepository(ctrl),
		entryRepo:     mocks.NewMockEntryRepository(ctrl),
		hashSvc:       mocks.NewMockHashService(ctrl),
		transactor:    mocks.NewMockDBTransactor(ctrl),
		ctrl:          ctrl,
	}
	d.svc = NewCustomerService(
		d.customerRepo, d.principalRepo, d.entryRepo, d.hashSvc, d.transactor,
		config.ProvisionConfig{EmailDomain: "customer.minibank.com"},
		zerolog.Nop(),
	)
	return d
}

func createReq() ports.CreateCustomerRequest {
	return ports.CreateCustomerRequest{
		Name:      "John Doe",
		Address:   "42 Elm Street",
		Phone:     "+84901234567",
		BirthDate: time.Date(1990, 5, 20, 0, 0, 0, 0, time.UTC),
	}
}

// ==================== List Tests ====================

func TestCustomerService_List_AdminSeesAll(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.customerRepo.EXPECT().List(ctx, ports.CustomerListParams{OwnerID: nil, Page: 1, PageSize: 10}).
		Return([]ports.CustomerWithBalance{}, int64(3), nil)

	_, total, err := d.svc.List(ctx, adminPrincipal(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestCustomerService_List_CustomerScopedToOwn(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	p := customerPrincipal()

	d.customerRepo.EXPECT().List(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, params ports.CustomerListParams) ([]ports.CustomerWithBalance, int64, error) {
			require.NotNil(t, params.OwnerID)
			assert.Equal(t, p.ID, *params.OwnerID)
			return nil, 0, nil
		})

	_, _, err := d.svc.List(ctx, p, 1, 10)
	assert.NoError(t, err)
}

// ==================== Get Tests ====================

func TestCustomerService_Get_OwnerSeesDetail(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	p := customerPrincipal()
	customer := ownedCustomer(p.ID)
	entries := []domain.LedgerEntry{
		{ID: uuid.New(), CustomerID: customer.ID, Amount: dec("100000"), Type: domain.EntryTypeDeposit},
	}

	d.customerRepo.EXPECT().GetByID(ctx, customer.ID).Return(customer, nil)
	d.entryRepo.EXPECT().SumByCustomer(ctx, customer.ID).Return(dec("100000"), nil)
	d.entryRepo.EXPECT().ListAllByCustomer(ctx, customer.ID).Return(entries, nil)

	detail, err := d.svc.Get(ctx, p, customer.ID)
	require.NoError(t, err)
	assert.True(t, dec("100000").Equal(detail.Balance))
	assert.Len(t, detail.Entries, 1)
}

func TestCustomerService_Get_CrossCustomerForbidden(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	p := customerPrincipal()
	other := ownedCustomer(uuid.New())

	d.customerRepo.EXPECT().GetByID(ctx, other.ID).Return(other, nil)

	_, err := d.svc.Get(ctx, p, other.ID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_004", appErr.Code)
}

// ==================== Create Tests ====================

func TestCustomerService_Create_ProvisionsPrincipal(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	admin := adminPrincipal()
	tx := &mockTx{}

	d.principalRepo.EXPECT().UsernameExists(ctx, "johndoe").Return(false, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("hashed", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.principalRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, p *domain.Principal) error {
			assert.Equal(t, "johndoe", p.Username)
			assert.Equal(t, "johndoe@customer.minibank.com", p.Email)
			assert.Equal(t, []domain.Role{domain.RoleCustomer}, p.Roles)
			return nil
		})
	d.customerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	result, err := d.svc.Create(ctx, admin, createReq())
	require.NoError(t, err)
	assert.Equal(t, "johndoe", result.Username)
	assert.NotEmpty(t, result.Password, "one-time credential must be returned")
	assert.Equal(t, result.Customer.Name, "John Doe")
}

func TestCustomerService_Create_UsernameCollisionGetsCounter(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.principalRepo.EXPECT().UsernameExists(ctx, "johndoe").Return(true, nil)
	d.principalRepo.EXPECT().UsernameExists(ctx, "johndoe1").Return(true, nil)
	d.principalRepo.EXPECT().UsernameExists(ctx, "johndoe2").Return(false, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("hashed", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.principalRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.customerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	result, err := d.svc.Create(ctx, adminPrincipal(), createReq())
	require.NoError(t, err)
	assert.Equal(t, "johndoe2", result.Username)
}

func TestCustomerService_Create_LinksExistingPrincipal(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	owner := customerPrincipal()
	tx := &mockTx{}

	req := createReq()
	req.OwnerUsername = &owner.Username

	d.principalRepo.EXPECT().GetByUsername(ctx, owner.Username).Return(owner, nil)
	d.customerRepo.EXPECT().GetByOwner(ctx, owner.ID).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.customerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	result, err := d.svc.Create(ctx, adminPrincipal(), req)
	require.NoError(t, err)
	assert.Equal(t, owner.Username, result.Username)
	assert.Empty(t, result.Password, "no credential is minted for an existing principal")
}

func TestCustomerService_Create_ExistingOwnerConflict(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	owner := customerPrincipal()
	req := createReq()
	req.OwnerUsername = &owner.Username

	d.principalRepo.EXPECT().GetByUsername(ctx, owner.Username).Return(owner, nil)
	d.customerRepo.EXPECT().GetByOwner(ctx, owner.ID).Return(ownedCustomer(owner.ID), nil)

	_, err := d.svc.Create(ctx, adminPrincipal(), req)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "RES_002", appErr.Code)
}

func TestCustomerService_Create_OwnerRaceConflict(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	owner := customerPrincipal()
	tx := &mockTx{}

	req := createReq()
	req.OwnerUsername = &owner.Username

	// The pre-check passes but a concurrent create wins the partial unique
	// index on owner_id.
	d.principalRepo.EXPECT().GetByUsername(ctx, owner.Username).Return(owner, nil)
	d.customerRepo.EXPECT().GetByOwner(ctx, owner.ID).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.customerRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		Return(fmt.Errorf("insert customer: %w", ports.ErrUniqueViolation))

	_, err := d.svc.Create(ctx, adminPrincipal(), req)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "RES_002", appErr.Code)
}

func TestCustomerService_Create_NonAdminForbidden(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Create(context.Background(), customerPrincipal(), createReq())
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_004", appErr.Code)
}

// ==================== Update Tests ====================

func TestCustomerService_Update_PartialFields(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	p := customerPrincipal()
	customer := ownedCustomer(p.ID)
	customer.Name = "John Doe"
	customer.Phone = "+84901234567"

	newPhone := "+84907654321"

	d.customerRepo.EXPECT().GetByID(ctx, customer.ID).Return(customer, nil)
	d.customerRepo.EXPECT().Update(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, c *domain.Customer) error {
			assert.Equal(t, "John Doe", c.Name, "unset fields stay untouched")
			assert.Equal(t, newPhone, c.Phone)
			return nil
		})

	updated, err := d.svc.Update(ctx, p, customer.ID, ports.UpdateCustomerRequest{Phone: &newPhone})
	require.NoError(t, err)
	assert.Equal(t, newPhone, updated.Phone)
}

func TestCustomerService_Update_NotFound(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()

	d.customerRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	_, err := d.svc.Update(ctx, adminPrincipal(), id, ports.UpdateCustomerRequest{})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "RES_001", appErr.Code)
}

// ==================== SoftDelete Tests ====================

func TestCustomerService_SoftDelete_AdminOnly(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	p := customerPrincipal()
	own := ownedCustomer(p.ID)

	d.customerRepo.EXPECT().GetByID(ctx, own.ID).Return(own, nil)

	// Even the owner cannot delete their own record.
	err := d.svc.SoftDelete(ctx, p, own.ID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_004", appErr.Code)
}

func TestCustomerService_SoftDelete_Success(t *testing.T) {
	d := setupCustomerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customer := ownedCustomer(uuid.New())

	d.customerRepo.EXPECT().GetByID(ctx, customer.ID).Return(customer, nil)
	d.customerRepo.EXPECT().SoftDelete(ctx, customer.ID).Return(nil)

	err := d.svc.SoftDelete(ctx, adminPrincipal(), customer.ID)
	assert.NoError(t, err)
}
