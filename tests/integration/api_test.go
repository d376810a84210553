package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger-service/config"
	httpHandler "wallet-ledger-service/internal/adapter/http/handler"
	redisStorage "wallet-ledger-service/internal/adapter/storage/redis"
	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/service"
	"wallet-ledger-service/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds a full application stack: real HTTP layer, middleware,
// handlers, and services, backed by in-memory repos and miniredis. Only
// PostgreSQL and Kafka are swapped out.

type testApp struct {
	server     *httptest.Server
	redis      *miniredis.Miniredis
	principals *inMemoryPrincipalRepo
	hashSvc    *service.Argon2HashService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	principalRepo, customerRepo, entryRepo := wireInMemoryRepos()
	transactor := newInMemoryTransactor()

	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")
	log := logger.New("error", false)

	authSvc := service.NewAuthService(principalRepo, hashSvc, tokenSvc)
	customerSvc := service.NewCustomerService(
		customerRepo, principalRepo, entryRepo, hashSvc, transactor,
		config.ProvisionConfig{EmailDomain: "customer.minibank.com"},
		log,
	)
	ledgerSvc := service.NewLedgerService(entryRepo, customerRepo, transactor, nil, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		CustomerSvc:    customerSvc,
		LedgerSvc:      ledgerSvc,
		TokenSvc:       tokenSvc,
		PrincipalRepo:  principalRepo,
		RateLimitStore: rateLimitStore,
		Logger:         log,
	})

	app := &testApp{
		server:     httptest.NewServer(router),
		redis:      mr,
		principals: principalRepo,
		hashSvc:    hashSvc,
	}
	t.Cleanup(func() {
		app.server.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return app
}

// seedAdmin creates an admin principal directly in the store.
func (a *testApp) seedAdmin(t *testing.T, username, password string) {
	t.Helper()
	hash, err := a.hashSvc.Hash(password)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, a.principals.Create(t.Context(), nil, &domain.Principal{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@minibank.com",
		PasswordHash: hash,
		Roles:        []domain.Role{domain.RoleAdmin},
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

// do issues a request and decodes the JSON envelope.
func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	return resp.StatusCode, decoded
}

func (a *testApp) login(t *testing.T, username, password string) string {
	t.Helper()
	status, resp := a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, status, "login failed: %v", resp)
	return resp["data"].(map[string]interface{})["token"].(string)
}

// createCustomer provisions a customer as admin and returns its id plus the
// one-time credentials.
func (a *testApp) createCustomer(t *testing.T, adminToken, name string) (customerID, username, password string) {
	t.Helper()
	status, resp := a.do(t, http.MethodPost, "/api/v1/customers", adminToken, map[string]string{
		"name":       name,
		"address":    "42 Elm Street",
		"phone":      "+84901234567",
		"birth_date": "1990-05-20",
	})
	require.Equal(t, http.StatusCreated, status, "create customer failed: %v", resp)

	data := resp["data"].(map[string]interface{})
	customerID = data["customer"].(map[string]interface{})["id"].(string)
	username = data["username"].(string)
	password = data["password"].(string)
	require.NotEmpty(t, password, "one-time credential must be returned")
	return customerID, username, password
}

func TestLedgerFlow_EndToEnd(t *testing.T) {
	app := newTestApp(t)
	app.seedAdmin(t, "root", "admin-secret")
	adminToken := app.login(t, "root", "admin-secret")

	customerID, username, password := app.createCustomer(t, adminToken, "John Doe")
	token := app.login(t, username, password)

	// Deposit 100000, withdraw 50000, deposit 25000.
	status, resp := app.do(t, http.MethodPost, "/api/v1/transactions/deposit", token, map[string]string{"amount": "100000"})
	require.Equal(t, http.StatusCreated, status, "deposit failed: %v", resp)
	assert.Equal(t, "100000", resp["data"].(map[string]interface{})["current_balance"])

	status, resp = app.do(t, http.MethodPost, "/api/v1/transactions/withdraw", token, map[string]string{"amount": "50000"})
	require.Equal(t, http.StatusCreated, status, "withdraw failed: %v", resp)
	assert.Equal(t, "50000", resp["data"].(map[string]interface{})["current_balance"])

	status, _ = app.do(t, http.MethodPost, "/api/v1/transactions/deposit", token, map[string]string{"amount": "25000"})
	require.Equal(t, http.StatusCreated, status)

	// Balance is the signed sum of the three entries.
	status, resp = app.do(t, http.MethodGet, "/api/v1/customers/"+customerID+"/balance", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "75000", resp["data"].(map[string]interface{})["balance"])

	// Overdraft attempt is rejected with the balance context.
	status, resp = app.do(t, http.MethodPost, "/api/v1/transactions/withdraw", token, map[string]string{"amount": "80000"})
	require.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "LED_002", resp["error_code"])
	details := resp["details"].(map[string]interface{})
	assert.Equal(t, "75000", details["current_balance"])
	assert.Equal(t, "80000", details["requested_amount"])

	// Filtered history: total counts the filtered set, filter_total sums it,
	// both independent of the page size.
	status, resp = app.do(t, http.MethodGet, "/api/v1/customers/"+customerID+"/transactions?type=deposit&page=1&page_size=1", token, nil)
	require.Equal(t, http.StatusOK, status)
	data := resp["data"].(map[string]interface{})
	assert.Len(t, data["items"], 1)
	assert.Equal(t, float64(2), data["total"])
	assert.Equal(t, "125000", data["filter_total"])

	// Invalid amounts never reach the ledger.
	status, resp = app.do(t, http.MethodPost, "/api/v1/transactions/deposit", token, map[string]string{"amount": "10.123"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "LED_001", resp["error_code"])
}

func TestCrossCustomerAccessForbidden(t *testing.T) {
	app := newTestApp(t)
	app.seedAdmin(t, "root", "admin-secret")
	adminToken := app.login(t, "root", "admin-secret")

	_, usernameA, passwordA := app.createCustomer(t, adminToken, "Alice Nguyen")
	customerB, _, _ := app.createCustomer(t, adminToken, "Bob Tran")

	tokenA := app.login(t, usernameA, passwordA)

	status, resp := app.do(t, http.MethodGet, "/api/v1/customers/"+customerB+"/balance", tokenA, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AUTH_004", resp["error_code"])

	status, _ = app.do(t, http.MethodGet, "/api/v1/customers/"+customerB+"/transactions", tokenA, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Admin sees both customers; the customer only their own record.
	status, resp = app.do(t, http.MethodGet, "/api/v1/customers", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), resp["data"].(map[string]interface{})["total"])

	status, resp = app.do(t, http.MethodGet, "/api/v1/customers", tokenA, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), resp["data"].(map[string]interface{})["total"])
}

func TestAdminReversal(t *testing.T) {
	app := newTestApp(t)
	app.seedAdmin(t, "root", "admin-secret")
	adminToken := app.login(t, "root", "admin-secret")

	customerID, username, password := app.createCustomer(t, adminToken, "John Doe")
	token := app.login(t, username, password)

	status, _ := app.do(t, http.MethodPost, "/api/v1/transactions/deposit", token, map[string]string{"amount": "100000"})
	require.Equal(t, http.StatusCreated, status)
	status, resp := app.do(t, http.MethodPost, "/api/v1/transactions/withdraw", token, map[string]string{"amount": "50000"})
	require.Equal(t, http.StatusCreated, status)
	withdrawalID := resp["data"].(map[string]interface{})["transaction"].(map[string]interface{})["id"].(string)

	// The global listing is admin-only and annotated with ownership context.
	status, resp = app.do(t, http.MethodGet, "/api/v1/transactions", token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, resp = app.do(t, http.MethodGet, "/api/v1/transactions", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["total"])
	first := data["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "John Doe", first["customer_name"])
	assert.Equal(t, username, first["owner_username"])

	// Customers cannot reverse, not even their own entries.
	status, _ = app.do(t, http.MethodDelete, "/api/v1/transactions/"+withdrawalID, token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Reversing the withdrawal restores its amount to the balance.
	status, _ = app.do(t, http.MethodDelete, "/api/v1/transactions/"+withdrawalID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, resp = app.do(t, http.MethodGet, "/api/v1/customers/"+customerID+"/balance", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "100000", resp["data"].(map[string]interface{})["balance"])

	// A reversed entry is gone; reversing it again is a 404.
	status, resp = app.do(t, http.MethodDelete, "/api/v1/transactions/"+withdrawalID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "RES_001", resp["error_code"])
}

func TestAuthFlows(t *testing.T) {
	app := newTestApp(t)
	app.seedAdmin(t, "root", "admin-secret")

	// Wrong password and unknown user map to the same error.
	status, resp := app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "root", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_002", resp["error_code"])

	status, resp = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "ghost", "password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_002", resp["error_code"])

	// Protected routes require a token.
	status, _ = app.do(t, http.MethodGet, "/api/v1/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	token := app.login(t, "root", "admin-secret")
	status, resp = app.do(t, http.MethodGet, "/api/v1/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "root", data["username"])
	assert.Contains(t, data["roles"], "admin")

	// Password change invalidates the old credential for future logins.
	status, _ = app.do(t, http.MethodPut, "/api/v1/auth/password", token, map[string]string{
		"old_password": "admin-secret", "new_password": "rotated-secret-1",
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "root", "password": "admin-secret",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	_ = app.login(t, "root", "rotated-secret-1")
}

func TestRateLimit_LoginBlocked(t *testing.T) {
	app := newTestApp(t)
	app.seedAdmin(t, "root", "admin-secret")

	// auth_login allows 10 per minute per client; burn through them.
	var lastStatus int
	for i := 0; i < 11; i++ {
		lastStatus, _ = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "root", "password": fmt.Sprintf("wrong-%d", i),
		})
	}
	assert.Equal(t, http.StatusTooManyRequests, lastStatus)

	// A fresh window allows logins again.
	app.redis.FastForward(61 * time.Second)
	_ = app.login(t, "root", "admin-secret")
}
