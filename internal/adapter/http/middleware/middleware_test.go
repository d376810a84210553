package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	principalRepo := mocks.NewMockPrincipalRepository(ctrl)
	log := zerolog.Nop()

	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, principalRepo, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	principalRepo := mocks.NewMockPrincipalRepository(ctrl)
	log := zerolog.Nop()

	tokenSvc.EXPECT().Validate("bad_token").Return(nil, assert.AnError)

	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, principalRepo, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer bad_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_PrincipalGone(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	principalRepo := mocks.NewMockPrincipalRepository(ctrl)
	log := zerolog.Nop()

	principalID := uuid.New()
	tokenSvc.EXPECT().Validate("orphan_token").Return(&ports.TokenClaims{PrincipalID: principalID}, nil)
	principalRepo.EXPECT().GetByID(gomock.Any(), principalID).Return(nil, nil)

	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, principalRepo, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer orphan_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_Success_RolesComeFromStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	principalRepo := mocks.NewMockPrincipalRepository(ctrl)
	log := zerolog.Nop()

	principalID := uuid.New()
	// The token still claims the customer role; the stored record has been
	// promoted since it was issued.
	tokenSvc.EXPECT().Validate("good_token").Return(&ports.TokenClaims{
		PrincipalID: principalID,
		Username:    "johndoe",
		Roles:       []domain.Role{domain.RoleCustomer},
	}, nil)
	principalRepo.EXPECT().GetByID(gomock.Any(), principalID).Return(&domain.Principal{
		ID:       principalID,
		Username: "johndoe",
		Roles:    []domain.Role{domain.RoleAdmin},
	}, nil)

	var captured *domain.Principal
	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, principalRepo, log), func(c *gin.Context) {
		captured = PrincipalFromContext(c)
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer good_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured)
	assert.Equal(t, principalID, captured.ID)
	assert.True(t, captured.IsAdmin(), "roles reflect the stored record, not the token")
}

func TestRequireRoles_Forbidden(t *testing.T) {
	router := gin.New()
	router.GET("/admin",
		func(c *gin.Context) {
			c.Set(CtxPrincipal, &domain.Principal{ID: uuid.New(), Roles: []domain.Role{domain.RoleCustomer}})
		},
		RequireRoles(domain.RoleAdmin),
		func(c *gin.Context) {
			c.JSON(200, gin.H{"ok": true})
		})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRoles_Allowed(t *testing.T) {
	router := gin.New()
	router.GET("/admin",
		func(c *gin.Context) {
			c.Set(CtxPrincipal, &domain.Principal{ID: uuid.New(), Roles: []domain.Role{domain.RoleAdmin}})
		},
		RequireRoles(domain.RoleAdmin),
		func(c *gin.Context) {
			c.JSON(200, gin.H{"ok": true})
		})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoles_MissingPrincipal(t *testing.T) {
	router := gin.New()
	router.GET("/admin", RequireRoles(domain.RoleAdmin), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestID_PreservesIncoming(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "client-supplied-id", w.Header().Get("X-Request-ID"))
}

func TestRecovery_PanicRecovered(t *testing.T) {
	log := zerolog.Nop()

	router := gin.New()
	router.Use(Recovery(log))
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SYS_001", resp["error_code"])
}
