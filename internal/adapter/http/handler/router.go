package handler

import (
	"wallet-ledger-service/internal/adapter/http/middleware"
	redisStore "wallet-ledger-service/internal/adapter/storage/redis"
	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	CustomerSvc    ports.CustomerService
	LedgerSvc      ports.LedgerService
	TokenSvc       ports.TokenService
	PrincipalRepo  ports.PrincipalRepository
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.PrincipalRepo, deps.Logger)

	// --- Auth ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", rl("auth_login"), authHandler.Login)
		auth.GET("/profile", jwtAuth, authHandler.Profile)
		auth.PUT("/password", jwtAuth, rl("auth_password"), authHandler.ChangePassword)
	}

	// --- Customer directory ---
	customerHandler := NewCustomerHandler(deps.CustomerSvc, deps.LedgerSvc)
	customers := v1.Group("/customers", jwtAuth)
	{
		customers.GET("", rl("customers"), customerHandler.List)
		customers.POST("", rl("customers"), customerHandler.Create)
		customers.GET("/:id", rl("customers"), customerHandler.Get)
		customers.PUT("/:id", rl("customers"), customerHandler.Update)
		customers.PATCH("/:id", rl("customers"), customerHandler.Update)
		customers.DELETE("/:id", rl("customers"), customerHandler.Delete)
		customers.GET("/:id/balance", rl("customers"), customerHandler.Balance)
		customers.GET("/:id/transactions", rl("customers"), customerHandler.Transactions)
	}

	// --- Money movement & ledger listings ---
	transactionHandler := NewTransactionHandler(deps.LedgerSvc)
	transactions := v1.Group("/transactions", jwtAuth)
	{
		transactions.POST("/deposit", rl("movements"), transactionHandler.Deposit)
		transactions.POST("/withdraw", rl("movements"), transactionHandler.Withdraw)
		transactions.GET("", middleware.RequireRoles(domain.RoleAdmin), transactionHandler.ListAll)
		transactions.DELETE("/:id", middleware.RequireRoles(domain.RoleAdmin), transactionHandler.Reverse)
	}

	return r
}
