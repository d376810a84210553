package handler

import (
	"strconv"
	"time"

	"wallet-ledger-service/internal/adapter/http/dto"
	"wallet-ledger-service/internal/adapter/http/middleware"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"
	"wallet-ledger-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	dateLayout      = "2006-01-02"
)

// CustomerHandler handles customer directory endpoints.
type CustomerHandler struct {
	customerSvc ports.CustomerService
	ledgerSvc   ports.LedgerService
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(customerSvc ports.CustomerService, ledgerSvc ports.LedgerService) *CustomerHandler {
	return &CustomerHandler{customerSvc: customerSvc, ledgerSvc: ledgerSvc}
}

// List handles GET /api/v1/customers.
func (h *CustomerHandler) List(c *gin.Context) {
	principal := middleware.PrincipalFromContext(c)
	page, pageSize := parsePagination(c)

	customers, total, err := h.customerSvc.List(c.Request.Context(), principal, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := response.NewPageMeta(total, page, pageSize)
	response.OK(c, dto.CustomerListResponse{
		Items:      dto.FromCustomersWithBalance(customers),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: meta.TotalPages,
	})
}

// Get handles GET /api/v1/customers/:id.
func (h *CustomerHandler) Get(c *gin.Context) {
	principal := middleware.PrincipalFromContext(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer id"))
		return
	}

	detail, err := h.customerSvc.Get(c.Request.Context(), principal, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.CustomerDetailResponse{
		CustomerResponse: dto.FromCustomer(detail.Customer),
		Balance:          detail.Balance,
		Transactions:     dto.FromEntries(detail.Entries),
	})
}

// Create handles POST /api/v1/customers.
func (h *CustomerHandler) Create(c *gin.Context) {
	principal := middleware.PrincipalFromContext(c)

	var req dto.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	birthDate, err := time.Parse(dateLayout, req.BirthDate)
	if err != nil {
		response.Error(c, apperror.Validation("birth_date must be YYYY-MM-DD"))
		return
	}

	result, err := h.customerSvc.Create(c.Request.Context(), principal, ports.CreateCustomerRequest{
		Name:          req.Name,
		Address:       req.Address,
		Phone:         req.Phone,
		BirthDate:     birthDate,
		OwnerUsername: req.OwnerUsername,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ProvisionedCustomerResponse{
		Customer: dto.FromCustomer(*result.Customer),
		Username: result.Username,
		Email:    result.Email,
		Password: result.Password,
	})
}

// Update handles PUT and PATCH /api/v1/customers/:id.
func (h *CustomerHandler) Update(c *gin.Context) {
	principal := middleware.PrincipalFromContext(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer id"))
		return
	}

	var req dto.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	update := ports.UpdateCustomerRequest{
		Name:    req.Name,
		Address: req.Address,
		Phone:   req.Phone,
	}
	if req.BirthDate != nil {
		birthDate, err := time.Parse(dateLayout, *req.BirthDate)
		if err != nil {
			response.Error(c, apperror.Validation("birth_date must be YYYY-MM-DD"))
			return
		}
		update.BirthDate = &birthDate
	}

	customer, err := h.customerSvc.Update(c.Request.Context(), principal, id, update)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromCustomer(*customer))
}

// Delete handles DELETE /api/v1/customers/:id.
func (h *CustomerHandler) Delete(c *gin.Context) {
	principal := middleware.PrincipalFromContext(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer id"))
		return
	}

	if err := h.customerSvc.SoftDelete(c.Request.Context(), principal, id); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "customer deleted"})
}

// Balance handles GET /api/v1/customers/:id/balance.
func (h *CustomerHandler) Balance(c *gin.Context) {
	principal := middleware.PrincipalFromContext(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer id"))
		return
	}

	balance, err := h.ledgerSvc.Balance(c.Request.Context(), principal, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		CustomerID: id.String(),
		Balance:    balance,
	})
}

// Transactions handles GET /api/v1/customers/:id/transactions.
func (h *CustomerHandler) Transactions(c *gin.Context) {
	principal := middleware.PrincipalFromContext(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer id"))
		return
	}

	params, err := parseHistoryParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.ledgerSvc.History(c.Request.Context(), principal, id, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := response.NewPageMeta(result.Total, params.Page, params.PageSize)
	response.OK(c, dto.TransactionListResponse{
		Items:       dto.FromEntries(result.Entries),
		Total:       result.Total,
		FilterTotal: result.FilterTotal,
		Page:        params.Page,
		PageSize:    params.PageSize,
		TotalPages:  meta.TotalPages,
	})
}

// parsePagination reads page and limit query params with defaults. page_size
// is accepted as an alias for limit.
func parsePagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	raw := c.Query("limit")
	if raw == "" {
		raw = c.Query("page_size")
	}
	pageSize, err := strconv.Atoi(raw)
	if err != nil || pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// parseHistoryParams reads pagination plus the entry filter query params.
func parseHistoryParams(c *gin.Context) (ports.HistoryParams, error) {
	page, pageSize := parsePagination(c)
	params := ports.HistoryParams{Page: page, PageSize: pageSize}

	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return params, apperror.Validation("start_date must be YYYY-MM-DD")
		}
		params.Filter.StartDate = &t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return params, apperror.Validation("end_date must be YYYY-MM-DD")
		}
		params.Filter.EndDate = &t
	}
	if raw := c.Query("type"); raw != "" {
		entryType, err := parseEntryType(raw)
		if err != nil {
			return params, err
		}
		params.Filter.Type = &entryType
	}

	return params, nil
}
