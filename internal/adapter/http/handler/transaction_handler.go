package handler

import (
	"context"

	"wallet-ledger-service/internal/adapter/http/dto"
	"wallet-ledger-service/internal/adapter/http/middleware"
	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"
	"wallet-ledger-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransactionHandler handles money movement and ledger listing endpoints.
type TransactionHandler struct {
	ledgerSvc ports.LedgerService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ledgerSvc ports.LedgerService) *TransactionHandler {
	return &TransactionHandler{ledgerSvc: ledgerSvc}
}

// Deposit handles POST /api/v1/transactions/deposit.
func (h *TransactionHandler) Deposit(c *gin.Context) {
	h.move(c, h.ledgerSvc.Deposit)
}

// Withdraw handles POST /api/v1/transactions/withdraw.
func (h *TransactionHandler) Withdraw(c *gin.Context) {
	h.move(c, h.ledgerSvc.Withdraw)
}

type moveFunc func(ctx context.Context, p *domain.Principal, req ports.MovementRequest) (*ports.MovementResult, error)

func (h *TransactionHandler) move(c *gin.Context, fn moveFunc) {
	principal := middleware.PrincipalFromContext(c)

	var req dto.MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	// A missing amount binds as decimal zero, which the required tag does not
	// catch for struct-typed fields.
	if req.Amount.IsZero() {
		response.Error(c, apperror.Validation("amount is required"))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := fn(c.Request.Context(), principal, ports.MovementRequest{
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.MovementResultResponse{
		Transaction:    dto.FromEntry(*result.Entry),
		CurrentBalance: result.CurrentBalance,
	})
}

// ListAll handles GET /api/v1/transactions (admin only).
func (h *TransactionHandler) ListAll(c *gin.Context) {
	principal := middleware.PrincipalFromContext(c)

	params, err := parseHistoryParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.ledgerSvc.ListAll(c.Request.Context(), principal, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.GlobalTransactionResponse, 0, len(result.Entries))
	for _, e := range result.Entries {
		items = append(items, dto.GlobalTransactionResponse{
			TransactionResponse: dto.FromEntry(e.LedgerEntry),
			CustomerName:        e.CustomerName,
			OwnerUsername:       e.OwnerUsername,
		})
	}

	meta := response.NewPageMeta(result.Total, params.Page, params.PageSize)
	response.OK(c, dto.GlobalTransactionListResponse{
		Items:       items,
		Total:       result.Total,
		FilterTotal: result.FilterTotal,
		Page:        params.Page,
		PageSize:    params.PageSize,
		TotalPages:  meta.TotalPages,
	})
}

// Reverse handles DELETE /api/v1/transactions/:id (admin only).
func (h *TransactionHandler) Reverse(c *gin.Context) {
	principal := middleware.PrincipalFromContext(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	if err := h.ledgerSvc.Reverse(c.Request.Context(), principal, id); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "transaction reversed"})
}

// parseEntryType validates the type filter query param.
func parseEntryType(raw string) (domain.EntryType, error) {
	switch domain.EntryType(raw) {
	case domain.EntryTypeDeposit:
		return domain.EntryTypeDeposit, nil
	case domain.EntryTypeWithdraw:
		return domain.EntryTypeWithdraw, nil
	default:
		return "", apperror.Validation("type must be deposit or withdraw")
	}
}
