package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/internal/repository"
	xhttp "github.com/waveline/campaign-engine/pkg/http"
)

type CreditRepository interface {
	GetBalance(ctx context.Context, tenantID int64) (*model.CreditBalance, error)
	Add(ctx context.Context, tenantID int64, amount int64) (int64, error)
}

type CreditHandler struct {
	credits CreditRepository
}

func RegisterCreditRoutes(e *router.Group, h *CreditHandler) {
	e.GET("/credits", h.GetBalance)
	e.POST("/credits/topup", h.TopUp)
}

func NewCreditHandler(credits CreditRepository) *CreditHandler {
	return &CreditHandler{
		credits: credits,
	}
}

type topUpRequest struct {
	TenantID int64 `json:"tenant_id"`
	Amount   int64 `json:"amount"`
}

type topUpResponse struct {
	TenantID  int64 `json:"tenant_id"`
	Remaining int64 `json:"remaining"`
}

func (h *CreditHandler) GetBalance(ctx *xhttp.RequestCtx) {
	tenantID, err := strconv.ParseInt(query(ctx, "tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		writeError(ctx, 400, "tenant_id is required")
		return
	}

	balance, err := h.credits.GetBalance(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrTenantNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, balance)
}

func (h *CreditHandler) TopUp(ctx *xhttp.RequestCtx) {
	var req topUpRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.TenantID <= 0 || req.Amount <= 0 {
		writeError(ctx, 422, "tenant_id and a positive amount are required")
		return
	}

	remaining, err := h.credits.Add(ctx, req.TenantID, req.Amount)
	if err != nil {
		if errors.Is(err, repository.ErrTenantNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, topUpResponse{TenantID: req.TenantID, Remaining: remaining})
}
