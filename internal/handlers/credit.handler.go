package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	xhttp "github.com/interfacehive/credit-engine/pkg/http"
)

type CreditService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*model.Balance, error)
	GetLedger(ctx context.Context, userID uuid.UUID, limit int) ([]*model.CreditLedgerEntry, error)
}

type CreditHandler struct {
	svc CreditService
}

func NewCreditHandler(svc CreditService) *CreditHandler {
	return &CreditHandler{svc: svc}
}

func RegisterCreditRoutes(e *router.Group, h *CreditHandler) {
	e.GET("/credits/balance", h.Balance)
	e.GET("/credits/ledger", h.Ledger)
	e.GET("/users/{id}/credits", h.UserBalance)
}

type ledgerResponse struct {
	Items []*model.CreditLedgerEntry `json:"items"`
}

// Balance returns the caller's own balance, freshly aggregated.
func (h *CreditHandler) Balance(ctx *xhttp.RequestCtx) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	balance, err := h.svc.GetBalance(ctx, p.UserID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, balance)
}

func (h *CreditHandler) Ledger(ctx *xhttp.RequestCtx) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	entries, err := h.svc.GetLedger(ctx, p.UserID, queryInt(ctx, "limit"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, ledgerResponse{Items: entries})
}

// UserBalance is the public credit total for any user.
func (h *CreditHandler) UserBalance(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	balance, err := h.svc.GetBalance(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, balance)
}
