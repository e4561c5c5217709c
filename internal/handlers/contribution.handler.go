package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	xhttp "github.com/interfacehive/credit-engine/pkg/http"
)

type ContributionService interface {
	Submit(ctx context.Context, req model.SubmitRequest) (*model.Contribution, error)
	Decide(ctx context.Context, contributionID uuid.UUID, decider model.Principal, decision model.Decision) (*model.DecisionResult, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Contribution, error)
	List(ctx context.Context, f model.ContributionFilter) ([]*model.Contribution, int64, error)
}

type ContributionHandler struct {
	svc ContributionService
}

func NewContributionHandler(svc ContributionService) *ContributionHandler {
	return &ContributionHandler{svc: svc}
}

func RegisterContributionRoutes(e *router.Group, h *ContributionHandler) {
	e.POST("/projects/{project_id}/contributions", h.Submit)
	e.GET("/projects/{project_id}/contributions", h.ListByProject)
	e.POST("/contributions/{id}/accept", h.Accept)
	e.POST("/contributions/{id}/decline", h.Decline)
	e.GET("/contributions/{id}", h.Get)
	e.GET("/contributions", h.ListMine)
}

type submitRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type decisionResponse struct {
	Contribution  *model.Contribution      `json:"contribution"`
	CreditEntry   *model.CreditLedgerEntry `json:"credit_entry,omitempty"`
	CreditAwarded bool                     `json:"credit_awarded"`
}

type contributionListResponse struct {
	Items []*model.Contribution `json:"items"`
	Total int64                 `json:"total"`
}

func (h *ContributionHandler) Submit(ctx *xhttp.RequestCtx) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	projectID, ok := pathUUID(ctx, "project_id")
	if !ok {
		return
	}

	var req submitRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	created, err := h.svc.Submit(ctx, model.SubmitRequest{
		ProjectID:     projectID,
		ContributorID: p.UserID,
		Title:         req.Title,
		Body:          req.Body,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, created)
}

func (h *ContributionHandler) Accept(ctx *xhttp.RequestCtx) {
	h.decide(ctx, model.DecisionAccept)
}

func (h *ContributionHandler) Decline(ctx *xhttp.RequestCtx) {
	h.decide(ctx, model.DecisionDecline)
}

func (h *ContributionHandler) decide(ctx *xhttp.RequestCtx, decision model.Decision) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	result, err := h.svc.Decide(ctx, id, p, decision)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, decisionResponse{
		Contribution:  result.Contribution,
		CreditEntry:   result.CreditEntry,
		CreditAwarded: result.CreditAwarded,
	})
}

func (h *ContributionHandler) Get(ctx *xhttp.RequestCtx) {
	if _, ok := principal(ctx); !ok {
		return
	}
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	c, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, c)
}

func (h *ContributionHandler) ListByProject(ctx *xhttp.RequestCtx) {
	if _, ok := principal(ctx); !ok {
		return
	}
	projectID, ok := pathUUID(ctx, "project_id")
	if !ok {
		return
	}

	f := model.ContributionFilter{
		ProjectID: &projectID,
		Limit:     queryInt(ctx, "limit"),
		Offset:    queryInt(ctx, "offset"),
	}
	if v := query(ctx, "status"); v != "" {
		status := model.ContributionStatus(v)
		f.Status = &status
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, contributionListResponse{Items: items, Total: total})
}

// ListMine returns the caller's own submissions across projects.
func (h *ContributionHandler) ListMine(ctx *xhttp.RequestCtx) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	f := model.ContributionFilter{
		ContributorID: &p.UserID,
		Limit:         queryInt(ctx, "limit"),
		Offset:        queryInt(ctx, "offset"),
	}
	if v := query(ctx, "status"); v != "" {
		status := model.ContributionStatus(v)
		f.Status = &status
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, contributionListResponse{Items: items, Total: total})
}
