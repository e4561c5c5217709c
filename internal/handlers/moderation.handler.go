package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	xhttp "github.com/interfacehive/credit-engine/pkg/http"
)

type ModerationService interface {
	ReverseCredit(ctx context.Context, entryID uuid.UUID, moderator model.Principal, reason string, meta model.RequestMeta) (*model.ReversalResult, error)
	SoftDeleteContribution(ctx context.Context, id uuid.UUID, moderator model.Principal, reason string, meta model.RequestMeta) (*model.Contribution, error)
	SoftDeleteProject(ctx context.Context, id uuid.UUID, moderator model.Principal, reason string, meta model.RequestMeta) error
	BanUser(ctx context.Context, userID uuid.UUID, moderator model.Principal, reason string, meta model.RequestMeta) error
	UnbanUser(ctx context.Context, userID uuid.UUID, moderator model.Principal, reason string, meta model.RequestMeta) error
	AuditTrail(ctx context.Context, moderator model.Principal, targetType string, targetID uuid.UUID, limit int) ([]*model.ModerationLog, error)
}

type ModerationHandler struct {
	svc ModerationService
}

func NewModerationHandler(svc ModerationService) *ModerationHandler {
	return &ModerationHandler{svc: svc}
}

func RegisterModerationRoutes(e *router.Group, h *ModerationHandler) {
	e.POST("/admin/credits/{entry_id}/reverse", h.ReverseCredit)
	e.POST("/admin/contributions/{id}/soft-delete", h.SoftDeleteContribution)
	e.POST("/admin/projects/{id}/soft-delete", h.SoftDeleteProject)
	e.POST("/admin/users/{id}/ban", h.BanUser)
	e.POST("/admin/users/{id}/unban", h.UnbanUser)
	e.GET("/admin/audit/{target_type}/{id}", h.AuditTrail)
}

type moderationRequest struct {
	Reason string `json:"reason"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (h *ModerationHandler) ReverseCredit(ctx *xhttp.RequestCtx) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	entryID, ok := pathUUID(ctx, "entry_id")
	if !ok {
		return
	}
	var req moderationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	result, err := h.svc.ReverseCredit(ctx, entryID, p, req.Reason, requestMeta(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, result)
}

func (h *ModerationHandler) SoftDeleteContribution(ctx *xhttp.RequestCtx) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req moderationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	contribution, err := h.svc.SoftDeleteContribution(ctx, id, p, req.Reason, requestMeta(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, contribution)
}

func (h *ModerationHandler) SoftDeleteProject(ctx *xhttp.RequestCtx) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req moderationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := h.svc.SoftDeleteProject(ctx, id, p, req.Reason, requestMeta(ctx)); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, statusResponse{Status: "closed"})
}

func (h *ModerationHandler) BanUser(ctx *xhttp.RequestCtx) {
	h.setUserActive(ctx, false)
}

func (h *ModerationHandler) UnbanUser(ctx *xhttp.RequestCtx) {
	h.setUserActive(ctx, true)
}

func (h *ModerationHandler) setUserActive(ctx *xhttp.RequestCtx, active bool) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req moderationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	var err error
	status := "banned"
	if active {
		err = h.svc.UnbanUser(ctx, id, p, req.Reason, requestMeta(ctx))
		status = "active"
	} else {
		err = h.svc.BanUser(ctx, id, p, req.Reason, requestMeta(ctx))
	}
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, statusResponse{Status: status})
}

func (h *ModerationHandler) AuditTrail(ctx *xhttp.RequestCtx) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	targetType, _ := ctx.UserValue("target_type").(string)
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	logs, err := h.svc.AuditTrail(ctx, p, targetType, id, queryInt(ctx, "limit"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]any{"items": logs})
}
