package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/services"
	xhttp "github.com/interfacehive/credit-engine/pkg/http"
	"github.com/interfacehive/credit-engine/pkg/logger"
)

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps the service error taxonomy onto status codes:
// missing things are 404, wrong actors 403, bad input and state conflicts
// 400, everything else a logged 500 with no internals leaked.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrUnauthorized),
		errors.Is(err, services.ErrNotAdmin),
		errors.Is(err, services.ErrNotHost),
		errors.Is(err, services.ErrUserBanned),
		errors.Is(err, services.ErrSelfModeration),
		errors.Is(err, services.ErrTargetAdmin):
		writeError(ctx, xhttp.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidDecision),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrProjectClosed),
		errors.Is(err, services.ErrOwnProject),
		errors.Is(err, services.ErrAlreadySubmitted),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrSelfAward),
		errors.Is(err, services.ErrNotAccepted),
		errors.Is(err, services.ErrDuplicateAward),
		errors.Is(err, services.ErrMismatchedAward),
		errors.Is(err, services.ErrInvalidReason),
		errors.Is(err, services.ErrNotReversible),
		errors.Is(err, services.ErrAlreadyReversed):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	default:
		logger.Error("request failed", "path", string(ctx.Path()), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, "internal error")
	}
}

func pathUUID(ctx *xhttp.RequestCtx, name string) (uuid.UUID, bool) {
	v, _ := ctx.UserValue(name).(string)
	id, err := uuid.Parse(v)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt(ctx *xhttp.RequestCtx, key string) int {
	if v := query(ctx, key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
