package handlers

import (
	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	xhttp "github.com/interfacehive/credit-engine/pkg/http"
)

const (
	headerUserID    = "X-User-Id"
	headerUserEmail = "X-User-Email"
	headerUserAdmin = "X-User-Admin"
)

// principal reads the caller's identity from the trusted headers set by the
// identity collaborator upstream. This service never authenticates; a missing
// or malformed identity is a 401 and the handler stops.
func principal(ctx *xhttp.RequestCtx) (model.Principal, bool) {
	id, err := uuid.Parse(string(ctx.Request.Header.Peek(headerUserID)))
	if err != nil {
		writeError(ctx, xhttp.StatusUnauthorized, "missing or invalid identity")
		return model.Principal{}, false
	}

	admin := string(ctx.Request.Header.Peek(headerUserAdmin))

	return model.Principal{
		UserID: id,
		Email:  string(ctx.Request.Header.Peek(headerUserEmail)),
		Admin:  admin == "true" || admin == "1",
	}, true
}

func requestMeta(ctx *xhttp.RequestCtx) model.RequestMeta {
	return model.RequestMeta{
		IPAddress: ctx.RemoteIP().String(),
		UserAgent: string(ctx.Request.Header.UserAgent()),
	}
}
