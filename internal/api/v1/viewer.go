package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sarawakflora/fieldwatch/internal/api/middleware"
	"github.com/sarawakflora/fieldwatch/internal/privacy"
)

const viewerKey = "viewer"

// ViewerMiddleware resolves the viewer of a request. The operator role is
// granted only when requested through the role header and, if an operator
// token is configured, accompanied by that token as a bearer credential.
func (c *Controller) ViewerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctx.Set(viewerKey, c.resolveViewer(ctx.Request()))
		return next(ctx)
	}
}

func (c *Controller) resolveViewer(r *http.Request) privacy.Viewer {
	viewer := privacy.ParseViewer(r.Header.Get(middleware.HeaderViewerRole))
	if !viewer.IsOperator() {
		return privacy.ViewerPublic
	}

	token := c.Settings.WebServer.OperatorToken
	if token == "" {
		return viewer
	}
	bearer, ok := strings.CutPrefix(r.Header.Get(echo.HeaderAuthorization), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(bearer)), []byte(token)) != 1 {
		return privacy.ViewerPublic
	}
	return viewer
}

// viewerOf returns the viewer resolved for ctx, public when unset.
func viewerOf(ctx echo.Context) privacy.Viewer {
	if v, ok := ctx.Get(viewerKey).(privacy.Viewer); ok {
		return v
	}
	return privacy.ViewerPublic
}

// actorOf names the operator performing a mutation.
func actorOf(ctx echo.Context) string {
	if actor := strings.TrimSpace(ctx.Request().Header.Get(middleware.HeaderActor)); actor != "" {
		return actor
	}
	return string(viewerOf(ctx))
}

// RequireOperator rejects public viewers with 403.
func (c *Controller) RequireOperator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !viewerOf(ctx).IsOperator() {
			resp := NewErrorResponse(nil, "Operator privileges required", http.StatusForbidden)
			resp.Type = TypeForbidden
			return c.writeError(ctx, resp, nil)
		}
		return next(ctx)
	}
}
