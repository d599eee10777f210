package middleware // reusable HTTP middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/model"
)

// Context keys set by JWTAuth.
const (
	PrincipalKey = "principal"
	UserIDKey    = "user_id"
	RoleKey      = "role"
)

// PrincipalParser turns a raw access token into the caller's current
// identity.
type PrincipalParser interface {
	CurrentPrincipal(ctx context.Context, token string) (model.Principal, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the principal in the context.  Handlers read it through
// CurrentPrincipal; the user id and role are also stored under
// "user_id" and "role" for the rate limiter and RequireRole.  Accounts
// deactivated after the token was issued are refused with 403.
func JWTAuth(parser PrincipalParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(auth[7:])

			p, err := parser.CurrentPrincipal(c.Request().Context(), raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			if !p.IsActive {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "account disabled"})
			}

			c.Set(PrincipalKey, p)
			c.Set(UserIDKey, p.ID)
			c.Set(RoleKey, p.Role)
			return next(c)
		}
	}
}
