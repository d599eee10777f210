package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/model"
)

// CurrentPrincipal returns the principal stored by JWTAuth.
func CurrentPrincipal(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(PrincipalKey).(model.Principal)
	return p, ok
}

// userID renders the caller's id for cache and rate-limit keys, or
// "anon" before authentication.
func userID(c echo.Context) string {
	if id, ok := c.Get(UserIDKey).(int64); ok && id > 0 {
		return strconv.FormatInt(id, 10)
	}
	return "anon"
}
