package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"clinic-portal/internal/auth"
	"clinic-portal/internal/middleware"
)

// Login exchanges a portal token for the session cookie and sends the user
// to their dashboard.
func (h *Handler) Login(c echo.Context) error {
	raw := c.FormValue("token")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token required")
	}
	claims, err := auth.ParseToken(raw, h.secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	ck := &http.Cookie{
		Name:     middleware.CookieName,
		Value:    raw,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if claims.ExpiresAt != nil {
		ck.Expires = claims.ExpiresAt.Time
	}
	c.SetCookie(ck)

	dest := "/portal"
	if claims.IsDoctor() {
		dest = "/doctor"
	}
	return c.Redirect(http.StatusSeeOther, dest)
}

func (h *Handler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	return c.NoContent(http.StatusNoContent)
}
