package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cosmetics-store-api/config"
	"github.com/kendall-kelly/cosmetics-store-api/metrics"
	"go.uber.org/zap"
)

// AdminChecker answers whether a user is on the admin allow-list
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// RequireAdmin gates the admin area. It must run after OptionalAuth so that a missing
// session reaches the gate instead of failing token validation.
//
// Every denial clears the session cookies. Browsers navigating to a page are redirected
// to the admin login path; API clients get a JSON error. Allow-list lookup failures deny.
func RequireAdmin(checker AdminChecker, cfg *config.Config, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			denyAdmin(c, cfg, "no_session", http.StatusUnauthorized, "UNAUTHORIZED", "Sign in with an admin account")
			return
		}

		isAdmin, err := checker.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			logger.Error("admin allow-list check failed", zap.String("user_id", userID), zap.Error(err))
			denyAdmin(c, cfg, "check_failed", http.StatusForbidden, "ADMIN_CHECK_FAILED", "Could not verify admin access")
			return
		}
		if !isAdmin {
			logger.Warn("non-admin user denied", zap.String("user_id", userID), zap.String("path", c.Request.URL.Path))
			denyAdmin(c, cfg, "not_admin", http.StatusForbidden, "NOT_ADMIN", "You do not have admin access")
			return
		}

		c.Next()
	}
}

func denyAdmin(c *gin.Context, cfg *config.Config, reason string, status int, code, message string) {
	metrics.AdminGateDenials.WithLabelValues(reason).Inc()
	ClearSessionCookies(c, cfg)

	if wantsHTML(c.Request) {
		c.Redirect(http.StatusFound, cfg.AdminLoginPath)
		c.Abort()
		return
	}
	abortWithError(c, status, code, message)
}

// ClearSessionCookies expires the session and refresh cookies
func ClearSessionCookies(c *gin.Context, cfg *config.Config) {
	for _, name := range []string{cfg.SessionCookieName, cfg.RefreshCookieName} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
