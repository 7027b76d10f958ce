package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kendall-kelly/cosmetics-store-api/config"
)

const (
	guestIDKey = "guest_id"

	// GuestCookieMaxAge matches the guest cart TTL
	GuestCookieMaxAge = 30 * 24 * 60 * 60
)

// GuestIdentity gives every visitor a stable anonymous ID for their cart.
// An existing cookie is kept when it holds a valid UUID, otherwise a new one is issued.
func GuestIdentity(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		guestID := ""
		if cookie, err := c.Request.Cookie(cfg.GuestCookieName); err == nil {
			if parsed, err := uuid.Parse(cookie.Value); err == nil {
				guestID = parsed.String()
			}
		}

		if guestID == "" {
			guestID = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     cfg.GuestCookieName,
				Value:    guestID,
				Path:     "/",
				MaxAge:   GuestCookieMaxAge,
				HttpOnly: true,
				Secure:   cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		c.Set(guestIDKey, guestID)
		c.Next()
	}
}

// GetGuestID returns the visitor's anonymous ID, empty when GuestIdentity did not run
func GetGuestID(c *gin.Context) string {
	return c.GetString(guestIDKey)
}
