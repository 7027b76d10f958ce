package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kendall-kelly/cosmetics-store-api/config"
)

// MintSessionToken signs an HS256 session token the way the auth provider does
func MintSessionToken(t *testing.T, cfg *config.Config, userID, email string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  "authenticated",
		"aud":   cfg.AuthJWTAudience,
		"iss":   cfg.AuthJWTIssuer,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.AuthJWTSecret))
	if err != nil {
		t.Fatalf("Failed to sign session token: %v", err)
	}
	return signed
}

// SessionCookie wraps a token in the configured session cookie
func SessionCookie(cfg *config.Config, token string) *http.Cookie {
	return &http.Cookie{Name: cfg.SessionCookieName, Value: token, Path: "/"}
}

// AuthorizeRequest adds a bearer session token to req
func AuthorizeRequest(t *testing.T, req *http.Request, cfg *config.Config, userID, email string) {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+MintSessionToken(t, cfg, userID, email, time.Hour))
}
