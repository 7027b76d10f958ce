package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cosmetics-store-api/config"
)

const (
	userIDKey      = "user_id"
	userEmailKey   = "user_email"
	claimsKey      = "validated_claims"
	accessTokenKey = "access_token"
)

// CustomClaims contains the session claims the hosted auth provider adds to its tokens.
type CustomClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Validate rejects tokens minted for anonymous or service access.
func (c CustomClaims) Validate(ctx context.Context) error {
	if c.Role != "" && c.Role != "authenticated" {
		return fmt.Errorf("role %q cannot open a customer session", c.Role)
	}
	return nil
}

// newSessionValidator validates HS256 session tokens signed with the provider's JWT secret
func newSessionValidator(cfg *config.Config) (*validator.Validator, error) {
	secret := []byte(cfg.AuthJWTSecret)
	keyFunc := func(ctx context.Context) (interface{}, error) {
		return secret, nil
	}

	return validator.New(
		keyFunc,
		validator.HS256,
		cfg.AuthJWTIssuer,
		[]string{cfg.AuthJWTAudience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
}

// sessionTokenExtractor reads the bearer header first, then the session cookie.
// A missing cookie is not an error; the middleware decides whether a token is required.
func sessionTokenExtractor(cookieName string) jwtmiddleware.TokenExtractor {
	return func(r *http.Request) (string, error) {
		token, err := jwtmiddleware.AuthHeaderTokenExtractor(r)
		if err != nil || token != "" {
			return token, err
		}
		cookie, err := r.Cookie(cookieName)
		if err != nil {
			return "", nil
		}
		return cookie.Value, nil
	}
}

func storeSession(c *gin.Context, claims *validator.ValidatedClaims, token string) {
	c.Set(userIDKey, claims.RegisteredClaims.Subject)
	c.Set(claimsKey, claims)
	c.Set(accessTokenKey, token)
	if custom, ok := claims.CustomClaims.(*CustomClaims); ok {
		c.Set(userEmailKey, custom.Email)
	}
}

// EnsureValidToken is a middleware that requires a valid session token from the
// Authorization header or the session cookie.
func EnsureValidToken(cfg *config.Config) gin.HandlerFunc {
	jwtValidator, err := newSessionValidator(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to set up the jwt validator: %v", err))
	}
	extractor := sessionTokenExtractor(cfg.SessionCookieName)

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		code, message := "INVALID_TOKEN", "Failed to validate session token."
		if errors.Is(err, jwtmiddleware.ErrJWTMissing) {
			code, message = "MISSING_TOKEN", "Sign in to continue."
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprintf(w, `{"success":false,"error":{"code":%q,"message":%q}}`, code, message)
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
		jwtmiddleware.WithTokenExtractor(extractor),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			passed = true
			claims := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			token, _ := extractor(r)

			c.Request = r
			storeSession(c, claims, token)
			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

// OptionalAuth resolves the session when one is present and valid, and otherwise
// lets the request through as anonymous.
func OptionalAuth(cfg *config.Config) gin.HandlerFunc {
	jwtValidator, err := newSessionValidator(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to set up the jwt validator: %v", err))
	}
	extractor := sessionTokenExtractor(cfg.SessionCookieName)

	return func(c *gin.Context) {
		token, err := extractor(c.Request)
		if err != nil || token == "" {
			c.Next()
			return
		}

		validated, err := jwtValidator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.Next()
			return
		}
		if claims, ok := validated.(*validator.ValidatedClaims); ok {
			storeSession(c, claims, token)
		}
		c.Next()
	}
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	userIDStr, ok := userID.(string)
	if !ok || userIDStr == "" {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}

	return userIDStr, nil
}

// GetUserEmail returns the email claim of the session, if any
func GetUserEmail(c *gin.Context) string {
	return c.GetString(userEmailKey)
}

// GetAccessToken returns the raw session token of the request, if any
func GetAccessToken(c *gin.Context) string {
	return c.GetString(accessTokenKey)
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(claimsKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
