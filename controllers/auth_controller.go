package controllers

import (
	"context"
	"net/http"
	"net/mail"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cosmetics-store-api/config"
	"github.com/kendall-kelly/cosmetics-store-api/middleware"
	"github.com/kendall-kelly/cosmetics-store-api/services"
	"github.com/kendall-kelly/cosmetics-store-api/utils"
	"go.uber.org/zap"
)

const (
	// PKCEVerifierCookie holds the code verifier between the OAuth redirect and the callback
	PKCEVerifierCookie  = "pkce_verifier"
	pkceVerifierMaxAge  = 10 * 60
	refreshCookieMaxAge = 30 * 24 * 60 * 60
)

// SignUpRequest represents the request body for creating an account
type SignUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required,min=3"`
}

// SignInRequest represents the request body for password sign-in
type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ResetPasswordRequest represents the request body for a password reset link
type ResetPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// UpdatePasswordRequest represents the request body for setting a new password
type UpdatePasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// SessionUser is the public part of a signed-in session
type SessionUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

func setCookie(c *gin.Context, cfg *config.Config, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func setSessionCookies(c *gin.Context, cfg *config.Config, session *services.AuthSession) {
	maxAge := session.ExpiresIn
	if maxAge <= 0 {
		maxAge = 3600
	}
	setCookie(c, cfg, cfg.SessionCookieName, session.AccessToken, maxAge)
	if session.RefreshToken != "" {
		setCookie(c, cfg, cfg.RefreshCookieName, session.RefreshToken, refreshCookieMaxAge)
	}
}

// ensureProfile creates the customer's profile on first sign-in. Failures do not block the sign-in.
func ensureProfile(ctx context.Context, user *services.AuthUser) {
	if user == nil || user.ID == "" {
		return
	}
	if _, err := services.GetCustomerService().EnsureProfile(ctx, user.ID, user.Email, user.FullName()); err != nil {
		zap.L().Warn("failed to ensure profile", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func sessionUser(session *services.AuthSession) SessionUser {
	out := SessionUser{ExpiresAt: session.ExpiresAt}
	if session.User != nil {
		out.ID = session.User.ID
		out.Email = session.User.Email
		out.FullName = session.User.FullName()
	}
	return out
}

func respondWeakPassword(c *gin.Context, password string, err error) {
	details := gin.H{"strength": utils.PasswordStrength(password)}
	if perr, ok := err.(*utils.PasswordError); ok {
		details["failures"] = perr.Failures
		respondErrorDetails(c, http.StatusBadRequest, perr.Code, perr.Message, details)
		return
	}
	respondErrorDetails(c, http.StatusBadRequest, "WEAK_PASSWORD", err.Error(), details)
}

// normalizeEmail trims and lowercases an address and reports whether what is left is a bare email
func normalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return email, true
}

// bindEmail writes a 400 when the request's email is not a valid address
func bindEmail(c *gin.Context, raw string) (string, bool) {
	email, ok := normalizeEmail(raw)
	if !ok {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", gin.H{"field": "email"})
	}
	return email, ok
}

// safeNextPath keeps post-login redirects on this site
func safeNextPath(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	return next
}

func siteURL(cfg *config.Config, path string) string {
	return strings.TrimRight(cfg.SiteURL, "/") + path
}

// SignUp handles POST /api/v1/auth/signup - registers an email/password account
func SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	email, ok := bindEmail(c, req.Email)
	if !ok {
		return
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		respondWeakPassword(c, req.Password, err)
		return
	}

	cfg := config.GetConfig()
	session, user, err := services.GetAuthProvider().SignUp(c.Request.Context(), email, req.Password, strings.TrimSpace(req.FullName), siteURL(cfg, "/api/v1/auth/callback"))
	if err != nil {
		handleServiceError(c, err, "Failed to create account")
		return
	}

	ensureProfile(c.Request.Context(), user)
	if session == nil {
		respondOK(c, http.StatusCreated, gin.H{
			"confirmation_required": true,
			"user":                  SessionUser{ID: user.ID, Email: user.Email, FullName: user.FullName()},
		})
		return
	}

	setSessionCookies(c, cfg, session)
	respondOK(c, http.StatusCreated, gin.H{
		"confirmation_required": false,
		"user":                  sessionUser(session),
	})
}

// SignIn handles POST /api/v1/auth/signin - opens a session with email and password
func SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	email, ok := bindEmail(c, req.Email)
	if !ok {
		return
	}

	session, err := services.GetAuthProvider().SignInWithPassword(c.Request.Context(), email, req.Password)
	if err != nil {
		handleServiceError(c, err, "Failed to sign in")
		return
	}

	setSessionCookies(c, config.GetConfig(), session)
	ensureProfile(c.Request.Context(), session.User)
	respondOK(c, http.StatusOK, gin.H{"user": sessionUser(session)})
}

// OAuthStart handles GET /api/v1/auth/oauth/:provider - starts a social sign-in
func OAuthStart(c *gin.Context) {
	cfg := config.GetConfig()

	verifier, err := services.NewCodeVerifier()
	if err != nil {
		handleServiceError(c, err, "Failed to start sign-in")
		return
	}

	callback := siteURL(cfg, "/api/v1/auth/callback")
	if next := c.Query("next"); next != "" {
		callback += "?next=" + url.QueryEscape(safeNextPath(next))
	}

	authorizeURL, err := services.GetAuthProvider().OAuthURL(c.Param("provider"), callback, services.CodeChallenge(verifier))
	if err != nil {
		handleServiceError(c, err, "Failed to start sign-in")
		return
	}

	setCookie(c, cfg, PKCEVerifierCookie, verifier, pkceVerifierMaxAge)
	if strings.Contains(c.GetHeader("Accept"), "text/html") {
		c.Redirect(http.StatusFound, authorizeURL)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"url": authorizeURL})
}

// OAuthCallback handles GET /api/v1/auth/callback - finishes a social sign-in and
// sends the browser back to the storefront
func OAuthCallback(c *gin.Context) {
	cfg := config.GetConfig()
	failure := siteURL(cfg, "/login?error=oauth_failed")

	code := c.Query("code")
	verifier, cookieErr := c.Cookie(PKCEVerifierCookie)
	setCookie(c, cfg, PKCEVerifierCookie, "", -1)
	if code == "" || cookieErr != nil || verifier == "" {
		c.Redirect(http.StatusFound, failure)
		return
	}

	session, err := services.GetAuthProvider().ExchangeCode(c.Request.Context(), code, verifier)
	if err != nil {
		zap.L().Warn("oauth code exchange failed", zap.Error(err))
		c.Redirect(http.StatusFound, failure)
		return
	}

	setSessionCookies(c, cfg, session)
	ensureProfile(c.Request.Context(), session.User)
	c.Redirect(http.StatusFound, siteURL(cfg, safeNextPath(c.Query("next"))))
}

// SignOut handles POST /api/v1/auth/signout - ends the session and clears its cookies
func SignOut(c *gin.Context) {
	cfg := config.GetConfig()
	if token := middleware.GetAccessToken(c); token != "" {
		if err := services.GetAuthProvider().SignOut(c.Request.Context(), token); err != nil {
			zap.L().Warn("failed to revoke session at auth provider", zap.Error(err))
		}
	}
	middleware.ClearSessionCookies(c, cfg)
	respondOK(c, http.StatusOK, gin.H{"signed_out": true})
}

// ResetPassword handles POST /api/v1/auth/reset-password - emails a reset link
func ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	email, ok := bindEmail(c, req.Email)
	if !ok {
		return
	}

	cfg := config.GetConfig()
	err := services.GetAuthProvider().ResetPasswordForEmail(c.Request.Context(), email, siteURL(cfg, "/reset-password"))
	if err != nil {
		handleServiceError(c, err, "Failed to send reset link")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "If an account exists for this email, a reset link has been sent"})
}

// UpdatePassword handles POST /api/v1/auth/update-password - sets a new password for the session user
func UpdatePassword(c *gin.Context) {
	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		respondWeakPassword(c, req.Password, err)
		return
	}

	user, err := services.GetAuthProvider().UpdatePassword(c.Request.Context(), middleware.GetAccessToken(c), req.Password)
	if err != nil {
		handleServiceError(c, err, "Failed to update password")
		return
	}
	respondOK(c, http.StatusOK, SessionUser{ID: user.ID, Email: user.Email, FullName: user.FullName()})
}

// GetSession handles GET /api/v1/auth/session - describes the caller's session
func GetSession(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		respondOK(c, http.StatusOK, gin.H{"authenticated": false})
		return
	}

	isAdmin, err := services.GetAdminService().IsAdmin(c.Request.Context(), userID)
	if err != nil {
		zap.L().Warn("admin lookup failed for session", zap.String("user_id", userID), zap.Error(err))
		isAdmin = false
	}
	respondOK(c, http.StatusOK, gin.H{
		"authenticated": true,
		"user_id":       userID,
		"email":         middleware.GetUserEmail(c),
		"is_admin":      isAdmin,
	})
}
