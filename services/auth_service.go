package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kendall-kelly/cosmetics-store-api/config"
	"github.com/tidwall/gjson"
)

// SupportedOAuthProviders lists the social providers the storefront offers
var SupportedOAuthProviders = map[string]bool{
	"google":   true,
	"github":   true,
	"facebook": true,
}

// AuthUser is the account record held by the hosted auth provider
type AuthUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// FullName returns the name stored in the user's metadata, if any
func (u AuthUser) FullName() string {
	for _, key := range []string{"full_name", "name"} {
		if v, ok := u.UserMetadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// AuthSession is a signed-in session issued by the auth provider
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *AuthUser `json:"user"`
}

// ProviderError is a non-2xx answer from the auth provider
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("auth provider returned %d (%s): %s", e.Status, e.Code, e.Message)
}

// AuthProvider is the hosted authentication backend
type AuthProvider interface {
	// SignUp registers an account. The session is nil when the provider requires email confirmation first.
	SignUp(ctx context.Context, email, password, fullName, redirectTo string) (*AuthSession, *AuthUser, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error)
	OAuthURL(provider, redirectTo, codeChallenge string) (string, error)
	ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*AuthSession, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*AuthUser, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, password string) (*AuthUser, error)
}

// HostedAuthClient talks to the hosted auth REST API under <AUTH_URL>/auth/v1
type HostedAuthClient struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

var authProviderInstance AuthProvider

// NewHostedAuthClient creates a client for the configured auth provider
func NewHostedAuthClient(cfg *config.Config) *HostedAuthClient {
	return &HostedAuthClient{
		baseURL: strings.TrimRight(cfg.AuthURL, "/") + "/auth/v1",
		anonKey: cfg.AuthAnonKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// InitAuthProvider initializes the global auth provider
func InitAuthProvider(cfg *config.Config) AuthProvider {
	authProviderInstance = NewHostedAuthClient(cfg)
	return authProviderInstance
}

// GetAuthProvider returns the global auth provider
func GetAuthProvider() AuthProvider {
	return authProviderInstance
}

// SetAuthProvider sets the global auth provider (useful for testing)
func SetAuthProvider(p AuthProvider) {
	authProviderInstance = p
}

func (c *HostedAuthClient) do(ctx context.Context, method, path string, query url.Values, accessToken string, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call auth provider: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read auth provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseProviderError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode auth provider response: %w", err)
	}
	return nil
}

// parseProviderError reads the error body shapes the provider uses across its endpoints
func parseProviderError(status int, body []byte) *ProviderError {
	perr := &ProviderError{Status: status, Code: "provider_error", Message: http.StatusText(status)}
	if !gjson.ValidBytes(body) {
		if text := strings.TrimSpace(string(body)); text != "" {
			perr.Message = text
		}
		return perr
	}

	for _, r := range gjson.GetManyBytes(body, "msg", "error_description", "message", "error") {
		if r.Type == gjson.String && r.Str != "" {
			perr.Message = r.Str
			break
		}
	}
	for _, r := range gjson.GetManyBytes(body, "error_code", "code", "error") {
		if r.Type == gjson.String && r.Str != "" {
			perr.Code = r.Str
			break
		}
	}
	return perr
}

// SignUp registers an email/password account
func (c *HostedAuthClient) SignUp(ctx context.Context, email, password, fullName, redirectTo string) (*AuthSession, *AuthUser, error) {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	body := map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/signup", query, "", body, &raw); err != nil {
		return nil, nil, err
	}

	// With email confirmation enabled the provider answers with the bare user
	if gjson.GetBytes(raw, "access_token").Exists() {
		var session AuthSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, nil, fmt.Errorf("failed to decode session: %w", err)
		}
		return &session, session.User, nil
	}
	var user AuthUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return nil, &user, nil
}

// SignInWithPassword opens a session for an email/password account
func (c *HostedAuthClient) SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error) {
	var session AuthSession
	query := url.Values{"grant_type": {"password"}}
	if err := c.do(ctx, http.MethodPost, "/token", query, "", map[string]string{"email": email, "password": password}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// OAuthURL builds the provider's authorize URL for a PKCE flow
func (c *HostedAuthClient) OAuthURL(provider, redirectTo, codeChallenge string) (string, error) {
	if !SupportedOAuthProviders[provider] {
		return "", &ValidationError{Field: "provider", Message: fmt.Sprintf("unsupported provider %q", provider)}
	}
	query := url.Values{
		"provider":              {provider},
		"redirect_to":           {redirectTo},
		"code_challenge":        {codeChallenge},
		"code_challenge_method": {"s256"},
	}
	return c.baseURL + "/authorize?" + query.Encode(), nil
}

// ExchangeCode trades an OAuth callback code for a session
func (c *HostedAuthClient) ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*AuthSession, error) {
	var session AuthSession
	query := url.Values{"grant_type": {"pkce"}}
	body := map[string]string{"auth_code": authCode, "code_verifier": codeVerifier}
	if err := c.do(ctx, http.MethodPost, "/token", query, "", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SignOut revokes the session behind accessToken
func (c *HostedAuthClient) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, accessToken, nil, nil)
}

// GetUser returns the account behind accessToken
func (c *HostedAuthClient) GetUser(ctx context.Context, accessToken string) (*AuthUser, error) {
	var user AuthUser
	if err := c.do(ctx, http.MethodGet, "/user", nil, accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ResetPasswordForEmail sends a password reset link
func (c *HostedAuthClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return c.do(ctx, http.MethodPost, "/recover", query, "", map[string]string{"email": email}, nil)
}

// UpdatePassword sets a new password for the signed-in user
func (c *HostedAuthClient) UpdatePassword(ctx context.Context, accessToken, password string) (*AuthUser, error) {
	var user AuthUser
	if err := c.do(ctx, http.MethodPut, "/user", nil, accessToken, map[string]string{"password": password}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// NewCodeVerifier returns a random PKCE code verifier
func NewCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CodeChallenge derives the S256 PKCE challenge for a verifier
func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
