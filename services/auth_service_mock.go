package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockAuthProvider is an in-memory AuthProvider for testing
type MockAuthProvider struct {
	mu        sync.Mutex
	passwords map[string]string    // email -> password
	users     map[string]*AuthUser // email -> user
	sessions  map[string]string    // access token -> email
	codes     map[string]string    // auth code -> email

	// RequireConfirmation makes SignUp return no session
	RequireConfirmation bool
	// FailWith, when set, is returned by every call
	FailWith error
	// IssueToken mints access tokens; defaults to an opaque random string
	IssueToken func(user AuthUser) (string, error)

	ResetRequests []string
	SignedOut     []string
}

// NewMockAuthProvider creates an empty mock auth provider
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		passwords: make(map[string]string),
		users:     make(map[string]*AuthUser),
		sessions:  make(map[string]string),
		codes:     make(map[string]string),
	}
}

// AddUser registers an account directly
func (m *MockAuthProvider) AddUser(email, password, fullName string) AuthUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.addUser(email, password, fullName)
}

func (m *MockAuthProvider) addUser(email, password, fullName string) *AuthUser {
	user := &AuthUser{
		ID:           uuid.NewString(),
		Email:        email,
		UserMetadata: map[string]interface{}{"full_name": fullName},
		CreatedAt:    time.Now(),
	}
	m.users[email] = user
	m.passwords[email] = password
	return user
}

// IssueCode returns an OAuth callback code that signs in the given account
func (m *MockAuthProvider) IssueCode(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := "code-" + uuid.NewString()
	m.codes[code] = email
	return code
}

// Password returns the stored password of an account
func (m *MockAuthProvider) Password(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passwords[email]
}

func (m *MockAuthProvider) newSession(user *AuthUser) (*AuthSession, error) {
	token := "mock-access-" + uuid.NewString()
	if m.IssueToken != nil {
		t, err := m.IssueToken(*user)
		if err != nil {
			return nil, err
		}
		token = t
	}
	m.sessions[token] = user.Email
	copied := *user
	return &AuthSession{
		AccessToken:  token,
		RefreshToken: "mock-refresh-" + uuid.NewString(),
		TokenType:    "bearer",
		ExpiresIn:    3600,
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         &copied,
	}, nil
}

func invalidCredentials() error {
	return &ProviderError{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
}

func invalidSession() error {
	return &ProviderError{Status: http.StatusUnauthorized, Code: "bad_jwt", Message: "invalid JWT"}
}

// SignUp registers an account and, unless confirmation is required, opens a session
func (m *MockAuthProvider) SignUp(ctx context.Context, email, password, fullName, redirectTo string) (*AuthSession, *AuthUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, nil, m.FailWith
	}
	if _, exists := m.users[email]; exists {
		return nil, nil, &ProviderError{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	}
	user := m.addUser(email, password, fullName)
	copied := *user
	if m.RequireConfirmation {
		return nil, &copied, nil
	}
	session, err := m.newSession(user)
	if err != nil {
		return nil, nil, err
	}
	return session, &copied, nil
}

// SignInWithPassword checks the stored password
func (m *MockAuthProvider) SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	user, ok := m.users[email]
	if !ok || m.passwords[email] != password {
		return nil, invalidCredentials()
	}
	return m.newSession(user)
}

// OAuthURL returns a fake authorize URL
func (m *MockAuthProvider) OAuthURL(provider, redirectTo, codeChallenge string) (string, error) {
	if !SupportedOAuthProviders[provider] {
		return "", &ValidationError{Field: "provider", Message: fmt.Sprintf("unsupported provider %q", provider)}
	}
	query := url.Values{"provider": {provider}, "redirect_to": {redirectTo}, "code_challenge": {codeChallenge}}
	return "https://auth.mock/authorize?" + query.Encode(), nil
}

// ExchangeCode redeems a code created with IssueCode
func (m *MockAuthProvider) ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	email, ok := m.codes[authCode]
	if !ok || codeVerifier == "" {
		return nil, &ProviderError{Status: http.StatusBadRequest, Code: "bad_code_verifier", Message: "invalid flow state"}
	}
	delete(m.codes, authCode)
	return m.newSession(m.users[email])
}

// SignOut forgets the session
func (m *MockAuthProvider) SignOut(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	delete(m.sessions, accessToken)
	m.SignedOut = append(m.SignedOut, accessToken)
	return nil
}

// GetUser resolves a session token
func (m *MockAuthProvider) GetUser(ctx context.Context, accessToken string) (*AuthUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	email, ok := m.sessions[accessToken]
	if !ok {
		return nil, invalidSession()
	}
	copied := *m.users[email]
	return &copied, nil
}

// ResetPasswordForEmail records the request
func (m *MockAuthProvider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.ResetRequests = append(m.ResetRequests, email)
	return nil
}

// UpdatePassword replaces the password of the session's account
func (m *MockAuthProvider) UpdatePassword(ctx context.Context, accessToken, password string) (*AuthUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	email, ok := m.sessions[accessToken]
	if !ok {
		return nil, invalidSession()
	}
	m.passwords[email] = password
	copied := *m.users[email]
	return &copied, nil
}
