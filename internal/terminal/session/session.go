package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TokenSource supplies the bearer token attached to each API request.
// Callers thread it per request rather than mutating a shared client.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ErrNotSignedIn is returned when a token is requested before login
var ErrNotSignedIn = errors.New("not signed in")

// ErrSessionExpired is returned when the API rejects the bearer token;
// the caller must log in again.
var ErrSessionExpired = errors.New("session expired, log in again")

// ErrAccountLocked carries the retry delay reported by the API when an
// account is temporarily blocked after repeated failures
type ErrAccountLocked struct {
	RetryAfter time.Duration
}

func (e *ErrAccountLocked) Error() string {
	return fmt.Sprintf("account locked, retry in %s", e.RetryAfter)
}

// ErrInvalidCredentials is returned on a rejected email/password pair
var ErrInvalidCredentials = errors.New("invalid email or password")

// User is the identity returned by a successful login
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Session holds the token set for one signed-in cashier. Safe for use
// from multiple goroutines.
type Session struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	user         *User
}

func New(baseURL string, httpClient *http.Client, logger *zap.Logger) *Session {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Session{baseURL: baseURL, http: httpClient, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

type errorEnvelope struct {
	Error struct {
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// Login exchanges credentials for a token set. A 429 with lockout
// metadata becomes ErrAccountLocked so the caller can show the wait.
func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ErrAccountLocked{RetryAfter: lockoutDelay(resp)}
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}

	s.mu.Lock()
	s.accessToken = payload.AccessToken
	s.refreshToken = payload.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	s.user = &payload.User
	s.mu.Unlock()

	return &payload.User, nil
}

// Logout revokes the refresh token server-side and clears local state.
// Revocation is best effort; local sign-out always succeeds.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	access := s.accessToken
	refresh := s.refreshToken
	s.accessToken = ""
	s.refreshToken = ""
	s.user = nil
	s.mu.Unlock()

	if refresh == "" {
		return
	}

	body, err := json.Marshal(map[string]string{"refresh_token": refresh})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/logout", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Warn("Logout request failed", zap.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		s.logger.Warn("Logout rejected by server", zap.Int("status", resp.StatusCode))
	}
}

// Token implements TokenSource
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.accessToken == "" {
		return "", ErrNotSignedIn
	}
	return s.accessToken, nil
}

// User returns the signed-in identity, or nil before login
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SignedIn reports whether a non-expired token set is held
func (s *Session) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != "" && time.Now().Before(s.expiresAt)
}

func lockoutDelay(resp *http.Response) time.Duration {
	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return 0
	}
	var details struct {
		Blocked    bool `json:"blocked"`
		RetryAfter int  `json:"retry_after"`
	}
	if err := json.Unmarshal(envelope.Error.Details, &details); err != nil {
		return 0
	}
	return time.Duration(details.RetryAfter) * time.Second
}
