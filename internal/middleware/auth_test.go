package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func protectedHandler(t *testing.T) http.Handler {
	t.Helper()
	middleware := AuthMiddleware(testSecret, zap.NewNop())
	return middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			t.Error("User id missing from context")
		}
		role, ok := GetUserRole(r.Context())
		if !ok {
			t.Error("Role missing from context")
		}
		w.Header().Set("X-User", userID)
		w.Header().Set("X-Role", role)
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthAcceptsValidToken(t *testing.T) {
	userID := uuid.NewString()
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": userID,
		"role":    "cashier",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protectedHandler(t).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-User") != userID {
		t.Errorf("Context carried wrong user id %q", rec.Header().Get("X-User"))
	}
	if rec.Header().Get("X-Role") != "cashier" {
		t.Errorf("Context carried wrong role %q", rec.Header().Get("X-Role"))
	}
}

func TestAuthRejections(t *testing.T) {
	expired := signToken(t, testSecret, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"role":    "cashier",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signToken(t, "other-secret", jwt.MapClaims{
		"user_id": uuid.NewString(),
		"role":    "cashier",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	missingClaims := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	cases := []struct {
		name    string
		header  string
		message string
	}{
		{"no header", "", "missing authorization header"},
		{"malformed header", "NotBearer x", "invalid authorization header format"},
		{"expired token", "Bearer " + expired, "token expired"},
		{"wrong signature", "Bearer " + wrongKey, "invalid token"},
		{"missing claims", "Bearer " + missingClaims, "invalid token claims"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protectedHandler(t).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("Expected 401, got %d", rec.Code)
			}

			var envelope struct {
				Error struct {
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
				t.Fatalf("Malformed error body: %v", err)
			}
			if envelope.Error.Message != tc.message {
				t.Errorf("Expected message %q, got %q", tc.message, envelope.Error.Message)
			}
		})
	}
}

func TestRequireRoleBlocksOtherRoles(t *testing.T) {
	admin := RequireAdmin(zap.NewNop())
	inner := admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	authed := AuthMiddleware(testSecret, zap.NewNop())(inner)

	cashierToken := signToken(t, testSecret, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"role":    RoleCashier,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	adminToken := signToken(t, testSecret, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"role":    RoleAdmin,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/register", nil)
	req.Header.Set("Authorization", "Bearer "+cashierToken)
	rec := httptest.NewRecorder()
	authed.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Cashier should be forbidden, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/register", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	authed.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Admin should pass, got %d", rec.Code)
	}
}
