package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// Roles known to the platform
const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// RequireAdmin allows only admin users through
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]string{RoleAdmin}, logger)
}

// RequireRole allows users whose role is in allowedRoles
func RequireRole(allowedRoles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			for _, allowed := range allowedRoles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("User role not authorized",
				zap.String("role", role),
				zap.Strings("allowed_roles", allowedRoles),
			)
			RespondWithError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}
