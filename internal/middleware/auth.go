package middleware

import (
	"context"
	"net/http"
	"strings"

	"travel-backend/internal/auth"
	"travel-backend/pkg/utils"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	OrgIDKey  contextKey = "org_id"
	RoleKey   contextKey = "role"
)

type AuthMiddleware struct {
	jwtManager    *auth.JWTManager
	sessionCookie string
}

// NewAuthMiddleware accepts tokens from the Authorization header or, failing that,
// from the named session cookie
func NewAuthMiddleware(jwtManager *auth.JWTManager, sessionCookie string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:    jwtManager,
		sessionCookie: sessionCookie,
	}
}

func (m *AuthMiddleware) tokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if m.sessionCookie != "" {
		if c, err := r.Cookie(m.sessionCookie); err == nil && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

// Authenticate validates the session token and stores user, org and role in the context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := m.tokenFromRequest(r)
		if !ok {
			utils.JSONError(w, "Authorization required", http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			utils.JSONError(w, "Invalid or expired token", http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID())
		ctx = context.WithValue(ctx, OrgIDKey, claims.OrgID)
		ctx = context.WithValue(ctx, RoleKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole must run after Authenticate
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := GetRoleFromContext(r.Context())
			for _, allowed := range allowedRoles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.JSONError(w, "Forbidden: Insufficient permissions", http.StatusForbidden, "forbidden")
		})
	}
}

// RequireAdmin is RequireRole("admin")
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(auth.RoleAdmin)(next)
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetOrgIDFromContext extracts the organization from request context
func GetOrgIDFromContext(ctx context.Context) (string, bool) {
	orgID, ok := ctx.Value(OrgIDKey).(string)
	return orgID, ok && orgID != ""
}

// GetRoleFromContext extracts role from request context
func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// WithIdentity stores an identity in ctx the way Authenticate does
func WithIdentity(ctx context.Context, userID, orgID, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, OrgIDKey, orgID)
	return context.WithValue(ctx, RoleKey, role)
}
