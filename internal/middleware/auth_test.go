package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"travel-backend/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func identityHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := GetUserIDFromContext(r.Context())
		orgID, _ := GetOrgIDFromContext(r.Context())
		role, _ := GetRoleFromContext(r.Context())
		w.Header().Set("X-Identity", userID+"|"+orgID+"|"+role)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	jwtManager := auth.NewJWTManager("secret", "")
	m := NewAuthMiddleware(jwtManager, "__session")
	h := m.Authenticate(identityHandler(t))

	token, err := jwtManager.GenerateToken("user_1", "org_1", auth.RoleMember, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		prepare    func(r *http.Request)
		wantStatus int
	}{
		{name: "no credentials", prepare: func(r *http.Request) {}, wantStatus: http.StatusUnauthorized},
		{name: "malformed header", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Token abc") }, wantStatus: http.StatusUnauthorized},
		{name: "invalid token", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, wantStatus: http.StatusUnauthorized},
		{name: "bearer token", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, wantStatus: http.StatusNoContent},
		{name: "session cookie", prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "__session", Value: token}) }, wantStatus: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/ledger", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, "user_1|org_1|member", rec.Header().Get("X-Identity"))
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	m := NewAuthMiddleware(auth.NewJWTManager("secret", ""), "")
	h := m.RequireAdmin(identityHandler(t))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/reconcile", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithIdentity(req.Context(), "u", "o", auth.RoleMember)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithIdentity(req.Context(), "u", "o", auth.RoleAdmin)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPanicRecovery(t *testing.T) {
	h := PanicRecovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error","code":"internal"}`, rec.Body.String())
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	h := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}
