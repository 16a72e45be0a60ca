package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret")

func adminClaims(role string, ttl time.Duration) AdminClaims {
	c := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin-user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Email: "admin@example.com",
	}
	c.AppMetadata.Role = role
	return c
}

func signed(t *testing.T, secret []byte, claims AdminClaims) string {
	t.Helper()
	tok, err := SignAdminToken(secret, claims)
	require.NoError(t, err)
	return tok
}

// subjectEcho は認証後のsubjectをレスポンスボディに書き出すハンドラー。
func subjectEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := AdminSubjectFromContext(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Write([]byte(sub))
	})
}

func TestAdminAuth_BearerToken_PassesThrough(t *testing.T) {
	h := NewAdminAuthMiddleware(testSecret)(subjectEcho())

	r := httptest.NewRequest(http.MethodPost, "/api/admin/assets", nil)
	r.Header.Set("Authorization", "Bearer "+signed(t, testSecret, adminClaims("admin", time.Hour)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-user-1", w.Body.String())
}

func TestAdminAuth_CookieToken_PassesThrough(t *testing.T) {
	var byCookie bool
	h := NewAdminAuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		byCookie = authenticatedByCookie(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/admin/assets", nil)
	r.AddCookie(&http.Cookie{Name: adminCookieName, Value: signed(t, testSecret, adminClaims("admin", time.Hour))})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, byCookie)
}

func TestAdminAuth_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{"no token", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"not bearer", "Basic YWRtaW46YWRtaW4=", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong secret", "Bearer " + mustSign([]byte("other"), adminClaims("admin", time.Hour)), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired", "Bearer " + mustSign(testSecret, adminClaims("admin", -time.Minute)), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"not admin", "Bearer " + mustSign(testSecret, adminClaims("authenticated", time.Hour)), http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := NewAdminAuthMiddleware(testSecret)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))

			r := httptest.NewRequest(http.MethodDelete, "/api/admin/assets/x", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.False(t, called)
			assert.Equal(t, tt.wantCode, w.Code)
			var body ErrorResponseBody
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body.Code)
		})
	}
}

func TestAdminAuth_MissingExpiry_IsRejected(t *testing.T) {
	claims := adminClaims("admin", time.Hour)
	claims.ExpiresAt = nil

	h := NewAdminAuthMiddleware(testSecret)(subjectEcho())
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signed(t, testSecret, claims))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_NoneAlgorithm_IsRejected(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, adminClaims("admin", time.Hour)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	h := NewAdminAuthMiddleware(testSecret)(subjectEcho())
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminSubjectFromContext(t *testing.T) {
	_, err := AdminSubjectFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.Error(t, err)

	ctx := ContextWithAdminSubject(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "sub-1")
	sub, err := AdminSubjectFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub)
}

func mustSign(secret []byte, claims AdminClaims) string {
	tok, err := SignAdminToken(secret, claims)
	if err != nil {
		panic(err)
	}
	return tok
}
