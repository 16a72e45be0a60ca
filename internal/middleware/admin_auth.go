// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/catalog/internal/model"
)

// adminCookieName はSupabase Authのアクセストークンを保持するCookieの名前。
const adminCookieName = "sb-access-token"

// adminRole は管理操作を許可するapp_metadata.roleの値。
const adminRole = "admin"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	adminSubjectContextKey = contextKey("admin_subject")
	cookieAuthContextKey   = contextKey("cookie_auth")
)

// AdminClaims はSupabase Authが発行するアクセストークンのクレーム。
type AdminClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
}

// NewAdminAuthMiddleware はアクセストークン（HS256）を検証し、
// app_metadata.roleがadminのリクエストのみを通過させるミドルウェアを返す。
// トークンはAuthorization: Bearerヘッダー、なければsb-access-token Cookieから読み取る。
// トークンが無い・不正な場合は401、管理者でない場合は403を返す。
func NewAdminAuthMiddleware(secret []byte) func(next http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, fromCookie := tokenFromRequest(r)
			if raw == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			var claims AdminClaims
			if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
				slog.Warn("admin token validation failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if claims.AppMetadata.Role != adminRole || claims.Subject == "" {
				slog.Warn("admin role required",
					slog.String("path", r.URL.Path),
					slog.String("subject", claims.Subject),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			if info, ok := r.Context().Value(requestInfoContextKey).(*requestInfo); ok {
				info.adminSubject = claims.Subject
			}
			ctx := ContextWithAdminSubject(r.Context(), claims.Subject)
			ctx = context.WithValue(ctx, cookieAuthContextKey, fromCookie)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest はアクセストークンを取り出す。Cookieから取得した場合はfromCookie=true。
func tokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value), false
		}
		return "", false
	}
	if c, err := r.Cookie(adminCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// AdminSubjectFromContext はリクエストコンテキストから管理者のsubjectを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func AdminSubjectFromContext(ctx context.Context) (string, error) {
	sub, ok := ctx.Value(adminSubjectContextKey).(string)
	if !ok || sub == "" {
		return "", errors.New("admin subject not found in context")
	}
	return sub, nil
}

// ContextWithAdminSubject はコンテキストに管理者のsubjectを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAdminSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, adminSubjectContextKey, subject)
}

// authenticatedByCookie はCookieのトークンで認証されたリクエストかどうかを返す。
func authenticatedByCookie(ctx context.Context) bool {
	v, _ := ctx.Value(cookieAuthContextKey).(bool)
	return v
}

// SignAdminToken は管理者用のHS256トークンを生成する。開発用のトークン発行とテストで使用する。
func SignAdminToken(secret []byte, claims AdminClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}
	return s, nil
}
