package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/hitoshi/catalog/internal/admin"
	"github.com/hitoshi/catalog/internal/locale"
	"github.com/hitoshi/catalog/internal/metrics"
	"github.com/hitoshi/catalog/internal/middleware"
	"github.com/hitoshi/catalog/internal/model"
	"github.com/hitoshi/catalog/internal/pending"
	"github.com/hitoshi/catalog/internal/registry"
)

var routerTestSecret = []byte("router-test-secret")

type testRouter struct {
	handler http.Handler
	coord   *pending.Coordinator
	catalog *mockCatalogService
	admin   *mockAdminService
	health  *mockHealthChecker
}

func createTestRouter(t *testing.T) *testRouter {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	tr := &testRouter{
		coord:   pending.NewCoordinator(),
		catalog: &mockCatalogService{},
		admin:   &mockAdminService{},
		health:  &mockHealthChecker{},
	}
	metrics.RegisterPendingGauge(reg, tr.coord.Snapshot)

	tr.handler = NewRouter(&RouterDeps{
		Logger:            discardLogger(),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Negotiator:        locale.NewNegotiator("ru"),
		StatusRecorder:    collector,
		Gatherer:          reg,
		HealthChecker:     tr.health,
		CatalogService:    tr.catalog,
		Pending:           tr.coord,
		AdminService:      tr.admin,
		AdminJWTSecret:    routerTestSecret,
		UploadMaxBytes:    1024,
	})
	return tr
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	claims := middleware.AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	claims.AppMetadata.Role = role
	tok, err := middleware.SignAdminToken(routerTestSecret, claims)
	require.NoError(t, err)
	return tok
}

func (tr *testRouter) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	tr.handler.ServeHTTP(w, r)
	return w
}

func TestNewRouter_Health(t *testing.T) {
	tr := createTestRouter(t)

	w := tr.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"up"}`, w.Body.String())

	tr.health.err = errors.New("connection refused")
	w = tr.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNewRouter_SecurityAndCORSHeaders(t *testing.T) {
	tr := createTestRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	w := tr.do(r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewRouter_CatalogPage_UsesNegotiatedLocale(t *testing.T) {
	tr := createTestRouter(t)
	var got language.Tag
	tr.catalog.loadPageFn = func(ctx context.Context, cfg registry.PageConfig, q registry.Query, tag language.Tag) registry.Page {
		got = tag
		return registry.Page{Route: cfg.Route, Items: []model.AssetListItem{}, Page: q.Page, PageCount: 1}
	}

	r := httptest.NewRequest(http.MethodGet, "/api/catalog/influencers?page=2", nil)
	r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	w := tr.do(r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, language.English, got)
	assert.Equal(t, "en", w.Header().Get("Content-Language"))

	r = httptest.NewRequest(http.MethodGet, "/api/catalog/influencers", nil)
	r.Header.Set("Accept-Language", "en-US")
	r.AddCookie(&http.Cookie{Name: locale.CookieName, Value: "ru"})
	tr.do(r)
	assert.Equal(t, language.Russian, got)
}

func TestNewRouter_CatalogRoutes(t *testing.T) {
	tr := createTestRouter(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/catalog", http.StatusOK},
		{"/api/catalog/models", http.StatusOK},
		{"/api/catalog/unknown", http.StatusNotFound},
		{"/api/catalog/models/missing-slug", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := tr.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestNewRouter_AdminRequiresToken(t *testing.T) {
	tr := createTestRouter(t)

	w := tr.do(httptest.NewRequest(http.MethodPost, "/api/admin/assets", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/api/admin/assets", strings.NewReader(`{}`))
	r.Header.Set("Authorization", "Bearer "+adminToken(t, "editor"))
	w = tr.do(r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNewRouter_AdminCreate_TracksPending(t *testing.T) {
	tr := createTestRouter(t)
	var during int
	tr.admin.createAssetFn = func(ctx context.Context, in admin.AssetInput) (*model.Asset, error) {
		during = tr.coord.Snapshot()
		return &model.Asset{ID: "asset-1", EntityType: model.EntityModel, Slug: in.Slug, Title: in.Title}, nil
	}

	r := httptest.NewRequest(http.MethodPost, "/api/admin/assets", strings.NewReader(`{"entity_type":"model","slug":"anna","title":"Anna"}`))
	r.Header.Set("Authorization", "Bearer "+adminToken(t, "admin"))
	w := tr.do(r)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, during)
	assert.Equal(t, 0, tr.coord.Snapshot())
}

func TestNewRouter_AdminCookieAuth_RequiresCSRF(t *testing.T) {
	tr := createTestRouter(t)
	token := adminToken(t, "admin")

	r := httptest.NewRequest(http.MethodDelete, "/api/admin/assets/asset-1", nil)
	r.AddCookie(&http.Cookie{Name: "sb-access-token", Value: token})
	w := tr.do(r)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, model.ErrCodeCSRF, parseAPIErrorResponse(t, w)["code"])

	r = httptest.NewRequest(http.MethodDelete, "/api/admin/assets/asset-1", nil)
	r.AddCookie(&http.Cookie{Name: "sb-access-token", Value: token})
	r.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok-123"})
	r.Header.Set("X-CSRF-Token", "tok-123")
	w = tr.do(r)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNewRouter_AdminMediaRoutes(t *testing.T) {
	tr := createTestRouter(t)
	token := adminToken(t, "admin")

	r := httptest.NewRequest(http.MethodDelete, "/api/admin/media/m-1", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, tr.do(r).Code)

	body, ct := multipartUpload(t, "hero", "a.png", "image/png", []byte("png"))
	r = httptest.NewRequest(http.MethodPost, "/api/admin/assets/asset-1/media", body)
	r.Header.Set("Content-Type", ct)
	r.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusCreated, tr.do(r).Code)
}

func TestNewRouter_PreferencesAndStatus(t *testing.T) {
	tr := createTestRouter(t)

	w := tr.do(httptest.NewRequest(http.MethodPost, "/api/preferences", strings.NewReader(`{"view":"list"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = tr.do(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pending":0,"busy":false,"route_intent":null}`, w.Body.String())
}

func TestNewRouter_CSRFTokenEndpoint(t *testing.T) {
	tr := createTestRouter(t)

	w := tr.do(httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token"`)
	assert.NotNil(t, findResponseCookie(w, "csrf_token"))
}

func TestNewRouter_Metrics(t *testing.T) {
	tr := createTestRouter(t)

	tr.do(httptest.NewRequest(http.MethodGet, "/api/catalog/nope", nil))
	w := tr.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `catalog_http_status_total{status_code="404"} 1`)
	assert.Contains(t, body, "catalog_pending_operations 0")
}
