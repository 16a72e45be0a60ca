package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/hitoshi/catalog/internal/admin"
	"github.com/hitoshi/catalog/internal/model"
	"github.com/hitoshi/catalog/internal/registry"
)

// --- モック定義 ---

// mockCatalogService はCatalogServiceInterfaceのモック実装。
type mockCatalogService struct {
	loadPageFn   func(ctx context.Context, cfg registry.PageConfig, q registry.Query, locale language.Tag) registry.Page
	loadDetailFn func(ctx context.Context, cfg registry.PageConfig, slug string, locale language.Tag) (*registry.Detail, error)
}

func (m *mockCatalogService) LoadPage(ctx context.Context, cfg registry.PageConfig, q registry.Query, locale language.Tag) registry.Page {
	if m.loadPageFn != nil {
		return m.loadPageFn(ctx, cfg, q, locale)
	}
	return registry.Page{Route: cfg.Route, Items: []model.AssetListItem{}, PageCount: 1, Page: 1}
}

func (m *mockCatalogService) LoadDetail(ctx context.Context, cfg registry.PageConfig, slug string, locale language.Tag) (*registry.Detail, error) {
	if m.loadDetailFn != nil {
		return m.loadDetailFn(ctx, cfg, slug, locale)
	}
	return nil, model.NewAssetNotFoundError(slug)
}

// mockAdminService はAdminServiceInterfaceのモック実装。
type mockAdminService struct {
	createAssetFn func(ctx context.Context, in admin.AssetInput) (*model.Asset, error)
	updateAssetFn func(ctx context.Context, id string, in admin.AssetInput) (*model.Asset, error)
	deleteAssetFn func(ctx context.Context, id string) error
	attachMediaFn func(ctx context.Context, assetID string, up admin.MediaUpload) (*model.Media, error)
	deleteMediaFn func(ctx context.Context, id string) error
}

func (m *mockAdminService) CreateAsset(ctx context.Context, in admin.AssetInput) (*model.Asset, error) {
	if m.createAssetFn != nil {
		return m.createAssetFn(ctx, in)
	}
	return &model.Asset{ID: "asset-1", EntityType: model.EntityType(in.EntityType), Slug: in.Slug, Title: in.Title}, nil
}

func (m *mockAdminService) UpdateAsset(ctx context.Context, id string, in admin.AssetInput) (*model.Asset, error) {
	if m.updateAssetFn != nil {
		return m.updateAssetFn(ctx, id, in)
	}
	return &model.Asset{ID: id, Slug: in.Slug, Title: in.Title}, nil
}

func (m *mockAdminService) DeleteAsset(ctx context.Context, id string) error {
	if m.deleteAssetFn != nil {
		return m.deleteAssetFn(ctx, id)
	}
	return nil
}

func (m *mockAdminService) AttachMedia(ctx context.Context, assetID string, up admin.MediaUpload) (*model.Media, error) {
	if m.attachMediaFn != nil {
		return m.attachMediaFn(ctx, assetID, up)
	}
	return &model.Media{ID: "media-1", AssetID: assetID, Kind: model.MediaKind(up.Kind), ContentType: up.ContentType, SizeBytes: up.Size}, nil
}

func (m *mockAdminService) DeleteMedia(ctx context.Context, id string) error {
	if m.deleteMediaFn != nil {
		return m.deleteMediaFn(ctx, id)
	}
	return nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result), "body: %s", w.Body.String())
	return result
}
