package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/hitoshi/catalog/internal/locale"
	"github.com/hitoshi/catalog/internal/model"
	"github.com/hitoshi/catalog/internal/registry"
)

func TestCatalogHandler_ListRoutes(t *testing.T) {
	h := NewCatalogHandler(&mockCatalogService{})

	w := httptest.NewRecorder()
	h.ListRoutes(w, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 3)
	assert.Equal(t, "models", got[0]["route"])
	assert.Equal(t, "category", got[0]["filter_column"])
	assert.Equal(t, "image", got[0]["media_mode"])
	assert.Equal(t, float64(registry.PageSize), got[0]["page_size"])
	assert.Equal(t, "influencers", got[2]["route"])
	assert.Equal(t, "title", got[2]["media_mode"])
}

func TestCatalogHandler_GetPage_UnknownRoute(t *testing.T) {
	h := NewCatalogHandler(&mockCatalogService{})

	r := withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/catalog/cars", nil), "route", "cars")
	w := httptest.NewRecorder()
	h.GetPage(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, model.ErrCodeRouteNotFound, parseAPIErrorResponse(t, w)["code"])
}

func TestCatalogHandler_GetPage_NormalizesQuery(t *testing.T) {
	var (
		gotCfg    registry.PageConfig
		gotQuery  registry.Query
		gotLocale language.Tag
	)
	svc := &mockCatalogService{
		loadPageFn: func(ctx context.Context, cfg registry.PageConfig, q registry.Query, tag language.Tag) registry.Page {
			gotCfg, gotQuery, gotLocale = cfg, q, tag
			return registry.Page{Route: cfg.Route, Items: []model.AssetListItem{}, Page: q.Page, PageCount: 1, View: q.View}
		},
	}
	h := NewCatalogHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/api/catalog/creators?page=-4&category=all", nil)
	r.AddCookie(&http.Cookie{Name: locale.ViewCookieName, Value: "list"})
	r = r.WithContext(locale.WithTag(r.Context(), language.English))
	r = withChiURLParams(r, "route", "creators")
	w := httptest.NewRecorder()
	h.GetPage(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, model.EntityCreator, gotCfg.EntityType)
	assert.Equal(t, registry.Query{Page: 1, Category: "", View: registry.ViewList}, gotQuery)
	assert.Equal(t, language.English, gotLocale)
}

func TestCatalogHandler_GetPage_FailureStillReturns200(t *testing.T) {
	svc := &mockCatalogService{
		loadPageFn: func(ctx context.Context, cfg registry.PageConfig, q registry.Query, tag language.Tag) registry.Page {
			return registry.Page{Route: cfg.Route, Items: []model.AssetListItem{}, PageCount: 1, Page: 1, Error: "Не удалось загрузить данные."}
		},
	}
	h := NewCatalogHandler(svc)

	r := withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/catalog/models", nil), "route", "models")
	w := httptest.NewRecorder()
	h.GetPage(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, []any{}, got["items"])
	assert.Equal(t, "Не удалось загрузить данные.", got["error"])
}

func TestCatalogHandler_GetPage_EmptyHasNoErrorField(t *testing.T) {
	h := NewCatalogHandler(&mockCatalogService{})

	r := withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/catalog/models?category=chairs", nil), "route", "models")
	w := httptest.NewRecorder()
	h.GetPage(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, []any{}, got["items"])
	assert.NotContains(t, got, "error")
}

func TestCatalogHandler_GetDetail(t *testing.T) {
	url := "https://cdn.example.com/signed"
	svc := &mockCatalogService{
		loadDetailFn: func(ctx context.Context, cfg registry.PageConfig, slug string, tag language.Tag) (*registry.Detail, error) {
			if slug != "anna" {
				return nil, model.NewAssetNotFoundError(slug)
			}
			item := model.AssetListItem{ID: "a1", Slug: slug, EntityType: cfg.EntityType, PreviewURL: &url}
			return &registry.Detail{Route: cfg.Route, Path: cfg.DetailPath(slug), Asset: item, Media: []registry.DetailMedia{}}, nil
		},
	}
	h := NewCatalogHandler(svc)

	t.Run("found", func(t *testing.T) {
		r := withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/catalog/models/anna", nil), "route", "models", "slug", "anna")
		w := httptest.NewRecorder()
		h.GetDetail(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		var got registry.Detail
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, "/models/anna", got.Path)
		require.NotNil(t, got.Asset.PreviewURL)
		assert.Equal(t, url, *got.Asset.PreviewURL)
	})

	t.Run("not found", func(t *testing.T) {
		r := withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/catalog/models/nobody", nil), "route", "models", "slug", "nobody")
		w := httptest.NewRecorder()
		h.GetDetail(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, model.ErrCodeAssetNotFound, parseAPIErrorResponse(t, w)["code"])
	})

	t.Run("unknown route", func(t *testing.T) {
		r := withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/catalog/cars/anna", nil), "route", "cars", "slug", "anna")
		w := httptest.NewRecorder()
		h.GetDetail(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, model.ErrCodeRouteNotFound, parseAPIErrorResponse(t, w)["code"])
	})
}
