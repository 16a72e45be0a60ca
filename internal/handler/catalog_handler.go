package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/hitoshi/catalog/internal/locale"
	"github.com/hitoshi/catalog/internal/middleware"
	"github.com/hitoshi/catalog/internal/model"
	"github.com/hitoshi/catalog/internal/registry"
)

// CatalogServiceInterface はカタログハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	// LoadPage は一覧1ページ分を読み込む。失敗はPage.Errorで表す。
	LoadPage(ctx context.Context, cfg registry.PageConfig, q registry.Query, locale language.Tag) registry.Page
	// LoadDetail はslugでアセット詳細を読み込む。
	LoadDetail(ctx context.Context, cfg registry.PageConfig, slug string, locale language.Tag) (*registry.Detail, error)
}

// CatalogHandler は公開カタログのHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// routeResponse はカタログルート設定のAPIレスポンス。
type routeResponse struct {
	registry.PageConfig
	PageSize int `json:"page_size"`
}

// ListRoutes はGET /api/catalog のハンドラー。
func (h *CatalogHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes := registry.Routes()
	resp := make([]routeResponse, 0, len(routes))
	for _, c := range routes {
		resp = append(resp, routeResponse{PageConfig: c, PageSize: registry.PageSize})
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// GetPage はGET /api/catalog/{route} のハンドラー。
// 読み込みに失敗した場合もエラーパネルを描画できるよう200で返す。
func (h *CatalogHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	cfg, ok := registry.Lookup(chi.URLParam(r, "route"))
	if !ok {
		handleServiceError(w, model.NewRouteNotFoundError(chi.URLParam(r, "route")))
		return
	}

	q := registry.ParseQuery(r.URL.Query(), locale.ViewPreference(r))
	page := h.service.LoadPage(r.Context(), cfg, q, locale.FromContext(r.Context()))

	// 署名付きURLを含むため共有キャッシュに載せない
	w.Header().Set("Cache-Control", "no-store")
	middleware.WriteJSON(w, http.StatusOK, page)
}

// GetDetail はGET /api/catalog/{route}/{slug} のハンドラー。
func (h *CatalogHandler) GetDetail(w http.ResponseWriter, r *http.Request) {
	cfg, ok := registry.Lookup(chi.URLParam(r, "route"))
	if !ok {
		handleServiceError(w, model.NewRouteNotFoundError(chi.URLParam(r, "route")))
		return
	}

	detail, err := h.service.LoadDetail(r.Context(), cfg, chi.URLParam(r, "slug"), locale.FromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	middleware.WriteJSON(w, http.StatusOK, detail)
}
