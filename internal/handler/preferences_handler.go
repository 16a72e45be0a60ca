package handler

import (
	"net/http"

	"golang.org/x/text/language"

	"github.com/hitoshi/catalog/internal/locale"
	"github.com/hitoshi/catalog/internal/middleware"
	"github.com/hitoshi/catalog/internal/model"
	"github.com/hitoshi/catalog/internal/registry"
)

// PreferencesHandler は表示言語と一覧表示形式の設定を保存するハンドラー。
type PreferencesHandler struct {
	cookies locale.CookieOptions
}

// NewPreferencesHandler はPreferencesHandlerを生成する。
func NewPreferencesHandler(cookies locale.CookieOptions) *PreferencesHandler {
	return &PreferencesHandler{cookies: cookies}
}

// preferencesRequest は設定保存リクエストのボディ。省略した項目は変更しない。
type preferencesRequest struct {
	Locale *string `json:"locale"`
	View   *string `json:"view"`
}

// preferencesResponse は保存後の設定。
type preferencesResponse struct {
	Locale string `json:"locale,omitempty"`
	View   string `json:"view,omitempty"`
}

// Update はPOST /api/preferences のハンドラー。
func (h *PreferencesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := decodeJSONBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.Locale == nil && req.View == nil {
		handleServiceError(w, model.NewValidationError("body", "locale または view を指定してください"))
		return
	}

	var (
		resp preferencesResponse
		tag  language.Tag
	)
	if req.Locale != nil {
		var ok bool
		tag, ok = locale.Parse(*req.Locale)
		if !ok {
			handleServiceError(w, model.NewValidationError("locale", "ru または en を指定してください"))
			return
		}
		resp.Locale = tag.String()
	}
	if req.View != nil {
		view, ok := registry.ParseView(*req.View)
		if !ok {
			handleServiceError(w, model.NewValidationError("view", "cards または list を指定してください"))
			return
		}
		resp.View = string(view)
	}

	// 検証がすべて通ってからCookieを書き込む
	if resp.Locale != "" {
		locale.SetLocaleCookie(w, tag, h.cookies)
	}
	if resp.View != "" {
		locale.SetViewCookie(w, resp.View, h.cookies)
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
