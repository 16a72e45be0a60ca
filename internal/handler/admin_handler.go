package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/catalog/internal/admin"
	"github.com/hitoshi/catalog/internal/middleware"
	"github.com/hitoshi/catalog/internal/model"
)

// multipartOverhead はファイル本体以外のマルチパート部分に許容するバイト数。
const multipartOverhead = 1 << 20

// multipartMemory はParseMultipartFormがメモリに保持する上限。超過分は一時ファイルに書き出される。
const multipartMemory = 8 << 20

// AdminServiceInterface は管理ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	CreateAsset(ctx context.Context, in admin.AssetInput) (*model.Asset, error)
	UpdateAsset(ctx context.Context, id string, in admin.AssetInput) (*model.Asset, error)
	DeleteAsset(ctx context.Context, id string) error
	AttachMedia(ctx context.Context, assetID string, up admin.MediaUpload) (*model.Media, error)
	DeleteMedia(ctx context.Context, id string) error
}

// AdminHandler はカタログ管理のHTTPハンドラー。
type AdminHandler struct {
	service   AdminServiceInterface
	maxUpload int64
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface, maxUploadBytes int64) *AdminHandler {
	return &AdminHandler{service: service, maxUpload: maxUploadBytes}
}

// mediaResponse はメディア情報のAPIレスポンス。
type mediaResponse struct {
	ID          string          `json:"id"`
	AssetID     string          `json:"asset_id"`
	Kind        model.MediaKind `json:"kind"`
	StoragePath string          `json:"storage_path"`
	ContentType string          `json:"content_type"`
	SizeBytes   int64           `json:"size_bytes"`
	Position    int             `json:"position"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toMediaResponse(m *model.Media) mediaResponse {
	return mediaResponse{
		ID:          m.ID,
		AssetID:     m.AssetID,
		Kind:        m.Kind,
		StoragePath: m.StoragePath,
		ContentType: m.ContentType,
		SizeBytes:   m.SizeBytes,
		Position:    m.Position,
		CreatedAt:   m.CreatedAt,
	}
}

// CreateAsset はPOST /api/admin/assets のハンドラー。
func (h *AdminHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var in admin.AssetInput
	if err := decodeJSONBody(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}

	asset, err := h.service.CreateAsset(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, model.NewAssetListItem(*asset))
}

// UpdateAsset はPUT /api/admin/assets/{id} のハンドラー。
func (h *AdminHandler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	var in admin.AssetInput
	if err := decodeJSONBody(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}

	asset, err := h.service.UpdateAsset(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, model.NewAssetListItem(*asset))
}

// DeleteAsset はDELETE /api/admin/assets/{id} のハンドラー。
func (h *AdminHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAsset(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadMedia はPOST /api/admin/assets/{id}/media のハンドラー。
// multipart/form-dataのfileフィールドとkindフィールドを受け取る。
func (h *AdminHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	limit := h.maxUpload + multipartOverhead
	if r.ContentLength > limit {
		handleServiceError(w, model.NewUploadTooLargeError(h.maxUpload))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handleServiceError(w, model.NewUploadTooLargeError(h.maxUpload))
			return
		}
		handleServiceError(w, model.NewValidationError("body", "multipart/form-dataで送信してください"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		handleServiceError(w, model.NewValidationError("file", "必須項目です"))
		return
	}
	defer file.Close()

	media, err := h.service.AttachMedia(r.Context(), chi.URLParam(r, "id"), admin.MediaUpload{
		Kind:        r.FormValue("kind"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Debug("media uploaded",
		slog.String("media_id", media.ID),
		slog.String("asset_id", media.AssetID),
	)
	middleware.WriteJSON(w, http.StatusCreated, toMediaResponse(media))
}

// DeleteMedia はDELETE /api/admin/media/{id} のハンドラー。
func (h *AdminHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMedia(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
