// Package admin はカタログの管理操作（アセットとメディアの登録・更新・削除）を提供する。
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/catalog/internal/model"
	"github.com/hitoshi/catalog/internal/security"
)

const (
	maxSlugLength     = 120
	maxTitleLength    = 200
	maxShortFieldLen  = 100
	maxStatusLength   = 50
	maxPlatforms      = 20
	maxPlatformLength = 50
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// AssetStore はアセットの永続化操作。
// repository.AssetRepositoryの部分集合として定義する。
type AssetStore interface {
	FindByID(ctx context.Context, id string) (*model.Asset, error)
	Create(ctx context.Context, asset *model.Asset) error
	Update(ctx context.Context, asset *model.Asset) error
	Delete(ctx context.Context, id string) error
}

// MediaStore はメディアの永続化操作。
type MediaStore interface {
	FindByID(ctx context.Context, id string) (*model.Media, error)
	Create(ctx context.Context, media *model.Media) error
	Delete(ctx context.Context, id string) error
}

// DeletionQueue はストレージ削除待ちへの追加。
type DeletionQueue interface {
	Enqueue(ctx context.Context, storagePath string) error
}

// ObjectWriter はオブジェクトストレージへの書き込み操作。
type ObjectWriter interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader, size int64) error
	Remove(ctx context.Context, path string) error
}

// AssetInput はアセットの作成・更新の入力。
type AssetInput struct {
	EntityType  string   `json:"entity_type"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	License     *string  `json:"license"`
	Status      *string  `json:"status"`
	Category    *string  `json:"category"`
	Direction   *string  `json:"direction"`
	Topic       *string  `json:"topic"`
	Platforms   []string `json:"platforms"`
}

// MediaUpload はメディアのアップロード入力。
type MediaUpload struct {
	Kind        string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service はカタログの管理操作を行うサービス。
type Service struct {
	assets    AssetStore
	media     MediaStore
	queue     DeletionQueue
	objects   ObjectWriter
	sanitizer security.Sanitizer
	logger    *slog.Logger
	maxUpload int64
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	assets AssetStore,
	media MediaStore,
	queue DeletionQueue,
	objects ObjectWriter,
	sanitizer security.Sanitizer,
	logger *slog.Logger,
	maxUploadBytes int64,
) *Service {
	return &Service{
		assets:    assets,
		media:     media,
		queue:     queue,
		objects:   objects,
		sanitizer: sanitizer,
		logger:    logger,
		maxUpload: maxUploadBytes,
	}
}

// CreateAsset はアセットを作成する。
func (s *Service) CreateAsset(ctx context.Context, in AssetInput) (*model.Asset, error) {
	entity := model.EntityType(strings.TrimSpace(in.EntityType))
	if !entity.Valid() {
		return nil, model.NewValidationError("entity_type", "model, creator, influencer のいずれかを指定してください")
	}

	asset := &model.Asset{EntityType: entity}
	if err := s.apply(asset, in); err != nil {
		return nil, err
	}

	if err := s.assets.Create(ctx, asset); err != nil {
		if errors.Is(err, model.ErrDuplicateSlug) {
			return nil, model.NewDuplicateSlugError(asset.Slug)
		}
		return nil, fmt.Errorf("アセットの作成に失敗しました: %w", err)
	}

	s.logger.Info("アセットを作成しました",
		slog.String("asset_id", asset.ID),
		slog.String("entity_type", string(asset.EntityType)),
		slog.String("slug", asset.Slug),
	)
	return asset, nil
}

// UpdateAsset はアセットを更新する。エンティティ種別は変更できない。
func (s *Service) UpdateAsset(ctx context.Context, id string, in AssetInput) (*model.Asset, error) {
	existing, err := s.assets.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("アセットの取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, model.NewAssetNotFoundError(id)
	}

	if et := strings.TrimSpace(in.EntityType); et != "" && model.EntityType(et) != existing.EntityType {
		return nil, model.NewValidationError("entity_type", "エンティティ種別は変更できません")
	}

	asset := *existing
	if err := s.apply(&asset, in); err != nil {
		return nil, err
	}

	if err := s.assets.Update(ctx, &asset); err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return nil, model.NewAssetNotFoundError(id)
		case errors.Is(err, model.ErrDuplicateSlug):
			return nil, model.NewDuplicateSlugError(asset.Slug)
		}
		return nil, fmt.Errorf("アセットの更新に失敗しました: %w", err)
	}

	s.logger.Info("アセットを更新しました", slog.String("asset_id", asset.ID))
	return &asset, nil
}

// DeleteAsset はアセットを削除する。
// 関連メディアの行はCASCADE削除され、ストレージのオブジェクトは削除待ちに積まれる。
func (s *Service) DeleteAsset(ctx context.Context, id string) error {
	if err := s.assets.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewAssetNotFoundError(id)
		}
		return fmt.Errorf("アセットの削除に失敗しました: %w", err)
	}
	s.logger.Info("アセットを削除しました", slog.String("asset_id", id))
	return nil
}

// AttachMedia はファイルをストレージへアップロードし、アセットのメディアとして登録する。
// 登録に失敗した場合はアップロード済みのオブジェクトを削除する。
func (s *Service) AttachMedia(ctx context.Context, assetID string, up MediaUpload) (*model.Media, error) {
	kind := model.MediaKind(strings.TrimSpace(up.Kind))
	if !kind.Valid() {
		return nil, model.NewValidationError("kind", "catalog, hero, gallery のいずれかを指定してください")
	}
	contentType := normalizeContentType(up.ContentType)
	if !allowedContentType(contentType) {
		return nil, model.NewValidationError("content_type", "画像ファイルのみアップロードできます")
	}
	if up.Size <= 0 {
		return nil, model.NewValidationError("file", "空のファイルはアップロードできません")
	}
	if s.maxUpload > 0 && up.Size > s.maxUpload {
		return nil, model.NewUploadTooLargeError(s.maxUpload)
	}

	asset, err := s.assets.FindByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("アセットの取得に失敗しました: %w", err)
	}
	if asset == nil {
		return nil, model.NewAssetNotFoundError(assetID)
	}

	path := ObjectPath(asset.ID, contentType, up.Filename)
	if err := s.objects.Upload(ctx, path, contentType, up.Body, up.Size); err != nil {
		s.logger.Error("メディアのアップロードに失敗しました",
			slog.String("asset_id", asset.ID),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageFailedError()
	}

	m := &model.Media{
		AssetID:     asset.ID,
		Kind:        kind,
		StoragePath: path,
		ContentType: contentType,
		SizeBytes:   up.Size,
	}
	if err := s.media.Create(ctx, m); err != nil {
		s.discardObject(ctx, path)
		return nil, fmt.Errorf("メディアの登録に失敗しました: %w", err)
	}

	s.logger.Info("メディアを登録しました",
		slog.String("asset_id", asset.ID),
		slog.String("media_id", m.ID),
		slog.String("kind", string(m.Kind)),
		slog.Int64("size_bytes", m.SizeBytes),
	)
	return m, nil
}

// discardObject は登録に失敗したオブジェクトを削除する。
// 削除にも失敗した場合は削除待ちに積み、ワーカーに任せる。
func (s *Service) discardObject(ctx context.Context, path string) {
	err := s.objects.Remove(ctx, path)
	if err == nil {
		return
	}
	s.logger.Warn("アップロード済みオブジェクトの削除に失敗しました",
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
	if qerr := s.queue.Enqueue(ctx, path); qerr != nil {
		s.logger.Error("ストレージ削除待ちへの追加に失敗しました",
			slog.String("path", path),
			slog.String("error", qerr.Error()),
		)
	}
}

// DeleteMedia はメディアを削除する。ストレージのオブジェクトは削除待ちに積まれる。
func (s *Service) DeleteMedia(ctx context.Context, id string) error {
	if err := s.media.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewMediaNotFoundError(id)
		}
		return fmt.Errorf("メディアの削除に失敗しました: %w", err)
	}
	s.logger.Info("メディアを削除しました", slog.String("media_id", id))
	return nil
}

// apply は入力を検証・正規化してassetに反映する。
func (s *Service) apply(asset *model.Asset, in AssetInput) error {
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		return model.NewValidationError("slug", "必須項目です")
	}
	if len(slug) > maxSlugLength {
		return model.NewValidationError("slug", fmt.Sprintf("%d文字以内で指定してください", maxSlugLength))
	}
	if !slugPattern.MatchString(slug) {
		return model.NewValidationError("slug", "英小文字・数字・ハイフンのみ使用できます")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.NewValidationError("title", "必須項目です")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return model.NewValidationError("title", fmt.Sprintf("%d文字以内で指定してください", maxTitleLength))
	}

	fields := []struct {
		name string
		in   *string
		max  int
		out  **string
	}{
		{"license", in.License, maxShortFieldLen, &asset.License},
		{"status", in.Status, maxStatusLength, &asset.Status},
		{"category", in.Category, maxShortFieldLen, &asset.Category},
		{"direction", in.Direction, maxShortFieldLen, &asset.Direction},
		{"topic", in.Topic, maxShortFieldLen, &asset.Topic},
	}
	for _, f := range fields {
		v := optional(f.in)
		if v != nil && utf8.RuneCountInString(*v) > f.max {
			return model.NewValidationError(f.name, fmt.Sprintf("%d文字以内で指定してください", f.max))
		}
		*f.out = v
	}

	platforms, err := normalizePlatforms(in.Platforms)
	if err != nil {
		return err
	}

	asset.Slug = slug
	asset.Title = title
	asset.Description = nil
	if d := optional(in.Description); d != nil {
		if clean := s.sanitizer.Sanitize(*d); clean != "" {
			asset.Description = &clean
		}
	}
	asset.Platforms = platforms
	return nil
}

// optional は空白のみの値をnilとして扱う。
func optional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func normalizePlatforms(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) > maxPlatformLength {
			return nil, model.NewValidationError("platforms", fmt.Sprintf("各要素は%d文字以内で指定してください", maxPlatformLength))
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(out) > maxPlatforms {
		return nil, model.NewValidationError("platforms", fmt.Sprintf("%d件以内で指定してください", maxPlatforms))
	}
	return out, nil
}

// imageExtensions は許可する画像形式と保存時の拡張子。
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/avif": ".avif",
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// allowedContentType はimage/*のうちラスター画像のみを許可する。
func allowedContentType(ct string) bool {
	_, ok := imageExtensions[ct]
	return ok
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)

// ObjectPath はメディアの保存先パス assets/<asset-id>/<uuid><ext> を返す。
func ObjectPath(assetID, contentType, filename string) string {
	ext, ok := imageExtensions[contentType]
	if !ok {
		ext = strings.ToLower(filepath.Ext(filename))
		if !extPattern.MatchString(ext) {
			ext = ""
		}
	}
	return "assets/" + assetID + "/" + uuid.NewString() + ext
}
