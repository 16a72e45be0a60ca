// Package storage はメディアを保存するオブジェクトストレージへのアクセスを提供する。
// Supabase StorageとMinIO（S3互換）の2つのドライバーを持つ。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/catalog/internal/config"
)

// ErrObjectNotFound は指定パスのオブジェクトが存在しないことを表す。
var ErrObjectNotFound = errors.New("object not found")

// Transform は署名付きURLで配信する画像の変換条件。
// ゼロ値のフィールドは変換しない。
type Transform struct {
	Width   int
	Quality int
}

// ObjectStore はオブジェクトストレージの操作インターフェース。
type ObjectStore interface {
	// SignedURL はオブジェクトを期限付きで取得できる署名付きURLを返す。
	// オブジェクトが存在しない場合はErrObjectNotFoundを返す。
	SignedURL(ctx context.Context, path string, ttl time.Duration, transform *Transform) (string, error)

	// Upload はオブジェクトを保存する。同じパスが既に存在する場合はエラーを返す。
	Upload(ctx context.Context, path, contentType string, body io.Reader, size int64) error

	// Remove はオブジェクトを削除する。
	// オブジェクトが存在しない場合、ドライバーが判別できればErrObjectNotFoundを返す。
	Remove(ctx context.Context, path string) error
}

// New は設定のSTORAGE_DRIVERに応じたObjectStoreを生成する。
func New(cfg *config.Config, logger *slog.Logger) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case "supabase":
		httpClient := &http.Client{Timeout: 15 * time.Second}
		return NewSupabaseStore(httpClient, logger, cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.StorageBucket), nil
	case "minio":
		return NewMinioStore(MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Region:    cfg.MinioRegion,
			Bucket:    cfg.StorageBucket,
		})
	default:
		return nil, fmt.Errorf("未対応のストレージドライバーです: %q", cfg.StorageDriver)
	}
}

// cleanPath は先頭と末尾のスラッシュを取り除いたオブジェクトパスを返す。
func cleanPath(p string) string {
	return strings.Trim(strings.TrimSpace(p), "/")
}
