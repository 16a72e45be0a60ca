// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrNotFound は対象の行が存在しないことを表す。
var ErrNotFound = errors.New("not found")

// ErrDuplicateSlug は同一エンティティ種別内でslugが重複したことを表す。
var ErrDuplicateSlug = errors.New("duplicate slug")

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, media, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeRouteNotFound  = "ROUTE_NOT_FOUND"
	ErrCodeAssetNotFound  = "ASSET_NOT_FOUND"
	ErrCodeMediaNotFound  = "MEDIA_NOT_FOUND"
	ErrCodeValidation     = "VALIDATION_FAILED"
	ErrCodeDuplicateSlug  = "DUPLICATE_SLUG"
	ErrCodeUploadTooLarge = "UPLOAD_TOO_LARGE"
	ErrCodeStorageFailed  = "STORAGE_FAILED"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeCSRF           = "CSRF_TOKEN_INVALID"
)

// NewRouteNotFoundError はカタログルート未定義エラーを生成する。
func NewRouteNotFoundError(route string) *APIError {
	return &APIError{
		Code:     ErrCodeRouteNotFound,
		Message:  fmt.Sprintf("指定されたカタログは存在しません: %s", route),
		Category: "catalog",
		Action:   "models、creators、influencers のいずれかを指定してください。",
	}
}

// NewAssetNotFoundError はアセット未検出エラーを生成する。
func NewAssetNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeAssetNotFound,
		Message:  fmt.Sprintf("指定されたアセットが見つかりません: %s", key),
		Category: "catalog",
		Action:   "URLまたはアセットIDを確認してください。",
	}
}

// NewMediaNotFoundError はメディア未検出エラーを生成する。
func NewMediaNotFoundError(mediaID string) *APIError {
	return &APIError{
		Code:     ErrCodeMediaNotFound,
		Message:  fmt.Sprintf("指定されたメディアが見つかりません: %s", mediaID),
		Category: "media",
		Action:   "メディアIDを確認してください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("%s が不正です: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewDuplicateSlugError はslug重複エラーを生成する。
func NewDuplicateSlugError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSlug,
		Message:  fmt.Sprintf("このslugは既に使用されています: %s", slug),
		Category: "validation",
		Action:   "別のslugを指定してください。",
	}
}

// NewUploadTooLargeError はアップロードサイズ超過エラーを生成する。
func NewUploadTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeUploadTooLarge,
		Message:  fmt.Sprintf("ファイルサイズが上限（%dバイト）を超えています。", limit),
		Category: "media",
		Action:   "ファイルを縮小してから再度アップロードしてください。",
	}
}

// NewStorageFailedError はオブジェクトストレージ操作の失敗エラーを生成する。
func NewStorageFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailed,
		Message:  "ファイルストレージへのアクセスに失敗しました。",
		Category: "media",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}
