// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/catalog/internal/model"
)

// AssetQuery は一覧取得の条件を表す。
// FilterColumnが空の場合は絞り込みを行わない。
type AssetQuery struct {
	EntityType   model.EntityType
	FilterColumn model.FilterColumn
	FilterValue  string
	Offset       int
	Limit        int
}

// AssetRepository はアセットデータの永続化インターフェース。
type AssetRepository interface {
	// ListPage は条件に一致するアセットをcreated_at降順で1ページ分取得し、
	// 絞り込み後の総件数（ページングに依存しない正確な件数）とともに返す。
	// 件数の取得後に行の取得が失敗した場合は、取得済みの件数とエラーを返す。
	ListPage(ctx context.Context, q AssetQuery) ([]model.Asset, int, error)

	// ListFilterValues は指定種別のアセットについて、絞り込み列のNULLでない値を昇順で返す。
	// 重複は除去しない。
	ListFilterValues(ctx context.Context, entity model.EntityType, column model.FilterColumn) ([]string, error)

	// FindBySlug は種別とslugでアセットを取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, entity model.EntityType, slug string) (*model.Asset, error)

	// FindByID は指定IDのアセットを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Asset, error)

	// Create はアセットを作成し、ID・作成日時・更新日時を設定する。
	// 同一種別内でslugが重複する場合はmodel.ErrDuplicateSlugを返す。
	Create(ctx context.Context, asset *model.Asset) error

	// Update はアセットを更新し、更新日時を設定する。
	// 存在しない場合はmodel.ErrNotFoundを返す。
	Update(ctx context.Context, asset *model.Asset) error

	// Delete は指定IDのアセットを削除する。関連するメディアはCASCADE削除される。
	// 存在しない場合はmodel.ErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// MediaRepository はアセットに紐づくメディアの永続化インターフェース。
type MediaRepository interface {
	// ListByAsset はアセットのメディアをposition昇順で返す。
	ListByAsset(ctx context.Context, assetID string) ([]model.Media, error)

	// FindByID は指定IDのメディアを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Media, error)

	// Create はメディアを末尾のpositionで作成し、ID・position・作成日時を設定する。
	Create(ctx context.Context, media *model.Media) error

	// Delete は指定IDのメディアを削除する。ストレージの削除待ちはトリガーで積まれる。
	// 存在しない場合はmodel.ErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// StorageDeletionRepository はストレージ削除待ちの永続化インターフェース。
type StorageDeletionRepository interface {
	// ListDue は処理時刻に達した削除待ちを最大limit件取得する。
	// 取得した行はリース期間だけ次回処理時刻を先送りし、他のワーカーと重複しないようにする。
	ListDue(ctx context.Context, limit int) ([]model.StorageDeletion, error)

	// Enqueue はストレージパスを削除待ちに追加する。
	Enqueue(ctx context.Context, storagePath string) error

	// Complete は削除が完了した行を取り除く。
	Complete(ctx context.Context, id int64) error

	// Reschedule は失敗した削除の試行回数とエラーを記録し、次回処理時刻を設定する。
	Reschedule(ctx context.Context, id int64, attempts int, lastErr string, next time.Time) error
}
