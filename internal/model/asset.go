// Package model はドメインモデルを定義する。
package model

import "time"

// EntityType はカタログに掲載するアセットの種別を表す。
type EntityType string

const (
	// EntityModel はモデル（人物モデル）を表す。
	EntityModel EntityType = "model"
	// EntityCreator はクリエイターを表す。
	EntityCreator EntityType = "creator"
	// EntityInfluencer はインフルエンサーを表す。
	EntityInfluencer EntityType = "influencer"
)

// Valid はエンティティ種別が定義済みの値かどうかを返す。
func (e EntityType) Valid() bool {
	switch e {
	case EntityModel, EntityCreator, EntityInfluencer:
		return true
	default:
		return false
	}
}

// MediaKind はアセットに紐づくメディアの用途を表す。
type MediaKind string

const (
	// MediaKindCatalog は一覧表示用のプレビュー画像。プレビュー候補として最優先される。
	MediaKindCatalog MediaKind = "catalog"
	// MediaKindHero は詳細ページのメイン画像。catalogが無い場合のプレビュー候補。
	MediaKindHero MediaKind = "hero"
	// MediaKindGallery は詳細ページのギャラリー画像。プレビュー候補にはならない。
	MediaKindGallery MediaKind = "gallery"
)

// Valid はメディア種別が定義済みの値かどうかを返す。
func (k MediaKind) Valid() bool {
	switch k {
	case MediaKindCatalog, MediaKindHero, MediaKindGallery:
		return true
	default:
		return false
	}
}

// FilterColumn は一覧の絞り込みに使える列を表す。
type FilterColumn string

const (
	FilterCategory  FilterColumn = "category"
	FilterDirection FilterColumn = "direction"
	FilterTopic     FilterColumn = "topic"
)

// Valid は絞り込み列が許可された列かどうかを返す。
func (c FilterColumn) Valid() bool {
	switch c {
	case FilterCategory, FilterDirection, FilterTopic:
		return true
	default:
		return false
	}
}

// FilterValue はアセットの絞り込み列の値を返す。未設定の場合はnilを返す。
func (a Asset) FilterValue(c FilterColumn) *string {
	switch c {
	case FilterCategory:
		return a.Category
	case FilterDirection:
		return a.Direction
	case FilterTopic:
		return a.Topic
	default:
		return nil
	}
}

// Asset はassetsテーブルの1行を表す。
// 任意項目はポインタで表し、NULLとの区別を保持する。
type Asset struct {
	ID          string
	EntityType  EntityType
	Slug        string
	Title       string
	Description *string // サニタイズ済みHTML
	License     *string
	Status      *string
	Category    *string
	Direction   *string
	Topic       *string
	Platforms   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Media はasset_mediaテーブルの1行を表す。
type Media struct {
	ID          string
	AssetID     string
	Kind        MediaKind
	StoragePath string
	ContentType string
	SizeBytes   int64
	Position    int
	CreatedAt   time.Time
}

// AssetListItem は一覧表示用に正規化された読み取り専用の射影。
// リクエストごとに生成され、永続化されない。
// PreviewURLは署名付きURLの有効期間内のみ有効で、キャッシュしてはならない。
type AssetListItem struct {
	ID          string     `json:"id"`
	EntityType  EntityType `json:"entity_type"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	License     *string    `json:"license"`
	Status      *string    `json:"status"`
	Category    *string    `json:"category,omitempty"`
	Direction   *string    `json:"direction,omitempty"`
	Topic       *string    `json:"topic,omitempty"`
	Platforms   []string   `json:"platforms,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PreviewURL  *string    `json:"preview_url"`
}

// NewAssetListItem はAssetから一覧表示用の射影を生成する。PreviewURLは呼び出し側で設定する。
func NewAssetListItem(a Asset) AssetListItem {
	return AssetListItem{
		ID:          a.ID,
		EntityType:  a.EntityType,
		Slug:        a.Slug,
		Title:       a.Title,
		Description: a.Description,
		License:     a.License,
		Status:      a.Status,
		Category:    a.Category,
		Direction:   a.Direction,
		Topic:       a.Topic,
		Platforms:   a.Platforms,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// StorageDeletion はストレージから削除待ちのオブジェクトを表す。
// asset_mediaの行削除時にトリガーで積まれ、ワーカーが処理する。
type StorageDeletion struct {
	ID            int64
	StoragePath   string
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
}
