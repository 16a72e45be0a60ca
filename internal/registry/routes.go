// Package registry はカタログ一覧のクエリ解釈・ページング・プレビュー解決を行うパイプラインを提供する。
package registry

import (
	"slices"

	"github.com/hitoshi/catalog/internal/model"
)

// PageSize は1ページあたりの件数。
const PageSize = 12

// MediaMode は一覧でのメディア表示方式。
type MediaMode string

const (
	// MediaModeImage はプレビュー画像を表示する。
	MediaModeImage MediaMode = "image"
	// MediaModeTitle はタイトルのみを表示し、メディアを解決しない。
	MediaModeTitle MediaMode = "title"
)

// PageConfig はカタログのルートごとの静的な設定。ユーザー入力からは変更されない。
type PageConfig struct {
	Route          string             `json:"route"`
	EntityType     model.EntityType   `json:"entity_type"`
	DisplayFields  []string           `json:"display_fields"`
	FilterColumn   model.FilterColumn `json:"filter_column"`
	FilterLabelKey string             `json:"filter_label_key"`
	EmptyStateKey  string             `json:"empty_state_key"`
	MediaMode      MediaMode          `json:"media_mode"`
	DetailBasePath string             `json:"detail_base_path"`
}

// DetailPath はslugに対応する詳細ページのパスを返す。
func (c PageConfig) DetailPath(slug string) string {
	return c.DetailBasePath + "/" + slug
}

// routes は表示順に並べたルート設定。
var routes = []PageConfig{
	{
		Route:          "models",
		EntityType:     model.EntityModel,
		DisplayFields:  []string{"title", "description", "category", "license", "status"},
		FilterColumn:   model.FilterCategory,
		FilterLabelKey: "registry.models.filter",
		EmptyStateKey:  "registry.models.empty",
		MediaMode:      MediaModeImage,
		DetailBasePath: "/models",
	},
	{
		Route:          "creators",
		EntityType:     model.EntityCreator,
		DisplayFields:  []string{"title", "description", "direction", "platforms", "status"},
		FilterColumn:   model.FilterDirection,
		FilterLabelKey: "registry.creators.filter",
		EmptyStateKey:  "registry.creators.empty",
		MediaMode:      MediaModeImage,
		DetailBasePath: "/creators",
	},
	{
		Route:          "influencers",
		EntityType:     model.EntityInfluencer,
		DisplayFields:  []string{"title", "topic", "platforms", "status"},
		FilterColumn:   model.FilterTopic,
		FilterLabelKey: "registry.influencers.filter",
		EmptyStateKey:  "registry.influencers.empty",
		MediaMode:      MediaModeTitle,
		DetailBasePath: "/influencers",
	},
}

func (c PageConfig) clone() PageConfig {
	c.DisplayFields = slices.Clone(c.DisplayFields)
	return c
}

// Routes は全ルート設定のコピーを表示順で返す。
func Routes() []PageConfig {
	out := make([]PageConfig, len(routes))
	for i, c := range routes {
		out[i] = c.clone()
	}
	return out
}

// Lookup はルート名に対応する設定のコピーを返す。
func Lookup(route string) (PageConfig, bool) {
	for _, c := range routes {
		if c.Route == route {
			return c.clone(), true
		}
	}
	return PageConfig{}, false
}
