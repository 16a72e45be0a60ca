package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/hitoshi/catalog/internal/model"
	"github.com/hitoshi/catalog/internal/repository"
	"github.com/hitoshi/catalog/internal/storage"
)

// DefaultPreviewTTL は署名付きプレビューURLの既定の有効期間。
const DefaultPreviewTTL = time.Hour

// AssetReader は一覧・詳細の取得に必要なアセット読み取り操作。
type AssetReader interface {
	ListPage(ctx context.Context, q repository.AssetQuery) ([]model.Asset, int, error)
	ListFilterValues(ctx context.Context, entity model.EntityType, column model.FilterColumn) ([]string, error)
	FindBySlug(ctx context.Context, entity model.EntityType, slug string) (*model.Asset, error)
}

// MediaLister はアセットのメディア一覧を取得する。
type MediaLister interface {
	ListByAsset(ctx context.Context, assetID string) ([]model.Media, error)
}

// URLSigner は署名付きURLを発行する。
type URLSigner interface {
	SignedURL(ctx context.Context, path string, ttl time.Duration, transform *storage.Transform) (string, error)
}

// Recorder は一覧読み込みとプレビュー解決の結果を記録する。
type Recorder interface {
	RecordPageLoad(route, outcome string, duration time.Duration)
	RecordPreview(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordPageLoad(string, string, time.Duration) {}
func (nopRecorder) RecordPreview(string)                         {}

// ページ読み込み結果のラベル
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Options はServiceの調整可能な設定。ゼロ値のフィールドは既定値を使う。
type Options struct {
	PreviewTTL    time.Duration
	Transform     storage.Transform
	DefaultLocale language.Tag
	Recorder      Recorder
}

// Service はカタログ一覧・詳細の読み込みパイプライン。
// リクエストごとにDBとストレージへ問い合わせ、結果をキャッシュしない。
type Service struct {
	assets  AssetReader
	media   MediaLister
	signer  URLSigner
	logger  *slog.Logger
	ttl     time.Duration
	tf      storage.Transform
	locale  language.Tag
	metrics Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(assets AssetReader, media MediaLister, signer URLSigner, logger *slog.Logger, opts Options) *Service {
	if opts.PreviewTTL <= 0 {
		opts.PreviewTTL = DefaultPreviewTTL
	}
	if opts.DefaultLocale == language.Und {
		opts.DefaultLocale = language.Russian
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Service{
		assets:  assets,
		media:   media,
		signer:  signer,
		logger:  logger,
		ttl:     opts.PreviewTTL,
		tf:      opts.Transform,
		locale:  opts.DefaultLocale,
		metrics: opts.Recorder,
	}
}

// Page は一覧1ページ分の結果。
// Errorが空でItemsが空の場合は「該当なし」、Errorがある場合は「読み込み失敗」を表す。
type Page struct {
	Route          string                `json:"route"`
	Locale         string                `json:"locale"`
	Items          []model.AssetListItem `json:"items"`
	TotalCount     int                   `json:"total_count"`
	PageCount      int                   `json:"page_count"`
	Page           int                   `json:"page"`
	PrevPage       *int                  `json:"prev_page"`
	NextPage       *int                  `json:"next_page"`
	Category       *string               `json:"category"`
	FilterValues   []string              `json:"filter_values"`
	FilterLabelKey string                `json:"filter_label_key"`
	EmptyStateKey  string                `json:"empty_state_key"`
	MediaMode      MediaMode             `json:"media_mode"`
	View           View                  `json:"view"`
	Error          string                `json:"error,omitempty"`
}

// LoadPage は一覧1ページ分を読み込む。
// 失敗してもエラーを返さず、Itemsを空にしてPage.Errorにメッセージを設定する。
func (s *Service) LoadPage(ctx context.Context, cfg PageConfig, q Query, locale language.Tag) (page Page) {
	start := time.Now()
	if locale == language.Und {
		locale = s.locale
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.View == "" {
		q.View = ViewCards
	}

	page = Page{
		Route:          cfg.Route,
		Locale:         locale.String(),
		Items:          []model.AssetListItem{},
		Page:           q.Page,
		FilterValues:   []string{},
		FilterLabelKey: cfg.FilterLabelKey,
		EmptyStateKey:  cfg.EmptyStateKey,
		MediaMode:      cfg.MediaMode,
		View:           q.View,
	}
	if q.Category != "" {
		c := q.Category
		page.Category = &c
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("カタログ一覧の読み込み中にパニックが発生しました",
				slog.String("route", cfg.Route),
				slog.Any("panic", r),
			)
			page.Items = []model.AssetListItem{}
			page.Error = errorMessage(locale)
		}
		page.PageCount = PageCount(page.TotalCount)
		page.PrevPage, page.NextPage = Neighbors(page.Page, page.PageCount)

		outcome := OutcomeOK
		switch {
		case page.Error != "":
			outcome = OutcomeError
		case len(page.Items) == 0:
			outcome = OutcomeEmpty
		}
		s.metrics.RecordPageLoad(cfg.Route, outcome, time.Since(start))
	}()

	from, _ := Range(q.Page)
	aq := repository.AssetQuery{
		EntityType: cfg.EntityType,
		Offset:     from,
		Limit:      PageSize,
	}
	if q.Category != "" {
		aq.FilterColumn = cfg.FilterColumn
		aq.FilterValue = q.Category
	}

	var (
		rows   []model.Asset
		total  int
		values []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.assets.ListFilterValues(gctx, cfg.EntityType, cfg.FilterColumn)
		if err != nil {
			return fmt.Errorf("絞り込み値の取得に失敗しました: %w", err)
		}
		values = v
		return nil
	})
	g.Go(func() error {
		r, n, err := s.assets.ListPage(gctx, aq)
		total = n
		if err != nil {
			return fmt.Errorf("アセット一覧の取得に失敗しました: %w", err)
		}
		rows = r
		return nil
	})
	err := g.Wait()
	page.TotalCount = total
	if err != nil {
		s.logger.Error("カタログ一覧の読み込みに失敗しました",
			slog.String("route", cfg.Route),
			slog.Int("page", q.Page),
			slog.String("category", q.Category),
			slog.String("error", err.Error()),
		)
		page.Error = errorMessage(locale)
		return page
	}

	page.FilterValues = SortFilterValues(values, locale)

	items := make([]model.AssetListItem, len(rows))
	for i, a := range rows {
		items[i] = model.NewAssetListItem(a)
	}
	if cfg.MediaMode == MediaModeImage {
		s.attachPreviews(ctx, items)
	}
	page.Items = items

	s.logger.Debug("カタログ一覧を読み込みました",
		slog.String("route", cfg.Route),
		slog.Int("page", q.Page),
		slog.Int("total_count", total),
		slog.Int("items", len(items)),
	)
	return page
}

// attachPreviews は各行のプレビューURLを並行して解決する。行の順序は変えない。
func (s *Service) attachPreviews(ctx context.Context, items []model.AssetListItem) {
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := s.resolvePreview(ctx, items[i].ID)
			s.metrics.RecordPreview(string(res.Outcome))
			if res.Outcome == PreviewResolved {
				u := res.URL
				items[i].PreviewURL = &u
			}
		}(i)
	}
	wg.Wait()
}

// PreviewOutcome はプレビュー解決の結果種別。
type PreviewOutcome string

const (
	// PreviewResolved は署名付きURLを取得できた。
	PreviewResolved PreviewOutcome = "resolved"
	// PreviewNoMedia はプレビュー対象のメディアが無い。
	PreviewNoMedia PreviewOutcome = "no_media"
	// PreviewUnavailable はメディアの取得または署名に失敗した。
	PreviewUnavailable PreviewOutcome = "unavailable"
)

// PreviewResult はプレビュー解決の結果。URLはResolvedの場合のみ設定される。
type PreviewResult struct {
	Outcome PreviewOutcome
	URL     string
	Err     error
}

func (s *Service) resolvePreview(ctx context.Context, assetID string) (res PreviewResult) {
	defer func() {
		if r := recover(); r != nil {
			res = PreviewResult{Outcome: PreviewUnavailable, Err: fmt.Errorf("panic: %v", r)}
		}
		if res.Outcome == PreviewUnavailable {
			s.logger.Warn("プレビューURLの解決に失敗しました",
				slog.String("asset_id", assetID),
				slog.String("error", errString(res.Err)),
			)
		}
	}()

	media, err := s.media.ListByAsset(ctx, assetID)
	if err != nil {
		return PreviewResult{Outcome: PreviewUnavailable, Err: err}
	}
	m, ok := PickPreview(media)
	if !ok {
		return PreviewResult{Outcome: PreviewNoMedia}
	}

	tf := s.tf
	u, err := s.signer.SignedURL(ctx, m.StoragePath, s.ttl, &tf)
	if err != nil {
		return PreviewResult{Outcome: PreviewUnavailable, Err: err}
	}
	return PreviewResult{Outcome: PreviewResolved, URL: u}
}

// PickPreview はプレビューに使うメディアを選ぶ。
// catalogをheroより優先し、同じ種別ではposition順で先頭のものを使う。galleryは対象外。
func PickPreview(media []model.Media) (model.Media, bool) {
	var hero *model.Media
	for i := range media {
		switch media[i].Kind {
		case model.MediaKindCatalog:
			return media[i], true
		case model.MediaKindHero:
			if hero == nil {
				hero = &media[i]
			}
		}
	}
	if hero != nil {
		return *hero, true
	}
	return model.Media{}, false
}

// DetailMedia は詳細ページに表示するメディア。URLは署名に失敗した場合nil。
type DetailMedia struct {
	ID          string          `json:"id"`
	Kind        model.MediaKind `json:"kind"`
	ContentType string          `json:"content_type"`
	Position    int             `json:"position"`
	URL         *string         `json:"url"`
}

// Detail はアセット詳細の読み込み結果。
type Detail struct {
	Route  string              `json:"route"`
	Locale string              `json:"locale"`
	Path   string              `json:"path"`
	Asset  model.AssetListItem `json:"asset"`
	Media  []DetailMedia       `json:"media"`
}

// LoadDetail は種別とslugでアセットを取得し、全メディアの署名付きURLを付けて返す。
// 存在しない場合はAPIErrorを返す。
func (s *Service) LoadDetail(ctx context.Context, cfg PageConfig, slug string, locale language.Tag) (*Detail, error) {
	if locale == language.Und {
		locale = s.locale
	}

	asset, err := s.assets.FindBySlug(ctx, cfg.EntityType, slug)
	if err != nil {
		return nil, fmt.Errorf("アセットの取得に失敗しました: %w", err)
	}
	if asset == nil {
		return nil, model.NewAssetNotFoundError(slug)
	}

	media, err := s.media.ListByAsset(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("メディアの取得に失敗しました: %w", err)
	}

	d := &Detail{
		Route:  cfg.Route,
		Locale: locale.String(),
		Path:   cfg.DetailPath(asset.Slug),
		Asset:  model.NewAssetListItem(*asset),
		Media:  make([]DetailMedia, len(media)),
	}

	var g errgroup.Group
	g.SetLimit(PageSize)
	for i, m := range media {
		d.Media[i] = DetailMedia{
			ID:          m.ID,
			Kind:        m.Kind,
			ContentType: m.ContentType,
			Position:    m.Position,
		}
		g.Go(func() error {
			u, err := s.signer.SignedURL(ctx, m.StoragePath, s.ttl, nil)
			if err != nil {
				s.logger.Warn("メディアの署名付きURLの発行に失敗しました",
					slog.String("media_id", m.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			d.Media[i].URL = &u
			return nil
		})
	}
	_ = g.Wait()

	if cfg.MediaMode == MediaModeImage {
		if p, ok := PickPreview(media); ok {
			for _, dm := range d.Media {
				if dm.ID == p.ID {
					d.Asset.PreviewURL = dm.URL
					break
				}
			}
		}
	}

	return d, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
