package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/catalog/internal/locale"
	"github.com/hitoshi/catalog/internal/metrics"
	"github.com/hitoshi/catalog/internal/middleware"
	"github.com/hitoshi/catalog/internal/pending"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Negotiator        *locale.Negotiator
	StatusRecorder    middleware.StatusRecorder
	Gatherer          prometheus.Gatherer

	// ヘルスチェック
	HealthChecker HealthChecker

	// 公開カタログ
	CatalogService CatalogServiceInterface
	Cookies        locale.CookieOptions

	// 処理中状態
	Pending *pending.Coordinator

	// 管理
	AdminService   AdminServiceInterface
	AdminJWTSecret []byte
	CSRFConfig     middleware.CSRFConfig
	UploadMaxBytes int64
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → StatusMetrics → Locale → RateLimit(General)
//
// 管理ルート（/api/admin/*）はさらに AdminAuth → CSRF → Pending を通す。
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewStatusMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(deps.Negotiator.Middleware)

	catalogHandler := NewCatalogHandler(deps.CatalogService)
	prefsHandler := NewPreferencesHandler(deps.Cookies)
	statusHandler := NewStatusHandler(deps.Pending, deps.CORSAllowedOrigin, deps.Logger)
	adminHandler := NewAdminHandler(deps.AdminService, deps.UploadMaxBytes)

	// --- レート制限の対象外 ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// 公開カタログ
		r.Route("/api/catalog", func(r chi.Router) {
			r.Get("/", catalogHandler.ListRoutes)
			r.Get("/{route}", catalogHandler.GetPage)
			r.Get("/{route}/{slug}", catalogHandler.GetDetail)
		})

		r.Post("/api/preferences", prefsHandler.Update)

		// 処理中状態
		r.Get("/api/status", statusHandler.GetStatus)
		r.Get("/api/status/ws", statusHandler.Stream)

		// 管理
		// ミドルウェアスタック: AdminAuth → CSRF → Pending
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.NewAdminAuthMiddleware(deps.AdminJWTSecret))
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
			r.Use(middleware.NewPendingMiddleware(deps.Pending))

			r.Route("/assets", func(r chi.Router) {
				r.Post("/", adminHandler.CreateAsset)

				r.Route("/{id}", func(r chi.Router) {
					r.Put("/", adminHandler.UpdateAsset)
					r.Delete("/", adminHandler.DeleteAsset)

					// アップロード専用のレート制限を追加
					r.With(deps.RateLimiter.UploadMiddleware()).Post("/media", adminHandler.UploadMedia)
				})
			})

			r.Delete("/media/{id}", adminHandler.DeleteMedia)
		})
	})

	return r
}
