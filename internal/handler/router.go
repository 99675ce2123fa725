package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ghdash/internal/metrics"
	"github.com/hitoshi/ghdash/internal/middleware"
	"github.com/hitoshi/ghdash/internal/session"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証。Storeは選択された戦略の1つのみ
	Store      session.Store
	AuthFlow   AuthFlow
	AuthConfig AuthHandlerConfig

	// アップストリーム
	Resources ResourceReader
	Searcher  Searcher
	Suggester SuggestionProvider

	// 運用
	Pinger         Pinger       // nilなら/healthは疎通確認を行わない
	MetricsHandler http.Handler // nilなら/metricsを公開しない
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → StatusMetrics → SecurityHeaders → CORS
//	  → [/api] Session → RateLimit(General) → [/api/search, /api/suggest] RateLimit(Search)
//
// 認証ルート（/auth/*, /logout）とヘルスチェックはSessionミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NopCollector{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewStatusMetricsMiddleware(m))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthFlow, deps.Store, deps.AuthConfig)
	resourceHandler := NewResourceHandler(deps.Resources)
	searchHandler := NewSearchHandler(deps.Searcher, deps.Suggester)

	// --- 認証不要のルート ---

	r.Get("/", Root)
	r.Get("/health", NewHealthHandler(deps.Pinger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", authHandler.Login)
		r.Get("/callback", authHandler.Callback)
	})
	r.Get("/logout", authHandler.Logout)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Store))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/user", authHandler.Me)

		// リポジトリ
		r.Route("/resources", func(r chi.Router) {
			r.Get("/", resourceHandler.ListResources)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", resourceHandler.GetResource)
				r.Get("/issues", resourceHandler.ListIssues)
				r.Get("/pulls", resourceHandler.ListPullRequests)
			})
		})

		// 検索（検索専用レート制限を追加）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.SearchMiddleware())
			r.Get("/search", searchHandler.Search)
			r.Get("/suggest", searchHandler.Suggest)
		})
	})

	return r
}
