// Package app は設定の読み込み、依存関係のワイヤリング、各サブコマンドの実行を行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/ghdash/internal/auth"
	"github.com/hitoshi/ghdash/internal/config"
	"github.com/hitoshi/ghdash/internal/credential"
	"github.com/hitoshi/ghdash/internal/database"
	"github.com/hitoshi/ghdash/internal/github"
	"github.com/hitoshi/ghdash/internal/handler"
	"github.com/hitoshi/ghdash/internal/logger"
	"github.com/hitoshi/ghdash/internal/metrics"
	"github.com/hitoshi/ghdash/internal/middleware"
	"github.com/hitoshi/ghdash/internal/repository"
	"github.com/hitoshi/ghdash/internal/search"
	"github.com/hitoshi/ghdash/internal/security"
	"github.com/hitoshi/ghdash/internal/session"
	"github.com/hitoshi/ghdash/internal/worker/cleanup"
)

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数のConfigを読み込み、LOG_LEVELを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	var level slog.LevelVar
	l := logger.SetupDefault(w, &level)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルを反映する（Validate済みのためエラーにならない）
	lvl, _ := config.ParseLogLevel(cfg.LogLevel)
	level.Set(lvl)

	return cfg, l, nil
}

// App はワイヤリング済みのHTTPハンドラーと、停止時に解放するリソースを保持する。
type App struct {
	Handler http.Handler

	pinger      repository.Pinger
	sessionRepo repository.SessionRepository
	cleanupJob  *cleanup.SessionCleanupJob
	closers     []func()
}

// New はConfigから全依存関係を構築する。
// Postgresバックエンドの場合もDB接続は遅延し、疎通確認は呼び出し元が行う。
func New(cfg *config.Config, l *slog.Logger) (*App, error) {
	if l == nil {
		l = slog.Default()
	}
	a := &App{}

	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. セキュリティ
	encryptor, err := security.NewEncryptor([]byte(cfg.CredentialEncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	// 3. アップストリームクライアントとOAuthプロバイダー
	upstreamHTTP := &http.Client{Timeout: cfg.UpstreamTimeout}
	client, err := github.NewClient(github.Config{
		BaseURL:      cfg.UpstreamBaseURL,
		HTTPClient:   upstreamHTTP,
		MaxBodyBytes: cfg.UpstreamMaxBody,
		Metrics:      collector,
		Logger:       l,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create github client: %w", err)
	}

	provider, err := auth.NewGitHubProvider(auth.GitHubConfig{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.GitHubRedirectURL,
		Scopes:       cfg.Scopes(),
		HTTPClient:   upstreamHTTP,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth provider: %w", err)
	}

	// 4. セッション戦略（プロセスごとに1つだけ）
	store, err := a.buildStore(cfg, encryptor, l)
	if err != nil {
		a.Close()
		return nil, err
	}

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSearch),
	)
	a.closers = append(a.closers, rateLimiter.Stop)

	deps := &handler.RouterDeps{
		Logger:            l,
		Metrics:           collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		Store:    store,
		AuthFlow: auth.NewService(provider, client, collector, l),
		AuthConfig: handler.AuthHandlerConfig{
			FrontendURL: cfg.FrontendURL,
			TrustProxy:  cfg.TrustProxy,
		},

		Resources: client,
		Searcher:  search.NewAggregator(client, collector, l),
		Suggester: search.NewSuggester(client),

		MetricsHandler: metrics.Handler(registry),
	}
	if a.pinger != nil {
		deps.Pinger = a.pinger
	}
	a.Handler = handler.NewRouter(deps)

	l.Info("application wired",
		slog.String("session_strategy", store.Strategy()),
		slog.String("session_backend", cfg.SessionBackend),
		slog.Bool("credential_encryption", cfg.CredentialEncryptionKey != ""),
	)
	return a, nil
}

// buildStore はSESSION_STRATEGYとSESSION_BACKENDに従ってsession.Storeを構築する。
func (a *App) buildStore(cfg *config.Config, encryptor *security.Encryptor, l *slog.Logger) (session.Store, error) {
	if cfg.SessionStrategy == config.StrategyBearer {
		codec, err := credential.NewCodec(credential.Config{
			SigningSecret: []byte(cfg.SessionSecret),
			TTL:           cfg.SessionTTL,
			Encryptor:     encryptor,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create credential codec: %w", err)
		}
		return session.NewBearerStore(codec), nil
	}

	switch cfg.SessionBackend {
	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })

		repo := repository.NewPostgresSessionRepo(db, encryptor)
		a.sessionRepo = repo
		a.pinger = repo
		a.cleanupJob = cleanup.NewSessionCleanupJob(repo, l)
		a.cleanupJob.Interval = cfg.SessionCleanupInterval
	default:
		repo := repository.NewMemorySessionRepo(repository.MemorySessionRepoConfig{
			CleanupInterval: cfg.SessionCleanupInterval,
		})
		a.sessionRepo = repo
		a.closers = append(a.closers, repo.Stop)
	}

	return session.NewCookieStore(a.sessionRepo, session.CookieConfig{
		TTL:        cfg.SessionTTL,
		Domain:     cfg.CookieDomain,
		TrustProxy: cfg.TrustProxy,
	}), nil
}

// Close は保持しているリソースを登録と逆順に解放する。
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// runServe はAPIサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	// 1. ワイヤリング
	a, err := New(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer a.Close()

	// 2. DB疎通確認（Postgresバックエンドのみ）
	if a.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := a.pinger.PingContext(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		l.Info("database connection established")
	}

	// 3. HTTPサーバーとクリーンアップジョブの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           a.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("frontend_url", cfg.FrontendURL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})
	if a.cleanupJob != nil {
		g.Go(func() error {
			a.cleanupJob.Start(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	l.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, l *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	l.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	if err := database.RunMigrations(cfg.DatabaseURL, l); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	l.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// targetにHTTPリクエストを送り、200以外をエラーとする。
func runHealthcheck(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// healthcheckURL はローカルの/healthエンドポイントのURLを返す。
func healthcheckURL(port string) string {
	return "http://localhost:" + port + "/health"
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
