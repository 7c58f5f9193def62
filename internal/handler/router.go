package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/releasedrop/internal/middleware"
)

// HealthChecker はヘルスチェックでDB疎通を確認するインターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder

	// アーティスト
	ArtistService ArtistServiceInterface

	// リリース
	ReleaseService ReleaseServiceInterface

	// 統合
	LibraryChecker LibraryCheckerInterface
	Importer       ImporterInterface
	Notifiers      NotifierSource

	// スキャン
	Scheduler ScanSchedulerInterface

	// メトリクス公開用ハンドラー
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → CORSMiddleware → LoggingMiddleware → RateLimitMiddleware
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))

	artistHandler := NewArtistHandler(deps.ArtistService)
	releaseHandler := NewReleaseHandler(deps.ReleaseService)
	integrationHandler := NewIntegrationHandler(deps.LibraryChecker, deps.Importer, deps.Notifiers)
	scanHandler := NewScanHandler(deps.Scheduler)

	// --- レート制限の外のルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// アーティスト管理
		r.Route("/api/artists", func(r chi.Router) {
			r.Get("/search", artistHandler.Search)
			r.Post("/", artistHandler.Follow)
			r.Get("/", artistHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", artistHandler.Get)
				r.Delete("/", artistHandler.Unfollow)
				r.Get("/releases", releaseHandler.ListByArtist)
				r.Post("/refresh", scanHandler.RefreshArtist)
			})
		})

		// リリース閲覧と既読管理
		r.Route("/api/releases", func(r chi.Router) {
			r.Get("/", releaseHandler.List)
			r.Get("/latest", releaseHandler.Latest)
			r.Get("/stats", releaseHandler.Stats)
			r.Post("/mark-all-seen", releaseHandler.MarkAllSeen)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/mark-seen", releaseHandler.MarkSeen)
				r.Get("/tracks", releaseHandler.Tracks)
			})
		})

		// 外部サービス統合
		r.Route("/api/integrations", func(r chi.Router) {
			r.Get("/status", integrationHandler.Status)
			r.Post("/lastfm/import", integrationHandler.Import)
			r.Post("/{service}/test", integrationHandler.TestNotifier)
			r.Post("/{service}/check/{releaseID}", integrationHandler.CheckLibrary)
		})

		// スキャン実行
		r.Route("/api/scan", func(r chi.Router) {
			r.Post("/run", scanHandler.RunAll)
			r.Get("/last", scanHandler.LastRun)
		})
	})

	return r
}

// newHealthHandler はヘルスチェックハンドラーを返す。
// DB疎通が取れない場合は503を返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
