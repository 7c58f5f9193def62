package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/releasedrop/internal/artist"
	"github.com/hitoshi/releasedrop/internal/config"
	"github.com/hitoshi/releasedrop/internal/database"
	"github.com/hitoshi/releasedrop/internal/handler"
	"github.com/hitoshi/releasedrop/internal/importer"
	"github.com/hitoshi/releasedrop/internal/lastfm"
	"github.com/hitoshi/releasedrop/internal/library"
	"github.com/hitoshi/releasedrop/internal/logger"
	"github.com/hitoshi/releasedrop/internal/matcher"
	"github.com/hitoshi/releasedrop/internal/metrics"
	"github.com/hitoshi/releasedrop/internal/middleware"
	"github.com/hitoshi/releasedrop/internal/notify"
	"github.com/hitoshi/releasedrop/internal/release"
	"github.com/hitoshi/releasedrop/internal/repository"
	"github.com/hitoshi/releasedrop/internal/spotify"
	"github.com/hitoshi/releasedrop/internal/worker/scan"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("アプリケーションを起動します",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// components はserve/worker両モードで共有する依存関係一式。
type components struct {
	artistRepo  repository.ArtistRepository
	releaseRepo repository.ReleaseRepository

	spotifyClient *spotify.Client
	lastfmClient  *lastfm.Client

	dispatcher *notify.Dispatcher
	checker    *library.Checker
	scheduler  *scan.Scheduler

	artistService  *artist.Service
	releaseService *release.Service
	importEngine   *importer.Engine

	collector *metrics.Collector
	registry  *prometheus.Registry
}

// buildComponents は設定から全依存関係をワイヤリングする。
// 任意の連携（Last.fm、Jellyfin、Plex、通知）は設定済みの場合のみ組み込む。
func buildComponents(cfg *config.Config, db *sql.DB, location *time.Location) *components {
	log := slog.Default()

	// 1. リポジトリ
	artistRepo := repository.NewPostgresArtistRepo(db)
	releaseRepo := repository.NewPostgresReleaseRepo(db)

	// 2. 外部サービスクライアント
	spotifyClient := spotify.NewClient(
		&http.Client{Timeout: cfg.CatalogTimeout},
		log, cfg.SpotifyClientID, cfg.SpotifyClientSecret,
	)
	lastfmClient := lastfm.NewClient(
		&http.Client{Timeout: cfg.CatalogTimeout},
		log, cfg.LastfmAPIKey, cfg.LastfmUsername,
	)

	// 3. ライブラリインデックス（設定済みのもののみ）
	libraryHTTP := &http.Client{Timeout: cfg.LibraryTimeout}
	var indexes []library.Index
	if cfg.JellyfinConfigured() {
		indexes = append(indexes, library.NewJellyfinIndex(libraryHTTP, log, cfg.JellyfinURL, cfg.JellyfinAPIKey))
	}
	if cfg.PlexConfigured() {
		indexes = append(indexes, library.NewPlexIndex(libraryHTTP, log, cfg.PlexURL, cfg.PlexToken))
	}

	engine := matcher.NewEngine(matcher.DefaultThresholds())
	checker := library.NewChecker(log, releaseRepo, spotifyClient, engine, indexes...)

	// 5. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	checker.SetMetrics(collector)

	// 6. 通知（設定済みのもののみ）
	notifyHTTP := &http.Client{Timeout: 10 * time.Second}
	var notifiers []notify.Notifier
	if cfg.NtfyConfigured() {
		notifiers = append(notifiers, notify.NewNtfyClient(
			notifyHTTP, log, cfg.NtfyURL, cfg.NtfyTopic, cfg.NtfyUsername, cfg.NtfyPassword,
		))
	}
	if cfg.GotifyConfigured() {
		notifiers = append(notifiers, notify.NewGotifyClient(notifyHTTP, log, cfg.GotifyURL, cfg.GotifyToken))
	}
	dispatcher := notify.NewDispatcher(log, notifiers...)

	// 7. スキャン
	synchronizer := scan.NewSynchronizer(log, artistRepo, releaseRepo, spotifyClient, cfg.ReleaseMonthsBack)
	scheduler := scan.NewScheduler(
		log, synchronizer, artistRepo, dispatcher, collector,
		cfg.ReleaseCheckTime, location, cfg.ArtistDelay,
	)

	// 8. ドメインサービス
	artistService := artist.NewService(log, artistRepo, spotifyClient)
	releaseService := release.NewService(log, artistRepo, releaseRepo, spotifyClient, synchronizer, cfg.ReleaseMonthsBack)
	importEngine := importer.NewEngine(log, artistRepo, spotifyClient, lastfmClient)

	return &components{
		artistRepo:     artistRepo,
		releaseRepo:    releaseRepo,
		spotifyClient:  spotifyClient,
		lastfmClient:   lastfmClient,
		dispatcher:     dispatcher,
		checker:        checker,
		scheduler:      scheduler,
		artistService:  artistService,
		releaseService: releaseService,
		importEngine:   importEngine,
		collector:      collector,
		registry:       registry,
	}
}

// loadLocation は設定のタイムゾーンを解決する。解決できない場合はUTCにフォールバックする。
func loadLocation(tz string) *time.Location {
	location, err := time.LoadLocation(tz)
	if err != nil {
		slog.Warn("タイムゾーンの解決に失敗したためUTCを使用します",
			slog.String("timezone", tz),
			slog.String("error", err.Error()),
		)
		return time.UTC
	}
	return location
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("データベース接続を確立しました")

	// 2. 依存関係のワイヤリング
	c := buildComponents(cfg, db, loadLocation(cfg.Timezone))

	// 3. レート制限の構築（req/min -> req/sec に変換）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 4. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		HealthChecker:     db,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		StatusRecorder:    c.collector,

		ArtistService:  c.artistService,
		ReleaseService: c.releaseService,
		LibraryChecker: c.checker,
		Importer:       c.importEngine,
		Notifiers:      c.dispatcher,
		Scheduler:      c.scheduler,

		MetricsHandler: metrics.Handler(c.registry),
	})

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("APIサーバーを起動します",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("APIサーバーをシャットダウンします...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("APIサーバーを正常に停止しました")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、日次スキャンスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("データベース接続を確立しました (worker)")

	// 2. 依存関係のワイヤリング
	location := loadLocation(cfg.Timezone)
	c := buildComponents(cfg, db, location)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("ワーカーをシャットダウンします...")
		cancel()
	}()

	slog.Info("ワーカーを起動します",
		slog.String("check_time", cfg.ReleaseCheckTime),
		slog.String("timezone", location.String()),
	)

	// スキャンスケジューラをメインgoroutineで実行（ブロッキング）
	c.scheduler.Start(ctx)

	slog.Info("ワーカーを正常に停止しました")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("データベースマイグレーションを実行します",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("データベースマイグレーションが完了しました")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
