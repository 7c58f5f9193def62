package library

import (
	"context"
	"log/slog"

	"github.com/hitoshi/releasedrop/internal/matcher"
	"github.com/hitoshi/releasedrop/internal/model"
	"github.com/hitoshi/releasedrop/internal/repository"
)

// TrackLister はカタログからトラック一覧を取得するインターフェース。
type TrackLister interface {
	ListTracks(ctx context.Context, albumSpotifyID string) ([]model.Track, error)
}

// MatchRecorder は照合結果のメトリクス収集インターフェース。
type MatchRecorder interface {
	RecordLibraryCheck(library, matchType string)
}

// Checker はカタログのリリースとパーソナルライブラリの照合サービス。
// リクエストごとに照合結果を計算し、永続化はしない。
type Checker struct {
	logger   *slog.Logger
	releases repository.ReleaseRepository
	catalog  TrackLister
	engine   *matcher.Engine
	indexes  map[model.LibraryKind]Index
	metrics  MatchRecorder
}

// NewChecker はChecker の新しいインスタンスを生成する。
// indexesには設定済みのライブラリのみを渡す。
func NewChecker(logger *slog.Logger, releases repository.ReleaseRepository, catalog TrackLister, engine *matcher.Engine, indexes ...Index) *Checker {
	m := make(map[model.LibraryKind]Index, len(indexes))
	for _, idx := range indexes {
		if idx != nil {
			m[idx.Kind()] = idx
		}
	}
	return &Checker{
		logger:   logger,
		releases: releases,
		catalog:  catalog,
		engine:   engine,
		indexes:  m,
	}
}

// SetMetrics は照合結果のメトリクス収集を有効にする。
func (c *Checker) SetMetrics(rec MatchRecorder) {
	c.metrics = rec
}

// Configured は指定種別のライブラリが設定済みかを返す。
func (c *Checker) Configured(kind model.LibraryKind) bool {
	_, ok := c.indexes[kind]
	return ok
}

// Check はリリースを指定ライブラリと照合し、結果を返す。
// カタログからトラック一覧を、ライブラリから候補を取得して照合エンジンに渡す。
func (c *Checker) Check(ctx context.Context, releaseID string, kind model.LibraryKind) (*model.MatchResult, error) {
	index, ok := c.indexes[kind]
	if !ok {
		return nil, model.NewLibraryNotConfiguredError(kind)
	}

	release, err := c.releases.FindByID(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if release == nil {
		return nil, model.NewReleaseNotFoundError(releaseID)
	}

	tracks, err := c.catalog.ListTracks(ctx, release.SpotifyID)
	if err != nil {
		c.logger.Error("照合用トラック一覧の取得に失敗しました",
			slog.String("release_id", releaseID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError("Spotify", err.Error())
	}

	candidates, err := index.SearchCandidates(ctx, release.Name)
	if err != nil {
		c.logger.Error("ライブラリ候補の検索に失敗しました",
			slog.String("release_id", releaseID),
			slog.String("library", string(kind)),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError(string(kind), err.Error())
	}

	result := c.engine.Match(release, tracks, candidates, kind)

	if c.metrics != nil {
		c.metrics.RecordLibraryCheck(string(kind), string(result.MatchType))
	}

	c.logger.Info("ライブラリ照合を実行しました",
		slog.String("release_id", releaseID),
		slog.String("library", string(kind)),
		slog.String("match_type", string(result.MatchType)),
		slog.Float64("confidence", result.Confidence),
	)
	return &result, nil
}

// Status は各ライブラリの疎通状況を返す。
// 設定済みのライブラリのみ確認し、未設定はfalseとして扱う。
func (c *Checker) Status(ctx context.Context) map[model.LibraryKind]error {
	status := make(map[model.LibraryKind]error, len(c.indexes))
	for kind, index := range c.indexes {
		status[kind] = index.Available(ctx)
	}
	return status
}
