// Package importer はリスニング履歴からのアーティスト一括フォローを提供する。
package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/releasedrop/internal/model"
	"github.com/hitoshi/releasedrop/internal/repository"
)

// ArtistResolver はアーティスト名をカタログIDに解決するインターフェース。
type ArtistResolver interface {
	SearchArtists(ctx context.Context, query string, limit int) ([]model.ArtistSearch, error)
}

// HistorySource はリスニング履歴の取得インターフェース。
type HistorySource interface {
	TopArtists(ctx context.Context, period string, limit int) ([]model.RankedArtist, error)
	Configured() bool
}

// Engine はリスニング履歴の上位アーティストを解決してフォローする。
// 1件の解決失敗はレポートに記録し、バッチ全体は継続する。
type Engine struct {
	logger  *slog.Logger
	artists repository.ArtistRepository
	catalog ArtistResolver
	history HistorySource
}

// NewEngine はEngine の新しいインスタンスを生成する。
func NewEngine(logger *slog.Logger, artists repository.ArtistRepository, catalog ArtistResolver, history HistorySource) *Engine {
	return &Engine{
		logger:  logger,
		artists: artists,
		catalog: catalog,
		history: history,
	}
}

// Available はリスニング履歴ソースが設定済みかを返す。
func (e *Engine) Available() bool {
	return e.history != nil && e.history.Configured()
}

// ImportTopArtists は指定期間の上位アーティストを取得し、
// 未フォローのアーティストをフォローする。
// フォロー済みのアーティストは件数のみ記録し、再追加しない。
func (e *Engine) ImportTopArtists(ctx context.Context, period string, limit int) (*model.ImportReport, error) {
	if !e.Available() {
		return nil, model.NewImportSourceError("Last.fm連携が設定されていません")
	}

	ranked, err := e.history.TopArtists(ctx, period, limit)
	if err != nil {
		return nil, model.NewImportSourceError(err.Error())
	}

	report := &model.ImportReport{
		Total:        len(ranked),
		ArtistsAdded: []string{},
		Failures:     []string{},
	}

	for _, candidate := range ranked {
		if ctx.Err() != nil {
			break
		}
		e.importOne(ctx, candidate, report)
	}

	e.logger.Info("リスニング履歴からのインポートが完了しました",
		slog.String("period", period),
		slog.Int("total", report.Total),
		slog.Int("added", report.Added),
		slog.Int("already_following", report.AlreadyFollowing),
		slog.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// importOne は1アーティストの解決とフォローを行い、結果をレポートに記録する。
func (e *Engine) importOne(ctx context.Context, candidate model.RankedArtist, report *model.ImportReport) {
	// 名前が一致するフォロー済みアーティストはカタログ検索を省略する
	known, err := e.artists.FindByName(ctx, candidate.Name)
	if err != nil {
		report.Failures = append(report.Failures,
			fmt.Sprintf("%s: フォロー状態の確認に失敗しました (%s)", candidate.Name, err.Error()))
		return
	}
	if known != nil {
		report.AlreadyFollowing++
		return
	}

	results, err := e.catalog.SearchArtists(ctx, candidate.Name, 1)
	if err != nil {
		report.Failures = append(report.Failures,
			fmt.Sprintf("%s: 検索に失敗しました (%s)", candidate.Name, err.Error()))
		return
	}
	if len(results) == 0 {
		report.Failures = append(report.Failures,
			fmt.Sprintf("%s: カタログで見つかりませんでした", candidate.Name))
		return
	}

	// 先頭の検索結果をそのまま採用する
	resolved := results[0]

	existing, err := e.artists.FindBySpotifyID(ctx, resolved.SpotifyID)
	if err != nil {
		report.Failures = append(report.Failures,
			fmt.Sprintf("%s: フォロー状態の確認に失敗しました (%s)", candidate.Name, err.Error()))
		return
	}
	if existing != nil {
		report.AlreadyFollowing++
		return
	}

	artist := &model.Artist{
		SpotifyID:  resolved.SpotifyID,
		Name:       resolved.Name,
		SpotifyURL: resolved.SpotifyURL,
		ImageURL:   resolved.ImageURL,
	}
	if err := e.artists.Create(ctx, artist); err != nil {
		report.Failures = append(report.Failures,
			fmt.Sprintf("%s: フォローの保存に失敗しました (%s)", candidate.Name, err.Error()))
		return
	}

	report.Added++
	report.ArtistsAdded = append(report.ArtistsAdded, resolved.Name)
}
