// Package scan は新着リリースのバックグラウンドチェック処理を提供する。
// アーティストごとの差分同期と、全アーティストを巡回するスケジューラを含む。
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/releasedrop/internal/model"
	"github.com/hitoshi/releasedrop/internal/repository"
)

// CatalogReleaseLister はカタログからリリース一覧を取得するインターフェース。
type CatalogReleaseLister interface {
	// ListReleases はアーティストのリリース一覧を取得する。
	// monthsBackが正の場合はその期間内のリリースのみを返す。
	ListReleases(ctx context.Context, artistSpotifyID string, monthsBack int) ([]model.CatalogRelease, error)
}

// RefreshResult は1アーティストの同期結果。
type RefreshResult struct {
	// NewReleases は今回新規に保存されたリリース（is_new = true）。
	NewReleases []*model.Release
	// FailedInserts は保存に失敗した件数。カタログ取得成功後の
	// 個別の保存失敗は部分成功として扱い、件数のみ報告する。
	FailedInserts int
}

// Synchronizer はカタログと保存済みリリースの差分同期を行う。
// 同一入力に対する再実行は新規挿入ゼロとなる（冪等）。
type Synchronizer struct {
	logger     *slog.Logger
	artists    repository.ArtistRepository
	releases   repository.ReleaseRepository
	catalog    CatalogReleaseLister
	monthsBack int
}

// NewSynchronizer はSynchronizer の新しいインスタンスを生成する。
func NewSynchronizer(
	logger *slog.Logger,
	artists repository.ArtistRepository,
	releases repository.ReleaseRepository,
	catalog CatalogReleaseLister,
	monthsBack int,
) *Synchronizer {
	return &Synchronizer{
		logger:     logger,
		artists:    artists,
		releases:   releases,
		catalog:    catalog,
		monthsBack: monthsBack,
	}
}

// Refresh はアーティストのリリースをカタログと同期し、新規分のみを返す。
// カタログ取得に失敗した場合はそのアーティストについて一切書き込みを行わない。
// 個別の保存失敗は部分成功として件数を報告し、処理は継続する。
func (s *Synchronizer) Refresh(ctx context.Context, artist *model.Artist) (*RefreshResult, error) {
	fetched, err := s.catalog.ListReleases(ctx, artist.SpotifyID, s.monthsBack)
	if err != nil {
		return nil, fmt.Errorf("カタログの取得に失敗しました: %w", err)
	}

	result := &RefreshResult{NewReleases: []*model.Release{}}
	for i := range fetched {
		item := &fetched[i]
		release := &model.Release{
			ArtistID:    artist.ID,
			SpotifyID:   item.SpotifyID,
			Name:        item.Name,
			Type:        item.Type,
			ReleaseDate: item.ReleaseDate,
			SpotifyURL:  item.SpotifyURL,
			ImageURL:    item.ImageURL,
			TotalTracks: item.TotalTracks,
			IsNew:       true,
		}

		err := s.releases.Create(ctx, release)
		if errors.Is(err, repository.ErrDuplicateRelease) {
			// 保存済みのリリースはそのまま残す
			continue
		}
		if err != nil {
			result.FailedInserts++
			s.logger.Error("リリースの保存に失敗しました",
				slog.String("artist_id", artist.ID),
				slog.String("spotify_id", item.SpotifyID),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.NewReleases = append(result.NewReleases, release)
	}

	if err := s.artists.UpdateLastChecked(ctx, artist.ID, time.Now()); err != nil {
		s.logger.Warn("最終チェック日時の更新に失敗しました",
			slog.String("artist_id", artist.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("リリース同期が完了しました",
		slog.String("artist_id", artist.ID),
		slog.String("artist_name", artist.Name),
		slog.Int("fetched", len(fetched)),
		slog.Int("new_releases", len(result.NewReleases)),
		slog.Int("failed_inserts", result.FailedInserts),
	)
	return result, nil
}

// SyncFullHistory はアーティストの全履歴をis_new = falseで取り込む。
// リリース一覧表示時のオンデマンド同期に使用し、過去作を通知対象にしない。
func (s *Synchronizer) SyncFullHistory(ctx context.Context, artist *model.Artist) error {
	fetched, err := s.catalog.ListReleases(ctx, artist.SpotifyID, 0)
	if err != nil {
		return fmt.Errorf("カタログの取得に失敗しました: %w", err)
	}

	added := 0
	for i := range fetched {
		item := &fetched[i]
		release := &model.Release{
			ArtistID:    artist.ID,
			SpotifyID:   item.SpotifyID,
			Name:        item.Name,
			Type:        item.Type,
			ReleaseDate: item.ReleaseDate,
			SpotifyURL:  item.SpotifyURL,
			ImageURL:    item.ImageURL,
			TotalTracks: item.TotalTracks,
			IsNew:       false,
		}

		err := s.releases.Create(ctx, release)
		if errors.Is(err, repository.ErrDuplicateRelease) {
			continue
		}
		if err != nil {
			s.logger.Error("過去リリースの保存に失敗しました",
				slog.String("artist_id", artist.ID),
				slog.String("spotify_id", item.SpotifyID),
				slog.String("error", err.Error()),
			)
			continue
		}
		added++
	}

	if added > 0 {
		s.logger.Info("全履歴同期で過去リリースを取り込みました",
			slog.String("artist_id", artist.ID),
			slog.Int("added", added),
		)
	}
	return nil
}
