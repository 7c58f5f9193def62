// Package release はリリースの閲覧と既読管理サービスを提供する。
package release

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/releasedrop/internal/model"
	"github.com/hitoshi/releasedrop/internal/repository"
)

// defaultLatestLimit は最新リリース一覧の既定件数。
const defaultLatestLimit = 50

// TrackLister はカタログからトラック一覧を取得するインターフェース。
type TrackLister interface {
	ListTracks(ctx context.Context, albumSpotifyID string) ([]model.Track, error)
}

// HistorySyncer はアーティストの全履歴をオンデマンドで取り込むインターフェース。
type HistorySyncer interface {
	SyncFullHistory(ctx context.Context, artist *model.Artist) error
}

// Service はリリースの閲覧と既読管理サービス。
type Service struct {
	logger     *slog.Logger
	artists    repository.ArtistRepository
	releases   repository.ReleaseRepository
	catalog    TrackLister
	syncer     HistorySyncer
	monthsBack int
}

// NewService はService の新しいインスタンスを生成する。
func NewService(
	logger *slog.Logger,
	artists repository.ArtistRepository,
	releases repository.ReleaseRepository,
	catalog TrackLister,
	syncer HistorySyncer,
	monthsBack int,
) *Service {
	return &Service{
		logger:     logger,
		artists:    artists,
		releases:   releases,
		catalog:    catalog,
		syncer:     syncer,
		monthsBack: monthsBack,
	}
}

// ListByArtist はアーティストの全リリースを返す。
// 初回表示時に過去作が欠けていることがあるため、表示前に全履歴を
// is_new = falseで補完する。補完失敗は保存済みデータでの表示にフォールバックする。
func (s *Service) ListByArtist(ctx context.Context, artistID string) ([]*model.Release, error) {
	artist, err := s.artists.FindByID(ctx, artistID)
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, model.NewArtistNotFoundError(artistID)
	}

	if s.syncer != nil {
		if err := s.syncer.SyncFullHistory(ctx, artist); err != nil {
			s.logger.Warn("全履歴の補完に失敗したため保存済みデータで応答します",
				slog.String("artist_id", artistID),
				slog.String("error", err.Error()),
			)
		}
	}

	return s.releases.ListByArtist(ctx, artistID)
}

// List はフィルタ条件に一致するリリースを返す。
func (s *Service) List(ctx context.Context, filter model.ReleaseFilter) ([]*model.Release, error) {
	return s.releases.List(ctx, filter)
}

// Latest は監視期間内の最新リリースを返す。
func (s *Service) Latest(ctx context.Context, limit int) ([]*model.Release, error) {
	if limit <= 0 {
		limit = defaultLatestLimit
	}
	return s.releases.ListSince(ctx, s.sinceDate(), limit)
}

// MarkSeen は指定リリースを既読にする。
// is_newの遷移はnew→seenの一方向のみで、逆方向の操作は存在しない。
func (s *Service) MarkSeen(ctx context.Context, id string) error {
	updated, err := s.releases.MarkSeen(ctx, id)
	if err != nil {
		return err
	}
	if !updated {
		return model.NewReleaseNotFoundError(id)
	}
	return nil
}

// MarkAllSeen は全リリースを既読にし、更新件数を返す。
func (s *Service) MarkAllSeen(ctx context.Context) (int, error) {
	count, err := s.releases.MarkAllSeen(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("全リリースを既読にしました",
		slog.Int("count", count),
	)
	return count, nil
}

// Stats は監視期間内のリリースの集計とフォロー中アーティスト数を返す。
func (s *Service) Stats(ctx context.Context) (*model.ReleaseStats, error) {
	stats, err := s.releases.Stats(ctx, s.sinceDate())
	if err != nil {
		return nil, err
	}

	artistCount, err := s.artists.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalArtists = artistCount
	return stats, nil
}

// Tracks はリリースのトラック一覧をカタログから取得して返す。
// トラックは永続化せず、リクエストごとにライブで取得する。
func (s *Service) Tracks(ctx context.Context, releaseID string) ([]model.Track, error) {
	release, err := s.releases.FindByID(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if release == nil {
		return nil, model.NewReleaseNotFoundError(releaseID)
	}

	tracks, err := s.catalog.ListTracks(ctx, release.SpotifyID)
	if err != nil {
		return nil, model.NewUpstreamUnavailableError("Spotify", err.Error())
	}
	return tracks, nil
}

// sinceDate は監視期間の開始日をYYYY-MM-DD形式で返す。
func (s *Service) sinceDate() string {
	return time.Now().AddDate(0, -s.monthsBack, 0).Format("2006-01-02")
}
