// Package artist はアーティストのフォロー管理サービスを提供する。
package artist

import (
	"context"
	"log/slog"

	"github.com/hitoshi/releasedrop/internal/model"
	"github.com/hitoshi/releasedrop/internal/repository"
)

// CatalogSearcher はカタログのアーティスト検索インターフェース。
type CatalogSearcher interface {
	SearchArtists(ctx context.Context, query string, limit int) ([]model.ArtistSearch, error)
}

// FollowInput はフォローリクエストの入力。
type FollowInput struct {
	SpotifyID  string
	Name       string
	SpotifyURL string
	ImageURL   string
}

// Service はアーティストのフォロー管理サービス。
type Service struct {
	logger  *slog.Logger
	artists repository.ArtistRepository
	catalog CatalogSearcher
}

// NewService はService の新しいインスタンスを生成する。
func NewService(logger *slog.Logger, artists repository.ArtistRepository, catalog CatalogSearcher) *Service {
	return &Service{
		logger:  logger,
		artists: artists,
		catalog: catalog,
	}
}

// Search はカタログでアーティストを検索する。
func (s *Service) Search(ctx context.Context, query string, limit int) ([]model.ArtistSearch, error) {
	results, err := s.catalog.SearchArtists(ctx, query, limit)
	if err != nil {
		return nil, model.NewUpstreamUnavailableError("Spotify", err.Error())
	}
	return results, nil
}

// Follow はアーティストをフォローする。
// 同一カタログIDのアーティストが既にフォロー済みの場合はエラーを返す。
func (s *Service) Follow(ctx context.Context, input FollowInput) (*model.Artist, error) {
	existing, err := s.artists.FindBySpotifyID(ctx, input.SpotifyID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.NewAlreadyFollowingError(existing.Name)
	}

	artist := &model.Artist{
		SpotifyID:  input.SpotifyID,
		Name:       input.Name,
		SpotifyURL: input.SpotifyURL,
		ImageURL:   input.ImageURL,
	}
	if err := s.artists.Create(ctx, artist); err != nil {
		return nil, err
	}

	s.logger.Info("アーティストをフォローしました",
		slog.String("artist_id", artist.ID),
		slog.String("artist_name", artist.Name),
	)
	return artist, nil
}

// Get は指定IDのアーティストを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Artist, error) {
	artist, err := s.artists.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, model.NewArtistNotFoundError(id)
	}
	return artist, nil
}

// List は全フォロー中アーティストを返す。
func (s *Service) List(ctx context.Context) ([]*model.Artist, error) {
	return s.artists.List(ctx)
}

// Unfollow はアーティストのフォローを解除する。
// 関連するリリースはストレージ層のCASCADEで削除される。
func (s *Service) Unfollow(ctx context.Context, id string) error {
	artist, err := s.artists.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if artist == nil {
		return model.NewArtistNotFoundError(id)
	}

	if err := s.artists.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("アーティストのフォローを解除しました",
		slog.String("artist_id", id),
		slog.String("artist_name", artist.Name),
	)
	return nil
}
