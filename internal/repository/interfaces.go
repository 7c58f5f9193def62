// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/releasedrop/internal/model"
)

// ErrDuplicateRelease は (artist_id, spotify_id) のユニーク制約違反を表す。
// 同時実行や再実行による重複挿入をストレージ層の制約で検出したときに返される。
// 呼び出し元はこのエラーをスキップ対象として扱ってよい（冪等性の担保）。
var ErrDuplicateRelease = errors.New("release already exists for artist")

// ArtistRepository はアーティストデータの永続化インターフェース。
type ArtistRepository interface {
	// FindByID は指定IDのアーティストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Artist, error)

	// FindBySpotifyID はSpotify IDでアーティストを検索する。見つからない場合はnilを返す。
	FindBySpotifyID(ctx context.Context, spotifyID string) (*model.Artist, error)

	// FindByName は表示名でアーティストを検索する（大文字小文字を区別しない）。
	// 見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Artist, error)

	// Create はアーティストを作成する。
	Create(ctx context.Context, artist *model.Artist) error

	// List は全フォロー中アーティストを名前順（同名はID順）で返す。
	// スケジューラはこの安定した順序に依存している。
	List(ctx context.Context) ([]*model.Artist, error)

	// UpdateLastChecked はアーティストの最終チェック日時を更新する。
	UpdateLastChecked(ctx context.Context, id string, checkedAt time.Time) error

	// Delete は指定IDのアーティストを削除する。
	// 関連するリリースはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// Count はフォロー中アーティスト数を返す。
	Count(ctx context.Context) (int, error)
}

// ReleaseRepository はリリースデータの永続化インターフェース。
type ReleaseRepository interface {
	// FindByID は指定IDのリリースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Release, error)

	// Create はリリースを作成する。
	// (artist_id, spotify_id) のユニーク制約違反の場合はErrDuplicateReleaseを返す。
	Create(ctx context.Context, release *model.Release) error

	// ListByArtist はアーティストの全リリースをリリース日降順で返す。
	ListByArtist(ctx context.Context, artistID string) ([]*model.Release, error)

	// List はフィルタ条件に一致するリリースをリリース日降順で返す。
	List(ctx context.Context, filter model.ReleaseFilter) ([]*model.Release, error)

	// ListSince は指定日以降のリリースをリリース日降順で返す。
	ListSince(ctx context.Context, sinceDate string, limit int) ([]*model.Release, error)

	// MarkSeen は指定リリースのis_newをfalseにする。
	// 対象が存在しない場合はfalseを返す。new→seenの一方向遷移のみが存在する。
	MarkSeen(ctx context.Context, id string) (bool, error)

	// MarkAllSeen は全リリースのis_newをfalseにし、更新件数を返す。
	MarkAllSeen(ctx context.Context) (int, error)

	// Stats は指定日以降のリリースの集計情報を返す。
	Stats(ctx context.Context, sinceDate string) (*model.ReleaseStats, error)
}
