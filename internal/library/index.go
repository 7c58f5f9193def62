// Package library はパーソナルメディアサーバー（Jellyfin / Plex）との連携を提供する。
// アルバム候補の検索と、カタログリリースとの照合チェックを含む。
package library

import (
	"context"

	"github.com/hitoshi/releasedrop/internal/model"
)

// Index はパーソナルライブラリの検索インターフェース。
// 照合エンジンへの候補供給源として各メディアサーバーが実装する。
type Index interface {
	// Kind はライブラリ種別を返す。
	Kind() model.LibraryKind

	// Available はライブラリへの疎通を確認する。
	Available(ctx context.Context) error

	// SearchCandidates はアルバム名で候補を検索し、
	// 各候補のトラック名リストを含めて返す。
	SearchCandidates(ctx context.Context, albumName string) ([]model.LibraryAlbum, error)
}
