// Package model はドメインモデルを定義する。
package model

// LibraryKind は照合対象のパーソナルライブラリの種別を表す。
type LibraryKind string

const (
	// LibraryJellyfin はJellyfinライブラリ。
	LibraryJellyfin LibraryKind = "jellyfin"
	// LibraryPlex はPlexライブラリ。
	LibraryPlex LibraryKind = "plex"
)

// ValidLibraryKind はライブラリ種別が定義済みかを返す。
func ValidLibraryKind(kind string) bool {
	switch LibraryKind(kind) {
	case LibraryJellyfin, LibraryPlex:
		return true
	default:
		return false
	}
}

// MatchType はリリースとライブラリ候補の照合結果の分類を表す。
type MatchType string

const (
	// MatchNone は一致候補なし。
	MatchNone MatchType = "none"
	// MatchSimilar は類似一致（正規化名の類似度が閾値以上）。
	MatchSimilar MatchType = "similar"
	// MatchExact は完全一致（正規化名が同一かつトラック数一致）。
	MatchExact MatchType = "exact"
)

// LibraryAlbum はパーソナルライブラリ内のアルバム候補を表す。
// 照合エンジンへの入力であり、ライブラリクライアントが検索結果から構築する。
type LibraryAlbum struct {
	ID         string
	Name       string
	TrackCount int
	Tracks     []string // トラック名のリスト
}

// MatchResult はリリースとライブラリの照合結果を表す。
// リクエストごとに計算される一時データであり、永続化の真実源ではない。
// 不変条件: AvailableTracks ∪ MissingTracks = カタログの全トラック集合、
// かつ両者に重複はない。
type MatchResult struct {
	ReleaseID        string
	Library          LibraryKind
	InLibrary        bool
	MatchType        MatchType
	Confidence       float64 // [0,1]
	AvailableTracks  []string
	MissingTracks    []string
	LibraryAlbumID   string
	LibraryAlbumName string
}

// Complete は照合対象の全トラックがライブラリに存在するかを返す。
// 保存される属性ではなく、照合結果から導出される分類。
func (r *MatchResult) Complete() bool {
	return r.InLibrary && len(r.MissingTracks) == 0
}
