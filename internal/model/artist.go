// Package model はドメインモデルを定義する。
package model

import "time"

// Artist はフォロー中のアーティストを表す。
// Spotify IDで一意に識別され、削除時は関連リリースがCASCADE削除される。
type Artist struct {
	ID          string
	SpotifyID   string
	Name        string
	SpotifyURL  string
	ImageURL    string
	AddedAt     time.Time
	LastChecked *time.Time
}

// ArtistSearch はカタログ検索で得られたアーティスト候補を表す。
// 未フォローのアーティストも含むため、Artistとは別の型で扱う。
type ArtistSearch struct {
	SpotifyID  string
	Name       string
	SpotifyURL string
	ImageURL   string
	Followers  int
	Genres     []string
}

// RankedArtist はリスニング履歴ソースから取得した再生数順のアーティスト名を表す。
type RankedArtist struct {
	Name      string
	PlayCount int
	MBID      string
}
