// Package model はドメインモデルを定義する。
package model

import "time"

// ReleaseType はリリースの種別を表す。
type ReleaseType string

const (
	// ReleaseTypeAlbum はアルバム。
	ReleaseTypeAlbum ReleaseType = "album"
	// ReleaseTypeSingle はシングル。
	ReleaseTypeSingle ReleaseType = "single"
	// ReleaseTypeEP はEP。
	ReleaseTypeEP ReleaseType = "ep"
)

// Release は保存済みのリリース（アルバム/シングル/EP）を表す。
// (artist_id, spotify_id) で一意。IsNewは作成時にtrueで始まり、
// 既読化操作によってのみfalseに遷移する（逆方向の遷移は存在しない）。
type Release struct {
	ID           string
	ArtistID     string
	SpotifyID    string
	Name         string
	Type         ReleaseType
	ReleaseDate  string // YYYY、YYYY-MM、YYYY-MM-DD のいずれか
	SpotifyURL   string
	ImageURL     string
	TotalTracks  int
	IsNew        bool
	DiscoveredAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CatalogRelease はカタログから取得した未保存のリリースデータを表す。
// Synchronizerが保存済みリリースとの差分判定に使用する。
type CatalogRelease struct {
	SpotifyID   string
	Name        string
	Type        ReleaseType
	ReleaseDate string
	SpotifyURL  string
	ImageURL    string
	TotalTracks int
}

// Track はリリースに属するトラックを表す。
// カタログからオンデマンドで取得され、永続化はされない。
type Track struct {
	SpotifyID   string
	Name        string
	TrackNumber int
	DurationMS  int
	SpotifyURL  string
}

// ReleaseFilter はリリース一覧のフィルタ条件を表す。
type ReleaseFilter struct {
	OnlyNew  bool
	ArtistID string // 空文字列の場合は全アーティスト
}

// ReleaseStats はリリースの集計情報を表す。
type ReleaseStats struct {
	TotalReleases int
	NewReleases   int
	TotalArtists  int
	Albums        int
	Singles       int
	EPs           int
}
