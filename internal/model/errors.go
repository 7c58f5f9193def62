// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, catalog, library, import, scan, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeArtistNotFound          = "ARTIST_NOT_FOUND"
	ErrCodeReleaseNotFound         = "RELEASE_NOT_FOUND"
	ErrCodeAlreadyFollowing        = "ALREADY_FOLLOWING"
	ErrCodeUpstreamUnavailable     = "UPSTREAM_UNAVAILABLE"
	ErrCodeRunInProgress           = "RUN_IN_PROGRESS"
	ErrCodeRefreshInProgress       = "REFRESH_IN_PROGRESS"
	ErrCodeLibraryNotConfigured    = "LIBRARY_NOT_CONFIGURED"
	ErrCodeInvalidLibraryKind      = "INVALID_LIBRARY_KIND"
	ErrCodeImportSourceUnavailable = "IMPORT_SOURCE_UNAVAILABLE"
	ErrCodeInvalidPeriod           = "INVALID_PERIOD"
	ErrCodeNotifierNotConfigured   = "NOTIFIER_NOT_CONFIGURED"
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
)

// NewArtistNotFoundError はアーティスト未検出エラーを生成する。
func NewArtistNotFoundError(artistID string) *APIError {
	return &APIError{
		Code:     ErrCodeArtistNotFound,
		Message:  fmt.Sprintf("指定されたアーティストが見つかりません: %s", artistID),
		Category: "validation",
		Action:   "アーティストIDを確認してください。",
	}
}

// NewReleaseNotFoundError はリリース未検出エラーを生成する。
func NewReleaseNotFoundError(releaseID string) *APIError {
	return &APIError{
		Code:     ErrCodeReleaseNotFound,
		Message:  fmt.Sprintf("指定されたリリースが見つかりません: %s", releaseID),
		Category: "validation",
		Action:   "リリースIDを確認してください。",
	}
}

// NewAlreadyFollowingError はフォロー済みアーティストの重複フォローエラーを生成する。
func NewAlreadyFollowingError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyFollowing,
		Message:  fmt.Sprintf("このアーティストは既にフォローしています: %s", name),
		Category: "validation",
		Action:   "フォロー中アーティスト一覧を確認してください。",
	}
}

// NewUpstreamUnavailableError は外部サービス到達不能エラーを生成する。
// 再試行可能な失敗としてクライアントに伝える。
func NewUpstreamUnavailableError(service, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("%s との通信に失敗しました: %s", service, reason),
		Category: "catalog",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRunInProgressError はフルラン実行中の重複起動エラーを生成する。
func NewRunInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeRunInProgress,
		Message:  "リリースチェックのフルランが既に実行中です。",
		Category: "scan",
		Action:   "実行中のランが完了してから再度お試しください。",
	}
}

// NewRefreshInProgressError は同一アーティストへの同時リフレッシュエラーを生成する。
func NewRefreshInProgressError(artistID string) *APIError {
	return &APIError{
		Code:     ErrCodeRefreshInProgress,
		Message:  fmt.Sprintf("このアーティストのリフレッシュは既に実行中です: %s", artistID),
		Category: "scan",
		Action:   "実行中のリフレッシュが完了してから再度お試しください。",
	}
}

// NewLibraryNotConfiguredError はライブラリ連携未設定エラーを生成する。
func NewLibraryNotConfiguredError(kind LibraryKind) *APIError {
	return &APIError{
		Code:     ErrCodeLibraryNotConfigured,
		Message:  fmt.Sprintf("%s 連携が設定されていません。", kind),
		Category: "library",
		Action:   fmt.Sprintf("%s のURLとAPIキーを環境変数で設定してください。", kind),
	}
}

// NewInvalidLibraryKindError は未定義のライブラリ種別エラーを生成する。
func NewInvalidLibraryKindError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLibraryKind,
		Message:  fmt.Sprintf("無効なライブラリ種別です: %s", kind),
		Category: "validation",
		Action:   "ライブラリ種別には jellyfin または plex を指定してください。",
	}
}

// NewImportSourceError はリスニング履歴ソースの取得失敗エラーを生成する。
func NewImportSourceError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportSourceUnavailable,
		Message:  fmt.Sprintf("リスニング履歴の取得に失敗しました: %s", reason),
		Category: "import",
		Action:   "Last.fmのAPIキーとユーザー名の設定を確認してください。",
	}
}

// NewInvalidPeriodError は無効な集計期間エラーを生成する。
func NewInvalidPeriodError(period string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPeriod,
		Message:  fmt.Sprintf("無効な集計期間です: %s", period),
		Category: "validation",
		Action:   "期間には 7day、1month、3month、6month、12month、overall のいずれかを指定してください。",
	}
}

// NewNotifierNotConfiguredError は通知サービス未設定エラーを生成する。
func NewNotifierNotConfiguredError(service string) *APIError {
	return &APIError{
		Code:     ErrCodeNotifierNotConfigured,
		Message:  fmt.Sprintf("%s 連携が設定されていません。", service),
		Category: "validation",
		Action:   fmt.Sprintf("%s のURLとトークンを環境変数で設定してください。", service),
	}
}
