// Package model はドメインモデルを定義する。
package model

import "time"

// ArtistOutcome はスキャンラン中の1アーティストの処理結果を表す。
// 成功時はNewReleasesに新規リリース数が入り、失敗時はErrorに理由が入る。
type ArtistOutcome struct {
	ArtistID    string
	ArtistName  string
	NewReleases int
	Error       string
}

// Failed はこのアーティストの処理が失敗したかを返す。
func (o *ArtistOutcome) Failed() bool {
	return o.Error != ""
}

// RunRecord はスケジューラの1回のフルランの記録を表す。
// 状態の真実源は保存済みリリース行であり、RunRecordは観測用の集計にすぎない。
type RunRecord struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      time.Time
	Outcomes        []ArtistOutcome
	NewReleaseCount int
}

// FailureCount は失敗したアーティスト数を返す。
func (r *RunRecord) FailureCount() int {
	var n int
	for i := range r.Outcomes {
		if r.Outcomes[i].Failed() {
			n++
		}
	}
	return n
}

// ImportReport はリスニング履歴からの一括インポートの結果を表す。
type ImportReport struct {
	Total            int
	Added            int
	AlreadyFollowing int
	ArtistsAdded     []string
	Failures         []string
}
