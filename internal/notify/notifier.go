// Package notify は新着リリースのプッシュ通知を提供する。
// ntfyとGotifyへの送信クライアントと、複数サービスへのファンアウトを含む。
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/releasedrop/internal/model"
)

// BatchItem は通知バッチ内の1件の新着リリース。
type BatchItem struct {
	ArtistName string
	Release    *model.Release
}

// Notifier は通知サービスのインターフェース。
type Notifier interface {
	// Name はサービス名を返す。
	Name() string

	// SendBatch は新着リリースのバッチを1通の通知として送信する。
	SendBatch(ctx context.Context, items []BatchItem) error

	// SendTest は疎通確認用のテスト通知を送信する。
	SendTest(ctx context.Context) error
}

// buildTitle はバッチ通知のタイトルを組み立てる。
func buildTitle(items []BatchItem) string {
	return fmt.Sprintf("新着リリース %d件", len(items))
}

// buildBody はバッチ通知の本文を組み立てる。
// アーティストごとに1行でまとめる。
func buildBody(items []BatchItem, markdown bool) string {
	var b strings.Builder
	for _, item := range items {
		line := fmt.Sprintf("%s — %s (%s)", item.ArtistName, item.Release.Name, item.Release.Type)
		if markdown && item.Release.SpotifyURL != "" {
			line = fmt.Sprintf("- [%s — %s](%s) (%s)",
				item.ArtistName, item.Release.Name, item.Release.SpotifyURL, item.Release.Type)
		} else if markdown {
			line = "- " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
