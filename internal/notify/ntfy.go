package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// NtfyClient はntfyサーバーへの通知クライアント。
type NtfyClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	serverURL  string
	topic      string
	username   string
	password   string
}

var _ Notifier = (*NtfyClient)(nil)

// NewNtfyClient はNtfyClient の新しいインスタンスを生成する。
// usernameとpasswordは任意で、設定時はBasic認証を使用する。
func NewNtfyClient(httpClient *http.Client, logger *slog.Logger, serverURL, topic, username, password string) *NtfyClient {
	return &NtfyClient{
		httpClient: httpClient,
		logger:     logger,
		serverURL:  strings.TrimRight(serverURL, "/"),
		topic:      topic,
		username:   username,
		password:   password,
	}
}

// Name はサービス名を返す。
func (n *NtfyClient) Name() string {
	return "ntfy"
}

// SendBatch は新着リリースのバッチを1通の通知として送信する。
func (n *NtfyClient) SendBatch(ctx context.Context, items []BatchItem) error {
	if len(items) == 0 {
		return nil
	}
	return n.publish(ctx, buildTitle(items), buildBody(items, true), "musical_note")
}

// SendTest は疎通確認用のテスト通知を送信する。
func (n *NtfyClient) SendTest(ctx context.Context) error {
	return n.publish(ctx, "テスト通知", "通知設定は正常に動作しています。", "white_check_mark")
}

func (n *NtfyClient) publish(ctx context.Context, title, body, tags string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.serverURL+"/"+n.topic, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("通知リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Title", title)
	req.Header.Set("Priority", "default")
	req.Header.Set("Tags", tags)
	req.Header.Set("Markdown", "yes")
	if n.username != "" {
		req.SetBasicAuth(n.username, n.password)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ntfyへの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfyがステータス %d を返しました", resp.StatusCode)
	}

	n.logger.Info("ntfy通知を送信しました",
		slog.String("title", title),
	)
	return nil
}
