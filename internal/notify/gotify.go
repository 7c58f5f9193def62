package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// GotifyClient はGotifyサーバーへの通知クライアント。
type GotifyClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	serverURL  string
	appToken   string
}

var _ Notifier = (*GotifyClient)(nil)

// NewGotifyClient はGotifyClient の新しいインスタンスを生成する。
func NewGotifyClient(httpClient *http.Client, logger *slog.Logger, serverURL, appToken string) *GotifyClient {
	return &GotifyClient{
		httpClient: httpClient,
		logger:     logger,
		serverURL:  strings.TrimRight(serverURL, "/"),
		appToken:   appToken,
	}
}

// Name はサービス名を返す。
func (g *GotifyClient) Name() string {
	return "gotify"
}

// SendBatch は新着リリースのバッチを1通の通知として送信する。
func (g *GotifyClient) SendBatch(ctx context.Context, items []BatchItem) error {
	if len(items) == 0 {
		return nil
	}
	return g.publish(ctx, buildTitle(items), buildBody(items, false))
}

// SendTest は疎通確認用のテスト通知を送信する。
func (g *GotifyClient) SendTest(ctx context.Context) error {
	return g.publish(ctx, "テスト通知", "通知設定は正常に動作しています。")
}

func (g *GotifyClient) publish(ctx context.Context, title, message string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"title":    title,
		"message":  message,
		"priority": 5,
	})
	if err != nil {
		return fmt.Errorf("通知ペイロードの作成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.serverURL+"/message?token="+g.appToken, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("通知リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Gotifyへの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Gotifyがステータス %d を返しました", resp.StatusCode)
	}

	g.logger.Info("Gotify通知を送信しました",
		slog.String("title", title),
	)
	return nil
}
