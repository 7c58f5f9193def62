// Package lastfm はLast.fm APIのクライアントを提供する。
// 視聴履歴に基づくトップアーティストの取得に使用する。
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/releasedrop/internal/model"
)

// defaultEndpoint はLast.fm Web APIのエンドポイント。
const defaultEndpoint = "https://ws.audioscrobbler.com/2.0/"

// validPeriods はuser.getTopArtistsが受け付ける集計期間。
var validPeriods = map[string]bool{
	"overall": true,
	"7day":    true,
	"1month":  true,
	"3month":  true,
	"6month":  true,
	"12month": true,
}

// ValidPeriod は集計期間が有効かを返す。
func ValidPeriod(period string) bool {
	return validPeriods[period]
}

// Client はLast.fm APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	username   string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClient の新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey, username string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		username:   username,
		endpoint:   defaultEndpoint,
	}
}

// Configured はAPIキーとユーザー名が設定済みかを返す。
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.username != ""
}

// TopArtists は指定期間の再生数上位アーティストを順位順で返す。
func (c *Client) TopArtists(ctx context.Context, period string, limit int) ([]model.RankedArtist, error) {
	if !ValidPeriod(period) {
		return nil, fmt.Errorf("不正な集計期間です: %s", period)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := url.Values{
		"method":  {"user.gettopartists"},
		"user":    {c.username},
		"api_key": {c.apiKey},
		"format":  {"json"},
		"period":  {period},
		"limit":   {strconv.Itoa(limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Last.fm APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("Last.fm APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Last.fm APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("Last.fm APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var payload struct {
		TopArtists struct {
			Artist []struct {
				Name      string `json:"name"`
				PlayCount string `json:"playcount"`
				MBID      string `json:"mbid"`
			} `json:"artist"`
		} `json:"topartists"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	artists := make([]model.RankedArtist, 0, len(payload.TopArtists.Artist))
	for _, item := range payload.TopArtists.Artist {
		// Last.fmはplaycountを文字列で返す
		playCount, _ := strconv.Atoi(item.PlayCount)
		artists = append(artists, model.RankedArtist{
			Name:      item.Name,
			PlayCount: playCount,
			MBID:      item.MBID,
		})
	}
	return artists, nil
}
