// Package spotify はSpotify Web APIのクライアントを提供する。
// Client Credentialsフローでのトークン管理、アーティスト検索、
// リリース一覧・トラック一覧の取得を含む。
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/releasedrop/internal/model"
)

const (
	// defaultAPIBase はSpotify Web APIのベースURL。
	defaultAPIBase = "https://api.spotify.com/v1"
	// defaultTokenURL はClient Credentialsフローのトークンエンドポイント。
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	// pageLimit は1リクエストあたりの最大取得件数。
	pageLimit = 50
	// maxPages はリリース一覧取得の上限ページ数（暴走防止）。
	maxPages = 20
	// retryBackoff は一時的な失敗時の再試行までの待機時間。
	retryBackoff = 2 * time.Second
	// tokenExpiryMargin はトークン更新を早めるマージン。
	tokenExpiryMargin = 60 * time.Second
)

// Client はSpotify Web APIのクライアント。
// アクセストークンをキャッシュし、有効期限切れ前に自動更新する。
// レートリミッタにより上流のレート制限を尊重する。
type Client struct {
	httpClient   *http.Client
	logger       *slog.Logger
	clientID     string
	clientSecret string
	limiter      *rate.Limiter

	apiBase  string // テスト用にエンドポイントを差し替え可能
	tokenURL string
	backoff  time.Duration

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient はClient の新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, clientID, clientSecret string) *Client {
	return &Client{
		httpClient:   httpClient,
		logger:       logger,
		clientID:     clientID,
		clientSecret: clientSecret,
		// Spotifyのレート制限（約180リクエスト/30秒）に余裕を持たせる
		limiter:  rate.NewLimiter(rate.Limit(4), 8),
		apiBase:  defaultAPIBase,
		tokenURL: defaultTokenURL,
		backoff:  retryBackoff,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// token は有効なアクセストークンを返す。
// キャッシュが有効期限内ならそれを返し、切れていれば再取得する。
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("トークンリクエストの作成に失敗しました: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("トークンの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Spotifyトークンエンドポイントがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("Spotify認証がステータス %d を返しました", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("トークンレスポンスのパースに失敗しました: %w", err)
	}

	c.accessToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpiryMargin)
	return c.accessToken, nil
}

// statusError はSpotify APIの非200レスポンスを表す。
type statusError struct {
	status     int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("Spotify APIがステータス %d を返しました", e.status)
}

// retryable は再試行で結果が変わりうる失敗かどうかを返す。
func (e *statusError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// invalidateToken はキャッシュ済みトークンを破棄する。次回のtokenで再取得される。
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

// get はAPIエンドポイントにGETリクエストを送り、レスポンスボディを返す。
// 一時的な失敗（接続エラー、429、5xx）は一度だけバックオフ付きで再試行する。
// 429はRetry-Afterヘッダーがあればその秒数を待つ。401はトークンを破棄して
// 即座に取り直す。それ以外の4xxは再試行しない。
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, err := c.getOnce(ctx, path, query)
	if err == nil {
		return body, nil
	}

	delay := c.backoff
	var serr *statusError
	if errors.As(err, &serr) {
		switch {
		case serr.status == http.StatusUnauthorized:
			c.invalidateToken()
			delay = 0
		case !serr.retryable():
			return nil, err
		case serr.retryAfter > 0:
			delay = serr.retryAfter
		}
	}

	c.logger.Warn("Spotify APIの呼び出しに失敗したため再試行します",
		slog.String("path", path),
		slog.String("error", err.Error()),
	)

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return c.getOnce(ctx, path, query)
}

func (c *Client) getOnce(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := c.apiBase + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Spotify APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		serr := &statusError{status: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, aerr := strconv.Atoi(resp.Header.Get("Retry-After")); aerr == nil && secs > 0 {
				serr.retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, serr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	return body, nil
}

type artistItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Followers struct {
		Total int `json:"total"`
	} `json:"followers"`
	Genres []string `json:"genres"`
}

func (a *artistItem) toModel() model.ArtistSearch {
	result := model.ArtistSearch{
		SpotifyID:  a.ID,
		Name:       a.Name,
		SpotifyURL: a.ExternalURLs.Spotify,
		Followers:  a.Followers.Total,
		Genres:     a.Genres,
	}
	if len(a.Images) > 0 {
		result.ImageURL = a.Images[0].URL
	}
	return result
}

// SearchArtists はアーティスト名で検索し、候補一覧を返す。
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]model.ArtistSearch, error) {
	if limit <= 0 || limit > pageLimit {
		limit = 10
	}

	q := url.Values{
		"q":     {query},
		"type":  {"artist"},
		"limit": {fmt.Sprintf("%d", limit)},
	}
	body, err := c.get(ctx, "/search", q)
	if err != nil {
		return nil, fmt.Errorf("アーティスト検索に失敗しました: %w", err)
	}

	var payload struct {
		Artists struct {
			Items []artistItem `json:"items"`
		} `json:"artists"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("検索レスポンスのパースに失敗しました: %w", err)
	}

	results := make([]model.ArtistSearch, 0, len(payload.Artists.Items))
	for i := range payload.Artists.Items {
		results = append(results, payload.Artists.Items[i].toModel())
	}
	return results, nil
}

type albumItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AlbumType    string `json:"album_type"`
	AlbumGroup   string `json:"album_group"`
	ReleaseDate  string `json:"release_date"`
	TotalTracks  int    `json:"total_tracks"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// ListReleases はアーティストのリリース一覧を取得する。
// monthsBackが正の場合はその月数以前のリリースを除外し、
// 0以下の場合は全履歴を返す。コンピレーションと客演作品は含まない。
func (c *Client) ListReleases(ctx context.Context, artistSpotifyID string, monthsBack int) ([]model.CatalogRelease, error) {
	var cutoff time.Time
	if monthsBack > 0 {
		cutoff = time.Now().AddDate(0, -monthsBack, 0)
	}

	var releases []model.CatalogRelease
	offset := 0
	for page := 0; page < maxPages; page++ {
		q := url.Values{
			"include_groups": {"album,single"},
			"limit":          {fmt.Sprintf("%d", pageLimit)},
			"offset":         {fmt.Sprintf("%d", offset)},
		}
		body, err := c.get(ctx, "/artists/"+artistSpotifyID+"/albums", q)
		if err != nil {
			return nil, fmt.Errorf("リリース一覧の取得に失敗しました: %w", err)
		}

		var payload struct {
			Items []albumItem `json:"items"`
			Next  string      `json:"next"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("リリースレスポンスのパースに失敗しました: %w", err)
		}

		for i := range payload.Items {
			item := &payload.Items[i]
			if item.AlbumGroup == "appears_on" || item.AlbumType == "compilation" {
				continue
			}
			releaseDate := ParseReleaseDate(item.ReleaseDate)
			if !cutoff.IsZero() && releaseDate.Before(cutoff) {
				continue
			}
			release := model.CatalogRelease{
				SpotifyID:   item.ID,
				Name:        item.Name,
				Type:        classifyRelease(item.AlbumType, item.TotalTracks),
				ReleaseDate: item.ReleaseDate,
				SpotifyURL:  item.ExternalURLs.Spotify,
				TotalTracks: item.TotalTracks,
			}
			if len(item.Images) > 0 {
				release.ImageURL = item.Images[0].URL
			}
			releases = append(releases, release)
		}

		if payload.Next == "" || len(payload.Items) < pageLimit {
			break
		}
		offset += pageLimit
	}

	return releases, nil
}

// ListTracks はリリースのトラック一覧を取得する。
func (c *Client) ListTracks(ctx context.Context, albumSpotifyID string) ([]model.Track, error) {
	q := url.Values{"limit": {fmt.Sprintf("%d", pageLimit)}}
	body, err := c.get(ctx, "/albums/"+albumSpotifyID+"/tracks", q)
	if err != nil {
		return nil, fmt.Errorf("トラック一覧の取得に失敗しました: %w", err)
	}

	var payload struct {
		Items []struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			TrackNumber  int    `json:"track_number"`
			DurationMS   int    `json:"duration_ms"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("トラックレスポンスのパースに失敗しました: %w", err)
	}

	tracks := make([]model.Track, 0, len(payload.Items))
	for _, item := range payload.Items {
		tracks = append(tracks, model.Track{
			SpotifyID:   item.ID,
			Name:        item.Name,
			TrackNumber: item.TrackNumber,
			DurationMS:  item.DurationMS,
			SpotifyURL:  item.ExternalURLs.Spotify,
		})
	}
	return tracks, nil
}

// classifyRelease はSpotifyのalbum_typeとトラック数からリリース種別を判定する。
// Spotifyは4〜6曲程度のEPもalbum_type "single" として返すため、
// トラック数で補正する。
func classifyRelease(albumType string, totalTracks int) model.ReleaseType {
	switch albumType {
	case "album":
		return model.ReleaseTypeAlbum
	case "single":
		if totalTracks >= 4 {
			return model.ReleaseTypeEP
		}
		return model.ReleaseTypeSingle
	default:
		return model.ReleaseTypeSingle
	}
}

// ParseReleaseDate はSpotifyのrelease_dateをtime.Timeに変換する。
// 精度に応じて "2024" / "2024-03" / "2024-03-15" の3形式があり、
// 欠けた部分は年初・月初で補完する。パース不能な場合はゼロ値を返す。
func ParseReleaseDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
