package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/hitoshi/releasedrop/internal/model"
)

// maxCandidates は1回の照合で考慮する候補アルバムの上限。
const maxCandidates = 10

// JellyfinIndex はJellyfinサーバーのライブラリ検索実装。
type JellyfinIndex struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string

	mu     sync.Mutex
	userID string // 初回アクセス時に /Users から解決しキャッシュする
}

var _ Index = (*JellyfinIndex)(nil)

// NewJellyfinIndex はJellyfinIndex の新しいインスタンスを生成する。
func NewJellyfinIndex(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string) *JellyfinIndex {
	return &JellyfinIndex{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Kind はライブラリ種別を返す。
func (j *JellyfinIndex) Kind() model.LibraryKind {
	return model.LibraryJellyfin
}

// Available はJellyfinサーバーへの疎通を確認する。
func (j *JellyfinIndex) Available(ctx context.Context) error {
	body, err := j.get(ctx, "/System/Info", nil)
	if err != nil {
		return fmt.Errorf("Jellyfinサーバーに接続できません: %w", err)
	}
	_ = body
	return nil
}

type jellyfinItems struct {
	Items []struct {
		ID         string `json:"Id"`
		Name       string `json:"Name"`
		ChildCount int    `json:"ChildCount"`
	} `json:"Items"`
}

// resolveUserID はJellyfinのユーザーIDを解決する。
// APIの多くがユーザーIDを要求するため、最初のユーザーを使用しキャッシュする。
func (j *JellyfinIndex) resolveUserID(ctx context.Context) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.userID != "" {
		return j.userID, nil
	}

	body, err := j.get(ctx, "/Users", nil)
	if err != nil {
		return "", fmt.Errorf("Jellyfinのユーザー取得に失敗しました: %w", err)
	}

	var users []struct {
		ID string `json:"Id"`
	}
	if err := json.Unmarshal(body, &users); err != nil {
		return "", fmt.Errorf("Jellyfinレスポンスのパースに失敗しました: %w", err)
	}
	if len(users) == 0 {
		return "", fmt.Errorf("Jellyfinにユーザーが存在しません")
	}

	j.userID = users[0].ID
	return j.userID, nil
}

// SearchCandidates はアルバム名でJellyfinライブラリを検索する。
// 各候補についてトラック名リストを追加取得して返す。
func (j *JellyfinIndex) SearchCandidates(ctx context.Context, albumName string) ([]model.LibraryAlbum, error) {
	userID, err := j.resolveUserID(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{
		"IncludeItemTypes": {"MusicAlbum"},
		"Recursive":        {"true"},
		"SearchTerm":       {albumName},
		"Limit":            {fmt.Sprintf("%d", maxCandidates)},
	}
	body, err := j.get(ctx, "/Users/"+userID+"/Items", q)
	if err != nil {
		return nil, fmt.Errorf("Jellyfinのアルバム検索に失敗しました: %w", err)
	}

	var payload jellyfinItems
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("Jellyfinレスポンスのパースに失敗しました: %w", err)
	}

	candidates := make([]model.LibraryAlbum, 0, len(payload.Items))
	for _, item := range payload.Items {
		tracks, err := j.albumTracks(ctx, item.ID)
		if err != nil {
			// トラック取得に失敗した候補はトラック数のみで照合する
			j.logger.Warn("Jellyfinのトラック一覧取得に失敗しました",
				slog.String("album_id", item.ID),
				slog.String("error", err.Error()),
			)
			tracks = nil
		}
		trackCount := item.ChildCount
		if len(tracks) > 0 {
			trackCount = len(tracks)
		}
		candidates = append(candidates, model.LibraryAlbum{
			ID:         item.ID,
			Name:       item.Name,
			TrackCount: trackCount,
			Tracks:     tracks,
		})
	}
	return candidates, nil
}

// albumTracks はアルバムのトラック名一覧を取得する。
func (j *JellyfinIndex) albumTracks(ctx context.Context, albumID string) ([]string, error) {
	userID, err := j.resolveUserID(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{
		"ParentId":         {albumID},
		"IncludeItemTypes": {"Audio"},
	}
	body, err := j.get(ctx, "/Users/"+userID+"/Items", q)
	if err != nil {
		return nil, err
	}

	var payload jellyfinItems
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		names = append(names, item.Name)
	}
	return names, nil
}

func (j *JellyfinIndex) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	reqURL := j.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("X-Emby-Token", j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Jellyfinがステータス %d を返しました", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
