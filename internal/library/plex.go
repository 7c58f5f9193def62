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

// plexAlbumType はPlexの検索タイプ（9 = アルバム）。
const plexAlbumType = "9"

// PlexIndex はPlexサーバーのライブラリ検索実装。
type PlexIndex struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	token      string

	mu         sync.Mutex
	sectionIDs []string // 音楽ライブラリのセクションIDキャッシュ
}

var _ Index = (*PlexIndex)(nil)

// NewPlexIndex はPlexIndex の新しいインスタンスを生成する。
func NewPlexIndex(httpClient *http.Client, logger *slog.Logger, baseURL, token string) *PlexIndex {
	return &PlexIndex{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// Kind はライブラリ種別を返す。
func (p *PlexIndex) Kind() model.LibraryKind {
	return model.LibraryPlex
}

// Available はPlexサーバーへの疎通を確認する。
func (p *PlexIndex) Available(ctx context.Context) error {
	if _, err := p.get(ctx, "/identity", nil); err != nil {
		return fmt.Errorf("Plexサーバーに接続できません: %w", err)
	}
	return nil
}

type plexContainer struct {
	MediaContainer struct {
		Directory []struct {
			Key  string `json:"key"`
			Type string `json:"type"`
		} `json:"Directory"`
		Metadata []struct {
			RatingKey string `json:"ratingKey"`
			Title     string `json:"title"`
			LeafCount int    `json:"leafCount"`
		} `json:"Metadata"`
	} `json:"MediaContainer"`
}

// musicSections は音楽ライブラリのセクションID一覧を返す（初回のみ取得）。
func (p *PlexIndex) musicSections(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sectionIDs != nil {
		return p.sectionIDs, nil
	}

	body, err := p.get(ctx, "/library/sections", nil)
	if err != nil {
		return nil, fmt.Errorf("Plexのセクション一覧取得に失敗しました: %w", err)
	}

	var payload plexContainer
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("Plexレスポンスのパースに失敗しました: %w", err)
	}

	var ids []string
	for _, dir := range payload.MediaContainer.Directory {
		if dir.Type == "artist" {
			ids = append(ids, dir.Key)
		}
	}
	if ids == nil {
		ids = []string{}
	}
	p.sectionIDs = ids
	return ids, nil
}

// SearchCandidates はアルバム名でPlexの音楽ライブラリを検索する。
func (p *PlexIndex) SearchCandidates(ctx context.Context, albumName string) ([]model.LibraryAlbum, error) {
	sections, err := p.musicSections(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []model.LibraryAlbum
	for _, section := range sections {
		q := url.Values{
			"type":  {plexAlbumType},
			"title": {albumName},
		}
		body, err := p.get(ctx, "/library/sections/"+section+"/all", q)
		if err != nil {
			return nil, fmt.Errorf("Plexのアルバム検索に失敗しました: %w", err)
		}

		var payload plexContainer
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("Plexレスポンスのパースに失敗しました: %w", err)
		}

		for _, item := range payload.MediaContainer.Metadata {
			if len(candidates) >= maxCandidates {
				break
			}
			tracks, err := p.albumTracks(ctx, item.RatingKey)
			if err != nil {
				p.logger.Warn("Plexのトラック一覧取得に失敗しました",
					slog.String("rating_key", item.RatingKey),
					slog.String("error", err.Error()),
				)
				tracks = nil
			}
			trackCount := item.LeafCount
			if len(tracks) > 0 {
				trackCount = len(tracks)
			}
			candidates = append(candidates, model.LibraryAlbum{
				ID:         item.RatingKey,
				Name:       item.Title,
				TrackCount: trackCount,
				Tracks:     tracks,
			})
		}
	}
	return candidates, nil
}

// albumTracks はアルバムのトラック名一覧を取得する。
func (p *PlexIndex) albumTracks(ctx context.Context, ratingKey string) ([]string, error) {
	body, err := p.get(ctx, "/library/metadata/"+ratingKey+"/children", nil)
	if err != nil {
		return nil, err
	}

	var payload plexContainer
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(payload.MediaContainer.Metadata))
	for _, item := range payload.MediaContainer.Metadata {
		names = append(names, item.Title)
	}
	return names, nil
}

func (p *PlexIndex) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	reqURL := p.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("X-Plex-Token", p.token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Plexがステータス %d を返しました", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
