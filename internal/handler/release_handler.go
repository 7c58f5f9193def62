package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/releasedrop/internal/model"
)

// ReleaseServiceInterface はリリースハンドラーが必要とするサービスインターフェース。
type ReleaseServiceInterface interface {
	// List はフィルタ条件に一致するリリース一覧を返す。
	List(ctx context.Context, filter model.ReleaseFilter) ([]*model.Release, error)
	// Latest は設定期間内の最新リリースを返す。
	Latest(ctx context.Context, limit int) ([]*model.Release, error)
	// ListByArtist はアーティストの全リリースを返す（全履歴補完付き）。
	ListByArtist(ctx context.Context, artistID string) ([]*model.Release, error)
	// MarkSeen はリリースを既読化する。
	MarkSeen(ctx context.Context, id string) error
	// MarkAllSeen は全リリースを既読化し、対象件数を返す。
	MarkAllSeen(ctx context.Context) (int, error)
	// Stats はリリースの集計情報を返す。
	Stats(ctx context.Context) (*model.ReleaseStats, error)
	// Tracks はリリースのトラック一覧をカタログから取得する。
	Tracks(ctx context.Context, releaseID string) ([]model.Track, error)
}

// ReleaseHandler はリリース閲覧と既読管理のHTTPハンドラー。
type ReleaseHandler struct {
	service ReleaseServiceInterface
}

// NewReleaseHandler はReleaseHandlerを生成する。
func NewReleaseHandler(service ReleaseServiceInterface) *ReleaseHandler {
	return &ReleaseHandler{
		service: service,
	}
}

// releaseResponse はリリース情報のAPIレスポンス。
type releaseResponse struct {
	ID           string    `json:"id"`
	ArtistID     string    `json:"artist_id"`
	SpotifyID    string    `json:"spotify_id"`
	Name         string    `json:"name"`
	ReleaseType  string    `json:"release_type"`
	ReleaseDate  string    `json:"release_date"`
	SpotifyURL   string    `json:"spotify_url"`
	ImageURL     string    `json:"image_url,omitempty"`
	TotalTracks  int       `json:"total_tracks"`
	IsNew        bool      `json:"is_new"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// trackResponse はトラック情報のAPIレスポンス。
type trackResponse struct {
	SpotifyID   string `json:"spotify_id"`
	Name        string `json:"name"`
	TrackNumber int    `json:"track_number"`
	DurationMS  int    `json:"duration_ms"`
	SpotifyURL  string `json:"spotify_url"`
}

// statsResponse はリリース集計のAPIレスポンス。
type statsResponse struct {
	TotalReleases int               `json:"total_releases"`
	NewReleases   int               `json:"new_releases"`
	TotalArtists  int               `json:"total_artists"`
	ByType        statsByTypeDetail `json:"by_type"`
}

// statsByTypeDetail は種別ごとのリリース件数。
type statsByTypeDetail struct {
	Albums  int `json:"albums"`
	Singles int `json:"singles"`
	EPs     int `json:"eps"`
}

// List はリリース一覧を取得する。
// GET /api/releases?only_new=true&artist_id=...
func (h *ReleaseHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.ReleaseFilter{
		OnlyNew:  r.URL.Query().Get("only_new") == "true",
		ArtistID: r.URL.Query().Get("artist_id"),
	}

	releases, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toReleaseResponses(releases))
}

// Latest は設定期間内の最新リリースを取得する。
// GET /api/releases/latest?limit=...
func (h *ReleaseHandler) Latest(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), 0)

	releases, err := h.service.Latest(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toReleaseResponses(releases))
}

// ListByArtist はアーティストの全リリースを取得する。
// GET /api/artists/:id/releases
func (h *ReleaseHandler) ListByArtist(w http.ResponseWriter, r *http.Request) {
	artistID := chi.URLParam(r, "id")

	releases, err := h.service.ListByArtist(r.Context(), artistID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toReleaseResponses(releases))
}

// MarkSeen はリリースを既読化する。
// POST /api/releases/:id/mark-seen
func (h *ReleaseHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.MarkSeen(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MarkAllSeen は全リリースを既読化する。
// POST /api/releases/mark-all-seen
func (h *ReleaseHandler) MarkAllSeen(w http.ResponseWriter, r *http.Request) {
	marked, err := h.service.MarkAllSeen(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"marked": marked})
}

// Stats はリリースの集計情報を取得する。
// GET /api/releases/stats
func (h *ReleaseHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalReleases: stats.TotalReleases,
		NewReleases:   stats.NewReleases,
		TotalArtists:  stats.TotalArtists,
		ByType: statsByTypeDetail{
			Albums:  stats.Albums,
			Singles: stats.Singles,
			EPs:     stats.EPs,
		},
	})
}

// Tracks はリリースのトラック一覧を取得する。
// GET /api/releases/:id/tracks
func (h *ReleaseHandler) Tracks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tracks, err := h.service.Tracks(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]trackResponse, 0, len(tracks))
	for _, t := range tracks {
		responses = append(responses, trackResponse{
			SpotifyID:   t.SpotifyID,
			Name:        t.Name,
			TrackNumber: t.TrackNumber,
			DurationMS:  t.DurationMS,
			SpotifyURL:  t.SpotifyURL,
		})
	}

	writeJSON(w, http.StatusOK, responses)
}

// toReleaseResponses はmodel.ReleaseのスライスからAPIレスポンスに変換する。
func toReleaseResponses(releases []*model.Release) []releaseResponse {
	responses := make([]releaseResponse, 0, len(releases))
	for _, rel := range releases {
		responses = append(responses, releaseResponse{
			ID:           rel.ID,
			ArtistID:     rel.ArtistID,
			SpotifyID:    rel.SpotifyID,
			Name:         rel.Name,
			ReleaseType:  string(rel.Type),
			ReleaseDate:  rel.ReleaseDate,
			SpotifyURL:   rel.SpotifyURL,
			ImageURL:     rel.ImageURL,
			TotalTracks:  rel.TotalTracks,
			IsNew:        rel.IsNew,
			DiscoveredAt: rel.DiscoveredAt,
		})
	}
	return responses
}
