package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/releasedrop/internal/artist"
	"github.com/hitoshi/releasedrop/internal/middleware"
	"github.com/hitoshi/releasedrop/internal/model"
)

// defaultSearchLimit はアーティスト検索の既定件数。
const defaultSearchLimit = 10

// ArtistServiceInterface はアーティストハンドラーが必要とするサービスインターフェース。
type ArtistServiceInterface interface {
	// Search はカタログからアーティスト候補を検索する。
	Search(ctx context.Context, query string, limit int) ([]model.ArtistSearch, error)
	// Follow はアーティストをフォローする。
	Follow(ctx context.Context, input artist.FollowInput) (*model.Artist, error)
	// Get はフォロー中アーティストを1件返す。
	Get(ctx context.Context, id string) (*model.Artist, error)
	// List はフォロー中アーティストの一覧を返す。
	List(ctx context.Context) ([]*model.Artist, error)
	// Unfollow はフォローを解除する（関連リリースもCASCADE削除）。
	Unfollow(ctx context.Context, id string) error
}

// ArtistHandler はアーティスト管理のHTTPハンドラー。
type ArtistHandler struct {
	service ArtistServiceInterface
}

// NewArtistHandler はArtistHandlerを生成する。
func NewArtistHandler(service ArtistServiceInterface) *ArtistHandler {
	return &ArtistHandler{
		service: service,
	}
}

// artistResponse はフォロー中アーティストのAPIレスポンス。
type artistResponse struct {
	ID          string     `json:"id"`
	SpotifyID   string     `json:"spotify_id"`
	Name        string     `json:"name"`
	SpotifyURL  string     `json:"spotify_url"`
	ImageURL    string     `json:"image_url,omitempty"`
	AddedAt     time.Time  `json:"added_at"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
}

// artistSearchResponse はカタログ検索結果のAPIレスポンス。
type artistSearchResponse struct {
	SpotifyID  string   `json:"spotify_id"`
	Name       string   `json:"name"`
	SpotifyURL string   `json:"spotify_url"`
	ImageURL   string   `json:"image_url,omitempty"`
	Followers  int      `json:"followers"`
	Genres     []string `json:"genres"`
}

// followRequest はフォローリクエストのボディ。
type followRequest struct {
	SpotifyID  string `json:"spotify_id"`
	Name       string `json:"name"`
	SpotifyURL string `json:"spotify_url"`
	ImageURL   string `json:"image_url"`
}

// Search はカタログからアーティスト候補を検索する。
// GET /api/artists/search?q=...&limit=...
func (h *ArtistHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "検索クエリが指定されていません。",
			Category: "validation",
			Action:   "qパラメータにアーティスト名を指定してください。",
		})
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), defaultSearchLimit)

	results, err := h.service.Search(r.Context(), query, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]artistSearchResponse, 0, len(results))
	for i := range results {
		responses = append(responses, toArtistSearchResponse(&results[i]))
	}

	writeJSON(w, http.StatusOK, responses)
}

// Follow はアーティストをフォローする。
// POST /api/artists
func (h *ArtistHandler) Follow(w http.ResponseWriter, r *http.Request) {
	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyError(w)
		return
	}

	if req.SpotifyID == "" || req.Name == "" || req.SpotifyURL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "spotify_id、name、spotify_urlは必須です。",
			Category: "validation",
			Action:   "検索結果のspotify_id、name、spotify_urlを指定してください。",
		})
		return
	}

	created, err := h.service.Follow(r.Context(), artist.FollowInput{
		SpotifyID:  req.SpotifyID,
		Name:       req.Name,
		SpotifyURL: req.SpotifyURL,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toArtistResponse(created))
}

// Get はフォロー中アーティストを1件取得する。
// GET /api/artists/:id
func (h *ArtistHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toArtistResponse(found))
}

// List はフォロー中アーティストの一覧を取得する。
// GET /api/artists
func (h *ArtistHandler) List(w http.ResponseWriter, r *http.Request) {
	artists, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]artistResponse, 0, len(artists))
	for _, a := range artists {
		responses = append(responses, toArtistResponse(a))
	}

	writeJSON(w, http.StatusOK, responses)
}

// Unfollow はフォローを解除する。
// DELETE /api/artists/:id
func (h *ArtistHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Unfollow(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toArtistResponse はmodel.ArtistからAPIレスポンスに変換する。
func toArtistResponse(a *model.Artist) artistResponse {
	return artistResponse{
		ID:          a.ID,
		SpotifyID:   a.SpotifyID,
		Name:        a.Name,
		SpotifyURL:  a.SpotifyURL,
		ImageURL:    a.ImageURL,
		AddedAt:     a.AddedAt,
		LastChecked: a.LastChecked,
	}
}

// toArtistSearchResponse はmodel.ArtistSearchからAPIレスポンスに変換する。
func toArtistSearchResponse(a *model.ArtistSearch) artistSearchResponse {
	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}
	return artistSearchResponse{
		SpotifyID:  a.SpotifyID,
		Name:       a.Name,
		SpotifyURL: a.SpotifyURL,
		ImageURL:   a.ImageURL,
		Followers:  a.Followers,
		Genres:     genres,
	}
}

// parseLimit はlimitクエリパラメータを解析する。不正値は既定値にフォールバックする。
func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeInvalidBodyError はリクエストボディの解析失敗エラーを書き込む。
func writeInvalidBodyError(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForError(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
