package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/releasedrop/internal/artist"
	"github.com/hitoshi/releasedrop/internal/model"
)

// --- モック定義 ---

// mockArtistService はArtistServiceInterfaceのモック実装。
type mockArtistService struct {
	searchFn   func(ctx context.Context, query string, limit int) ([]model.ArtistSearch, error)
	followFn   func(ctx context.Context, input artist.FollowInput) (*model.Artist, error)
	getFn      func(ctx context.Context, id string) (*model.Artist, error)
	listFn     func(ctx context.Context) ([]*model.Artist, error)
	unfollowFn func(ctx context.Context, id string) error
}

func (m *mockArtistService) Search(ctx context.Context, query string, limit int) ([]model.ArtistSearch, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockArtistService) Follow(ctx context.Context, input artist.FollowInput) (*model.Artist, error) {
	if m.followFn != nil {
		return m.followFn(ctx, input)
	}
	return nil, nil
}

func (m *mockArtistService) Get(ctx context.Context, id string) (*model.Artist, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockArtistService) List(ctx context.Context) ([]*model.Artist, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockArtistService) Unfollow(ctx context.Context, id string) error {
	if m.unfollowFn != nil {
		return m.unfollowFn(ctx, id)
	}
	return nil
}

// --- テストヘルパー ---

// withChiURLParam はchiのURLパラメータをリクエストコンテキストに注入するヘルパー。
// 既にRouteContextがある場合はパラメータを追記する。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// --- GET /api/artists/search テスト ---

func TestArtistHandler_Search_Success(t *testing.T) {
	svc := &mockArtistService{
		searchFn: func(ctx context.Context, query string, limit int) ([]model.ArtistSearch, error) {
			if query != "nujabes" {
				t.Errorf("query = %q, want %q", query, "nujabes")
			}
			if limit != 5 {
				t.Errorf("limit = %d, want 5", limit)
			}
			return []model.ArtistSearch{
				{
					SpotifyID:  "spotify-1",
					Name:       "Nujabes",
					SpotifyURL: "https://open.spotify.com/artist/spotify-1",
					Followers:  100000,
					Genres:     []string{"jazz rap"},
				},
			}, nil
		},
	}

	h := NewArtistHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/artists/search?q=nujabes&limit=5", nil)
	w := httptest.NewRecorder()

	h.Search(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("result length = %d, want 1", len(result))
	}
	if result[0]["spotify_id"] != "spotify-1" {
		t.Errorf("spotify_id = %v, want %q", result[0]["spotify_id"], "spotify-1")
	}
	if result[0]["name"] != "Nujabes" {
		t.Errorf("name = %v, want %q", result[0]["name"], "Nujabes")
	}
	if int(result[0]["followers"].(float64)) != 100000 {
		t.Errorf("followers = %v, want 100000", result[0]["followers"])
	}
}

func TestArtistHandler_Search_MissingQuery(t *testing.T) {
	h := NewArtistHandler(&mockArtistService{})

	req := httptest.NewRequest(http.MethodGet, "/api/artists/search", nil)
	w := httptest.NewRecorder()

	h.Search(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	result := parseAPIErrorResponse(t, w)
	if result["code"] != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", result["code"], model.ErrCodeInvalidRequest)
	}
}

func TestArtistHandler_Search_UpstreamError(t *testing.T) {
	svc := &mockArtistService{
		searchFn: func(ctx context.Context, query string, limit int) ([]model.ArtistSearch, error) {
			return nil, model.NewUpstreamUnavailableError("spotify", "timeout")
		},
	}

	h := NewArtistHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/artists/search?q=test", nil)
	w := httptest.NewRecorder()

	h.Search(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

// --- POST /api/artists テスト ---

func TestArtistHandler_Follow_Success(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	svc := &mockArtistService{
		followFn: func(ctx context.Context, input artist.FollowInput) (*model.Artist, error) {
			if input.SpotifyID != "spotify-1" {
				t.Errorf("SpotifyID = %q, want %q", input.SpotifyID, "spotify-1")
			}
			return &model.Artist{
				ID:        "artist-1",
				SpotifyID: input.SpotifyID,
				Name:      input.Name,
				AddedAt:   now,
			}, nil
		},
	}

	h := NewArtistHandler(svc)

	body := bytes.NewBufferString(`{"spotify_id":"spotify-1","name":"Nujabes","spotify_url":"https://example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/artists", body)
	w := httptest.NewRecorder()

	h.Follow(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["id"] != "artist-1" {
		t.Errorf("id = %v, want %q", result["id"], "artist-1")
	}
	if result["spotify_id"] != "spotify-1" {
		t.Errorf("spotify_id = %v, want %q", result["spotify_id"], "spotify-1")
	}
}

func TestArtistHandler_Follow_InvalidBody(t *testing.T) {
	h := NewArtistHandler(&mockArtistService{})

	req := httptest.NewRequest(http.MethodPost, "/api/artists", bytes.NewBufferString("{invalid"))
	w := httptest.NewRecorder()

	h.Follow(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestArtistHandler_Follow_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"nameのみ", `{"name":"Nujabes"}`},
		{"spotify_idのみ", `{"spotify_id":"spotify-1"}`},
		// spotify_urlはNOT NULL列に入るため、ここで弾かないと500になる
		{"spotify_urlなし", `{"spotify_id":"spotify-1","name":"Nujabes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockArtistService{
				followFn: func(ctx context.Context, input artist.FollowInput) (*model.Artist, error) {
					called = true
					return nil, nil
				},
			}
			h := NewArtistHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/artists", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			h.Follow(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if called {
				t.Error("Follow should not reach the service on validation failure")
			}

			result := parseAPIErrorResponse(t, w)
			if result["code"] != model.ErrCodeInvalidRequest {
				t.Errorf("code = %q, want %q", result["code"], model.ErrCodeInvalidRequest)
			}
		})
	}
}

func TestArtistHandler_Follow_AlreadyFollowing(t *testing.T) {
	svc := &mockArtistService{
		followFn: func(ctx context.Context, input artist.FollowInput) (*model.Artist, error) {
			return nil, model.NewAlreadyFollowingError(input.Name)
		},
	}

	h := NewArtistHandler(svc)

	body := bytes.NewBufferString(`{"spotify_id":"spotify-1","name":"Nujabes"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/artists", body)
	w := httptest.NewRecorder()

	h.Follow(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}

	result := parseAPIErrorResponse(t, w)
	if result["code"] != model.ErrCodeAlreadyFollowing {
		t.Errorf("code = %q, want %q", result["code"], model.ErrCodeAlreadyFollowing)
	}
}

// --- GET /api/artists/:id テスト ---

func TestArtistHandler_Get_NotFound(t *testing.T) {
	svc := &mockArtistService{
		getFn: func(ctx context.Context, id string) (*model.Artist, error) {
			return nil, model.NewArtistNotFoundError(id)
		},
	}

	h := NewArtistHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/artists/nonexistent", nil)
	req = withChiURLParam(req, "id", "nonexistent")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- GET /api/artists テスト ---

func TestArtistHandler_List_Empty(t *testing.T) {
	h := NewArtistHandler(&mockArtistService{})

	req := httptest.NewRequest(http.MethodGet, "/api/artists", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	// 空の場合もnullではなく空配列を返す
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want %q", got, "[]\n")
	}
}

// --- DELETE /api/artists/:id テスト ---

func TestArtistHandler_Unfollow_Success(t *testing.T) {
	var calledID string
	svc := &mockArtistService{
		unfollowFn: func(ctx context.Context, id string) error {
			calledID = id
			return nil
		},
	}

	h := NewArtistHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/artists/artist-1", nil)
	req = withChiURLParam(req, "id", "artist-1")
	w := httptest.NewRecorder()

	h.Unfollow(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if calledID != "artist-1" {
		t.Errorf("calledID = %q, want %q", calledID, "artist-1")
	}
}
