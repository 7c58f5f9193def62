package spotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/hitoshi/releasedrop/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestClient はトークンとAPIのエンドポイントをテストサーバーに差し替えたClientを返す。
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.Client(), testLogger(), "test-id", "test-secret")
	client.apiBase = server.URL + "/v1"
	client.tokenURL = server.URL + "/token"
	client.backoff = 10 * time.Millisecond
	return client
}

func tokenHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`)
}

// トークンがキャッシュされ、2回目のAPI呼び出しで再取得されないことを検証
func TestClient_TokenCached(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		tokenHandler(w, r)
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Authorization = %q, want Bearer test-token", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, `{"artists":{"items":[]}}`)
	})

	client := newTestClient(t, mux)
	ctx := context.Background()

	if _, err := client.SearchArtists(ctx, "a", 5); err != nil {
		t.Fatalf("SearchArtists failed: %v", err)
	}
	if _, err := client.SearchArtists(ctx, "b", 5); err != nil {
		t.Fatalf("SearchArtists failed: %v", err)
	}

	if tokenCalls != 1 {
		t.Errorf("token endpoint called %d times, want 1", tokenCalls)
	}
}

// アーティスト検索のレスポンスが正しくモデルに変換されることを検証
func TestClient_SearchArtists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("type"); got != "artist" {
			t.Errorf("type = %q, want artist", got)
		}
		fmt.Fprint(w, `{"artists":{"items":[
			{"id":"abc123","name":"CHECKMATE CREW",
			 "external_urls":{"spotify":"https://open.spotify.com/artist/abc123"},
			 "images":[{"url":"https://img.example/a.jpg"}],
			 "followers":{"total":4200},"genres":["hip hop"]}
		]}}`)
	})

	client := newTestClient(t, mux)
	results, err := client.SearchArtists(context.Background(), "checkmate", 5)
	if err != nil {
		t.Fatalf("SearchArtists failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	got := results[0]
	if got.SpotifyID != "abc123" || got.Name != "CHECKMATE CREW" {
		t.Errorf("unexpected result: %+v", got)
	}
	if got.ImageURL != "https://img.example/a.jpg" {
		t.Errorf("ImageURL = %q", got.ImageURL)
	}
	if got.Followers != 4200 {
		t.Errorf("Followers = %d, want 4200", got.Followers)
	}
}

// リリース一覧でコンピレーションと客演が除外されることを検証
func TestClient_ListReleases_Filters(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/v1/artists/abc123/albums", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"items":[
			{"id":"r1","name":"Own Album","album_type":"album","album_group":"album",
			 "release_date":"%s","total_tracks":12,"external_urls":{"spotify":"u1"}},
			{"id":"r2","name":"Guest Spot","album_type":"album","album_group":"appears_on",
			 "release_date":"%s","total_tracks":10,"external_urls":{"spotify":"u2"}},
			{"id":"r3","name":"Best Of","album_type":"compilation","album_group":"album",
			 "release_date":"%s","total_tracks":20,"external_urls":{"spotify":"u3"}},
			{"id":"r4","name":"Old Single","album_type":"single","album_group":"single",
			 "release_date":"2001-01-01","total_tracks":2,"external_urls":{"spotify":"u4"}}
		],"next":""}`, today, today, today)
	})

	client := newTestClient(t, mux)
	releases, err := client.ListReleases(context.Background(), "abc123", 3)
	if err != nil {
		t.Fatalf("ListReleases failed: %v", err)
	}

	if len(releases) != 1 {
		t.Fatalf("releases = %d, want 1 (客演・コンピレーション・期間外は除外)", len(releases))
	}
	if releases[0].SpotifyID != "r1" {
		t.Errorf("SpotifyID = %q, want r1", releases[0].SpotifyID)
	}
	if releases[0].Type != model.ReleaseTypeAlbum {
		t.Errorf("Type = %q, want album", releases[0].Type)
	}
}

// monthsBackが0の場合は全履歴が返ることを検証
func TestClient_ListReleases_FullHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/v1/artists/abc123/albums", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[
			{"id":"r1","name":"Debut","album_type":"album","album_group":"album",
			 "release_date":"1999-06-01","total_tracks":10,"external_urls":{"spotify":"u1"}}
		],"next":""}`)
	})

	client := newTestClient(t, mux)
	releases, err := client.ListReleases(context.Background(), "abc123", 0)
	if err != nil {
		t.Fatalf("ListReleases failed: %v", err)
	}
	if len(releases) != 1 {
		t.Fatalf("releases = %d, want 1", len(releases))
	}
}

// ページングが next に従って継続されることを検証
func TestClient_ListReleases_Paging(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/v1/artists/abc123/albums", func(w http.ResponseWriter, r *http.Request) {
		calls++
		offset := r.URL.Query().Get("offset")
		if offset == "0" {
			// 1ページ目: 50件埋めてnextあり
			fmt.Fprint(w, `{"items":[`)
			for i := 0; i < 50; i++ {
				if i > 0 {
					fmt.Fprint(w, ",")
				}
				fmt.Fprintf(w, `{"id":"p1-%d","name":"Album %d","album_type":"album","album_group":"album","release_date":"2099-01-01","total_tracks":10,"external_urls":{"spotify":"u"}}`, i, i)
			}
			fmt.Fprint(w, `],"next":"https://api.spotify.com/next"}`)
			return
		}
		fmt.Fprint(w, `{"items":[
			{"id":"p2-0","name":"Last","album_type":"album","album_group":"album",
			 "release_date":"2099-01-01","total_tracks":10,"external_urls":{"spotify":"u"}}
		],"next":""}`)
	})

	client := newTestClient(t, mux)
	releases, err := client.ListReleases(context.Background(), "abc123", 0)
	if err != nil {
		t.Fatalf("ListReleases failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("API calls = %d, want 2", calls)
	}
	if len(releases) != 51 {
		t.Errorf("releases = %d, want 51", len(releases))
	}
}

// トラック一覧が正しく変換されることを検証
func TestClient_ListTracks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/v1/albums/alb1/tracks", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[
			{"id":"t1","name":"Opening Move","track_number":1,"duration_ms":201000,
			 "external_urls":{"spotify":"u1"}},
			{"id":"t2","name":"Gambit","track_number":2,"duration_ms":185000,
			 "external_urls":{"spotify":"u2"}}
		]}`)
	})

	client := newTestClient(t, mux)
	tracks, err := client.ListTracks(context.Background(), "alb1")
	if err != nil {
		t.Fatalf("ListTracks failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(tracks))
	}
	if tracks[0].Name != "Opening Move" || tracks[0].TrackNumber != 1 {
		t.Errorf("unexpected track: %+v", tracks[0])
	}
}

// 一時的な失敗が一度だけ再試行されることを検証
func TestClient_RetriesOnce(t *testing.T) {
	attempts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"artists":{"items":[]}}`)
	})

	client := newTestClient(t, mux)
	if _, err := client.SearchArtists(context.Background(), "x", 5); err != nil {
		t.Fatalf("SearchArtists failed after retry: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

// リリース日の3形式が正しくパースされることを検証
func TestParseReleaseDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-03", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"invalid", time.Time{}},
	}
	for _, tt := range tests {
		if got := ParseReleaseDate(tt.input); !got.Equal(tt.want) {
			t.Errorf("ParseReleaseDate(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// album_typeとトラック数からのリリース種別判定を検証
func TestClassifyRelease(t *testing.T) {
	tests := []struct {
		albumType   string
		totalTracks int
		want        model.ReleaseType
	}{
		{"album", 12, model.ReleaseTypeAlbum},
		{"single", 2, model.ReleaseTypeSingle},
		{"single", 4, model.ReleaseTypeEP},
		{"single", 6, model.ReleaseTypeEP},
	}
	for _, tt := range tests {
		if got := classifyRelease(tt.albumType, tt.totalTracks); got != tt.want {
			t.Errorf("classifyRelease(%q, %d) = %q, want %q",
				tt.albumType, tt.totalTracks, got, tt.want)
		}
	}
}

// 429以外の4xxは再試行されず即座にエラーになることを検証
func TestClient_NoRetryOnClientError(t *testing.T) {
	attempts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/v1/artists/unknown/albums", func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	})

	client := newTestClient(t, mux)
	client.backoff = 5 * time.Second // 再試行されたらテストが目に見えて遅くなる

	start := time.Now()
	_, err := client.ListReleases(context.Background(), "unknown", 0)
	if err == nil {
		t.Fatal("ListReleases should fail on 404")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("elapsed = %v, backoff should not fire on 404", elapsed)
	}

	var serr *statusError
	if !errors.As(err, &serr) || serr.status != http.StatusNotFound {
		t.Errorf("err = %v, want statusError 404", err)
	}
}

// 401でキャッシュ済みトークンを破棄して取り直すことを検証
func TestClient_RefreshesTokenOn401(t *testing.T) {
	tokenCalls := 0
	attempts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":3600}`, tokenCalls)
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if r.Header.Get("Authorization") == "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"artists":{"items":[]}}`)
	})

	client := newTestClient(t, mux)
	if _, err := client.SearchArtists(context.Background(), "x", 5); err != nil {
		t.Fatalf("SearchArtists failed after token refresh: %v", err)
	}
	if tokenCalls != 2 {
		t.Errorf("token endpoint called %d times, want 2", tokenCalls)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

// 429のRetry-Afterヘッダーが待機時間として取り込まれることを検証
func TestClient_RateLimitRetryAfter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client := newTestClient(t, mux)
	_, err := client.getOnce(context.Background(), "/search", nil)

	var serr *statusError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want statusError", err)
	}
	if serr.status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", serr.status)
	}
	if serr.retryAfter != 7*time.Second {
		t.Errorf("retryAfter = %v, want 7s", serr.retryAfter)
	}
	if !serr.retryable() {
		t.Error("429 should be retryable")
	}
}
