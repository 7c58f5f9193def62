package library

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/hitoshi/releasedrop/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Jellyfinの検索結果がトラック一覧付きの候補に変換されることを検証
func TestJellyfinIndex_SearchCandidates(t *testing.T) {
	var userLookups int
	mux := http.NewServeMux()
	mux.HandleFunc("/Users", func(w http.ResponseWriter, r *http.Request) {
		userLookups++
		fmt.Fprint(w, `[{"Id":"user-1","Name":"admin"}]`)
	})
	mux.HandleFunc("/Users/user-1/Items", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Emby-Token") != "test-token" {
			t.Errorf("X-Emby-Token = %q", r.Header.Get("X-Emby-Token"))
		}
		if parent := r.URL.Query().Get("ParentId"); parent != "" {
			// トラック一覧のリクエスト
			fmt.Fprint(w, `{"Items":[
				{"Id":"t1","Name":"Opening Move"},
				{"Id":"t2","Name":"Gambit"}
			]}`)
			return
		}
		if term := r.URL.Query().Get("SearchTerm"); term != "Checkmate" {
			t.Errorf("SearchTerm = %q, want Checkmate", term)
		}
		fmt.Fprint(w, `{"Items":[
			{"Id":"alb1","Name":"Checkmate","ChildCount":2}
		]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	index := NewJellyfinIndex(server.Client(), testLogger(), server.URL, "test-token")

	candidates, err := index.SearchCandidates(context.Background(), "Checkmate")
	if err != nil {
		t.Fatalf("SearchCandidates failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	got := candidates[0]
	if got.ID != "alb1" || got.Name != "Checkmate" {
		t.Errorf("unexpected candidate: %+v", got)
	}
	if got.TrackCount != 2 || len(got.Tracks) != 2 {
		t.Errorf("TrackCount/Tracks = %d/%d, want 2/2", got.TrackCount, len(got.Tracks))
	}

	// ユーザーIDはキャッシュされ、2回目の検索では再取得しない
	if _, err := index.SearchCandidates(context.Background(), "Checkmate"); err != nil {
		t.Fatalf("second SearchCandidates failed: %v", err)
	}
	if userLookups != 1 {
		t.Errorf("userLookups = %d, want 1", userLookups)
	}
}

// Jellyfinにユーザーが存在しない場合に検索がエラーになることを検証
func TestJellyfinIndex_SearchCandidates_NoUsers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Users", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	index := NewJellyfinIndex(server.Client(), testLogger(), server.URL, "tok")
	if _, err := index.SearchCandidates(context.Background(), "Checkmate"); err == nil {
		t.Error("expected error when no users exist")
	}
}

// Jellyfinの疎通確認が成功と失敗の両方で正しく動くことを検証
func TestJellyfinIndex_Available(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/System/Info" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"Version":"10.9.0"}`)
	}))
	defer server.Close()

	index := NewJellyfinIndex(server.Client(), testLogger(), server.URL, "tok")
	if err := index.Available(context.Background()); err != nil {
		t.Errorf("Available failed: %v", err)
	}

	broken := NewJellyfinIndex(server.Client(), testLogger(), "http://127.0.0.1:1", "tok")
	if err := broken.Available(context.Background()); err == nil {
		t.Error("expected error for unreachable server")
	}
}

// Kindがjellyfinを返すことを検証
func TestJellyfinIndex_Kind(t *testing.T) {
	index := NewJellyfinIndex(nil, testLogger(), "http://example", "tok")
	if index.Kind() != model.LibraryJellyfin {
		t.Errorf("Kind = %q, want jellyfin", index.Kind())
	}
}
