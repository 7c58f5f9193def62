package library

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/releasedrop/internal/model"
)

// Plexの音楽セクションを横断してアルバム候補が検索されることを検証
func TestPlexIndex_SearchCandidates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "plex-token" {
			t.Errorf("X-Plex-Token = %q", r.Header.Get("X-Plex-Token"))
		}
		fmt.Fprint(w, `{"MediaContainer":{"Directory":[
			{"key":"1","type":"movie"},
			{"key":"5","type":"artist"}
		]}}`)
	})
	mux.HandleFunc("/library/sections/5/all", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("type"); got != "9" {
			t.Errorf("type = %q, want 9", got)
		}
		fmt.Fprint(w, `{"MediaContainer":{"Metadata":[
			{"ratingKey":"100","title":"Checkmate","leafCount":12}
		]}}`)
	})
	mux.HandleFunc("/library/metadata/100/children", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"MediaContainer":{"Metadata":[
			{"ratingKey":"101","title":"Opening Move"},
			{"ratingKey":"102","title":"Gambit"}
		]}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	index := NewPlexIndex(server.Client(), testLogger(), server.URL, "plex-token")

	candidates, err := index.SearchCandidates(context.Background(), "Checkmate")
	if err != nil {
		t.Fatalf("SearchCandidates failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	got := candidates[0]
	if got.ID != "100" || got.Name != "Checkmate" {
		t.Errorf("unexpected candidate: %+v", got)
	}
	if got.TrackCount != 2 {
		t.Errorf("TrackCount = %d, want 2 (実トラック数を優先)", got.TrackCount)
	}
}

// 音楽セクションが存在しない場合は空の候補が返ることを検証
func TestPlexIndex_NoMusicSections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"MediaContainer":{"Directory":[{"key":"1","type":"movie"}]}}`)
	}))
	defer server.Close()

	index := NewPlexIndex(server.Client(), testLogger(), server.URL, "tok")
	candidates, err := index.SearchCandidates(context.Background(), "Anything")
	if err != nil {
		t.Fatalf("SearchCandidates failed: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("candidates = %d, want 0", len(candidates))
	}
}

// Kindがplexを返すことを検証
func TestPlexIndex_Kind(t *testing.T) {
	index := NewPlexIndex(nil, testLogger(), "http://example", "tok")
	if index.Kind() != model.LibraryPlex {
		t.Errorf("Kind = %q, want plex", index.Kind())
	}
}
