package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/releasedrop/internal/model"
	"github.com/hitoshi/releasedrop/internal/worker/scan"
)

// --- モック定義 ---

// mockScheduler はScanSchedulerInterfaceのモック実装。
type mockScheduler struct {
	runAllFn        func(ctx context.Context) (*model.RunRecord, error)
	refreshArtistFn func(ctx context.Context, artistID string) (*scan.RefreshResult, error)
	lastRunFn       func() *model.RunRecord
}

func (m *mockScheduler) RunAll(ctx context.Context) (*model.RunRecord, error) {
	if m.runAllFn != nil {
		return m.runAllFn(ctx)
	}
	return &model.RunRecord{}, nil
}

func (m *mockScheduler) RefreshArtist(ctx context.Context, artistID string) (*scan.RefreshResult, error) {
	if m.refreshArtistFn != nil {
		return m.refreshArtistFn(ctx, artistID)
	}
	return &scan.RefreshResult{}, nil
}

func (m *mockScheduler) LastRun() *model.RunRecord {
	if m.lastRunFn != nil {
		return m.lastRunFn()
	}
	return nil
}

// --- POST /api/scan/run テスト ---

func TestScanHandler_RunAll_Success(t *testing.T) {
	started := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	sched := &mockScheduler{
		runAllFn: func(ctx context.Context) (*model.RunRecord, error) {
			return &model.RunRecord{
				ID:         "run-1",
				StartedAt:  started,
				FinishedAt: started.Add(30 * time.Second),
				Outcomes: []model.ArtistOutcome{
					{ArtistID: "a1", ArtistName: "Nujabes", NewReleases: 2},
					{ArtistID: "a2", ArtistName: "Uyama Hiroto", Error: "spotify unavailable"},
				},
				NewReleaseCount: 2,
			}, nil
		},
	}

	h := NewScanHandler(sched)

	req := httptest.NewRequest(http.MethodPost, "/api/scan/run", nil)
	w := httptest.NewRecorder()

	h.RunAll(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["id"] != "run-1" {
		t.Errorf("id = %v, want %q", result["id"], "run-1")
	}
	if int(result["artists_checked"].(float64)) != 2 {
		t.Errorf("artists_checked = %v, want 2", result["artists_checked"])
	}
	if int(result["new_releases"].(float64)) != 2 {
		t.Errorf("new_releases = %v, want 2", result["new_releases"])
	}
	if int(result["failures"].(float64)) != 1 {
		t.Errorf("failures = %v, want 1", result["failures"])
	}

	outcomes, ok := result["outcomes"].([]interface{})
	if !ok || len(outcomes) != 2 {
		t.Fatalf("outcomes = %v, want 2 entries", result["outcomes"])
	}
	second := outcomes[1].(map[string]interface{})
	if second["error"] != "spotify unavailable" {
		t.Errorf("outcomes[1].error = %v, want %q", second["error"], "spotify unavailable")
	}
}

func TestScanHandler_RunAll_InProgress(t *testing.T) {
	sched := &mockScheduler{
		runAllFn: func(ctx context.Context) (*model.RunRecord, error) {
			return nil, model.NewRunInProgressError()
		},
	}

	h := NewScanHandler(sched)

	req := httptest.NewRequest(http.MethodPost, "/api/scan/run", nil)
	w := httptest.NewRecorder()

	h.RunAll(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}

	result := parseAPIErrorResponse(t, w)
	if result["code"] != model.ErrCodeRunInProgress {
		t.Errorf("code = %q, want %q", result["code"], model.ErrCodeRunInProgress)
	}
}

// --- GET /api/scan/last テスト ---

func TestScanHandler_LastRun_NeverRun(t *testing.T) {
	h := NewScanHandler(&mockScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/api/scan/last", nil)
	w := httptest.NewRecorder()

	h.LastRun(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "null\n" {
		t.Errorf("body = %q, want %q", got, "null\n")
	}
}

func TestScanHandler_LastRun_HasRecord(t *testing.T) {
	sched := &mockScheduler{
		lastRunFn: func() *model.RunRecord {
			return &model.RunRecord{ID: "run-9", NewReleaseCount: 4}
		},
	}

	h := NewScanHandler(sched)

	req := httptest.NewRequest(http.MethodGet, "/api/scan/last", nil)
	w := httptest.NewRecorder()

	h.LastRun(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["id"] != "run-9" {
		t.Errorf("id = %v, want %q", result["id"], "run-9")
	}
	if int(result["new_releases"].(float64)) != 4 {
		t.Errorf("new_releases = %v, want 4", result["new_releases"])
	}
}

// --- POST /api/artists/:id/refresh テスト ---

func TestScanHandler_RefreshArtist_Success(t *testing.T) {
	sched := &mockScheduler{
		refreshArtistFn: func(ctx context.Context, artistID string) (*scan.RefreshResult, error) {
			if artistID != "artist-1" {
				t.Errorf("artistID = %q, want %q", artistID, "artist-1")
			}
			return &scan.RefreshResult{
				NewReleases: []*model.Release{testRelease("rel-1")},
			}, nil
		},
	}

	h := NewScanHandler(sched)

	req := httptest.NewRequest(http.MethodPost, "/api/artists/artist-1/refresh", nil)
	req = withChiURLParam(req, "id", "artist-1")
	w := httptest.NewRecorder()

	h.RefreshArtist(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["artist_id"] != "artist-1" {
		t.Errorf("artist_id = %v, want %q", result["artist_id"], "artist-1")
	}
	if int(result["new_releases"].(float64)) != 1 {
		t.Errorf("new_releases = %v, want 1", result["new_releases"])
	}

	releases, ok := result["releases"].([]interface{})
	if !ok || len(releases) != 1 {
		t.Fatalf("releases = %v, want 1 entry", result["releases"])
	}
}

func TestScanHandler_RefreshArtist_InProgress(t *testing.T) {
	sched := &mockScheduler{
		refreshArtistFn: func(ctx context.Context, artistID string) (*scan.RefreshResult, error) {
			return nil, model.NewRefreshInProgressError(artistID)
		},
	}

	h := NewScanHandler(sched)

	req := httptest.NewRequest(http.MethodPost, "/api/artists/artist-1/refresh", nil)
	req = withChiURLParam(req, "id", "artist-1")
	w := httptest.NewRecorder()

	h.RefreshArtist(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestScanHandler_RefreshArtist_NotFound(t *testing.T) {
	sched := &mockScheduler{
		refreshArtistFn: func(ctx context.Context, artistID string) (*scan.RefreshResult, error) {
			return nil, model.NewArtistNotFoundError(artistID)
		},
	}

	h := NewScanHandler(sched)

	req := httptest.NewRequest(http.MethodPost, "/api/artists/nonexistent/refresh", nil)
	req = withChiURLParam(req, "id", "nonexistent")
	w := httptest.NewRecorder()

	h.RefreshArtist(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
