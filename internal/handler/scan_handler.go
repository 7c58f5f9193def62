package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/releasedrop/internal/model"
	"github.com/hitoshi/releasedrop/internal/worker/scan"
)

// ScanSchedulerInterface はスキャンハンドラーが必要とするスケジューラインターフェース。
type ScanSchedulerInterface interface {
	// RunAll は全アーティストのフルランを実行する。
	RunAll(ctx context.Context) (*model.RunRecord, error)
	// RefreshArtist は単一アーティストのオンデマンド同期を行う。
	RefreshArtist(ctx context.Context, artistID string) (*scan.RefreshResult, error)
	// LastRun は直近のフルランの記録を返す。未実行の場合はnil。
	LastRun() *model.RunRecord
}

// ScanHandler はスキャン実行のHTTPハンドラー。
type ScanHandler struct {
	scheduler ScanSchedulerInterface
}

// NewScanHandler はScanHandlerを生成する。
func NewScanHandler(scheduler ScanSchedulerInterface) *ScanHandler {
	return &ScanHandler{
		scheduler: scheduler,
	}
}

// runRecordResponse はフルラン記録のAPIレスポンス。
type runRecordResponse struct {
	ID             string                  `json:"id"`
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     time.Time               `json:"finished_at"`
	ArtistsChecked int                     `json:"artists_checked"`
	NewReleases    int                     `json:"new_releases"`
	Failures       int                     `json:"failures"`
	Outcomes       []artistOutcomeResponse `json:"outcomes"`
}

// artistOutcomeResponse はフルラン中の1アーティストの処理結果。
type artistOutcomeResponse struct {
	ArtistID    string `json:"artist_id"`
	ArtistName  string `json:"artist_name"`
	NewReleases int    `json:"new_releases"`
	Error       string `json:"error,omitempty"`
}

// refreshResponse は単一アーティスト同期のAPIレスポンス。
type refreshResponse struct {
	ArtistID      string            `json:"artist_id"`
	NewReleases   int               `json:"new_releases"`
	FailedInserts int               `json:"failed_inserts"`
	Releases      []releaseResponse `json:"releases"`
}

// RunAll は全アーティストのフルランを手動実行する。
// POST /api/scan/run
func (h *ScanHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	record, err := h.scheduler.RunAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRunRecordResponse(record))
}

// LastRun は直近のフルランの記録を取得する。
// GET /api/scan/last
func (h *ScanHandler) LastRun(w http.ResponseWriter, r *http.Request) {
	record := h.scheduler.LastRun()
	if record == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	writeJSON(w, http.StatusOK, toRunRecordResponse(record))
}

// RefreshArtist は単一アーティストのオンデマンド同期を実行する。
// POST /api/artists/:id/refresh
func (h *ScanHandler) RefreshArtist(w http.ResponseWriter, r *http.Request) {
	artistID := chi.URLParam(r, "id")

	result, err := h.scheduler.RefreshArtist(r.Context(), artistID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		ArtistID:      artistID,
		NewReleases:   len(result.NewReleases),
		FailedInserts: result.FailedInserts,
		Releases:      toReleaseResponses(result.NewReleases),
	})
}

// toRunRecordResponse はmodel.RunRecordからAPIレスポンスに変換する。
func toRunRecordResponse(record *model.RunRecord) runRecordResponse {
	outcomes := make([]artistOutcomeResponse, 0, len(record.Outcomes))
	for i := range record.Outcomes {
		o := &record.Outcomes[i]
		outcomes = append(outcomes, artistOutcomeResponse{
			ArtistID:    o.ArtistID,
			ArtistName:  o.ArtistName,
			NewReleases: o.NewReleases,
			Error:       o.Error,
		})
	}
	return runRecordResponse{
		ID:             record.ID,
		StartedAt:      record.StartedAt,
		FinishedAt:     record.FinishedAt,
		ArtistsChecked: len(record.Outcomes),
		NewReleases:    record.NewReleaseCount,
		Failures:       record.FailureCount(),
		Outcomes:       outcomes,
	}
}
