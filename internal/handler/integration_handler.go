package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/releasedrop/internal/lastfm"
	"github.com/hitoshi/releasedrop/internal/middleware"
	"github.com/hitoshi/releasedrop/internal/model"
	"github.com/hitoshi/releasedrop/internal/notify"
)

// defaultImportLimit はリスニング履歴インポートの既定件数。
const defaultImportLimit = 50

// LibraryCheckerInterface は統合ハンドラーが必要とするライブラリ照合インターフェース。
type LibraryCheckerInterface interface {
	// Check はリリースとライブラリの照合を行う。
	Check(ctx context.Context, releaseID string, kind model.LibraryKind) (*model.MatchResult, error)
	// Configured はライブラリが設定済みかを返す。
	Configured(kind model.LibraryKind) bool
	// Status は設定済みライブラリの疎通状況を返す。
	Status(ctx context.Context) map[model.LibraryKind]error
}

// ImporterInterface は統合ハンドラーが必要とするインポートエンジンインターフェース。
type ImporterInterface interface {
	// Available はリスニング履歴ソースが設定済みかを返す。
	Available() bool
	// ImportTopArtists は上位アーティストを取得してフォローする。
	ImportTopArtists(ctx context.Context, period string, limit int) (*model.ImportReport, error)
}

// NotifierSource は名前から通知サービスを引くインターフェース。
type NotifierSource interface {
	// Notifier は指定名の通知サービスを返す。未設定の場合はnil。
	Notifier(name string) notify.Notifier
}

// IntegrationHandler は外部サービス統合のHTTPハンドラー。
type IntegrationHandler struct {
	checker   LibraryCheckerInterface
	importer  ImporterInterface
	notifiers NotifierSource
}

// NewIntegrationHandler はIntegrationHandlerを生成する。
func NewIntegrationHandler(checker LibraryCheckerInterface, importer ImporterInterface, notifiers NotifierSource) *IntegrationHandler {
	return &IntegrationHandler{
		checker:   checker,
		importer:  importer,
		notifiers: notifiers,
	}
}

// integrationStatusResponse は統合ステータスのAPIレスポンス。
type integrationStatusResponse struct {
	JellyfinAvailable bool              `json:"jellyfin_available"`
	PlexAvailable     bool              `json:"plex_available"`
	GotifyConfigured  bool              `json:"gotify_configured"`
	NtfyConfigured    bool              `json:"ntfy_configured"`
	LastFmConfigured  bool              `json:"lastfm_configured"`
	Errors            map[string]string `json:"errors"`
}

// libraryCheckResponse はライブラリ照合結果のAPIレスポンス。
type libraryCheckResponse struct {
	ReleaseID        string   `json:"release_id"`
	Library          string   `json:"library"`
	InLibrary        bool     `json:"in_library"`
	MatchType        string   `json:"match_type"`
	MatchConfidence  float64  `json:"match_confidence"`
	AvailableTracks  []string `json:"available_tracks"`
	MissingTracks    []string `json:"missing_tracks"`
	LibraryAlbumID   string   `json:"library_album_id,omitempty"`
	LibraryAlbumName string   `json:"library_album_name,omitempty"`
}

// importRequest はリスニング履歴インポートリクエストのボディ。
type importRequest struct {
	Period string `json:"period"`
	Limit  int    `json:"limit"`
}

// importResponse はリスニング履歴インポートのAPIレスポンス。
type importResponse struct {
	TotalArtists    int      `json:"total_artists"`
	NewArtists      int      `json:"new_artists"`
	ExistingArtists int      `json:"existing_artists"`
	ArtistsAdded    []string `json:"artists_added"`
	Failures        []string `json:"failures"`
}

// notifyTestResponse は通知テストのAPIレスポンス。
type notifyTestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Status は全統合サービスの疎通状況を取得する。
// GET /api/integrations/status
func (h *IntegrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	statuses := h.checker.Status(r.Context())

	resp := integrationStatusResponse{
		GotifyConfigured: h.notifiers.Notifier("gotify") != nil,
		NtfyConfigured:   h.notifiers.Notifier("ntfy") != nil,
		LastFmConfigured: h.importer.Available(),
		Errors:           map[string]string{},
	}
	for kind, err := range statuses {
		available := err == nil
		switch kind {
		case model.LibraryJellyfin:
			resp.JellyfinAvailable = available
		case model.LibraryPlex:
			resp.PlexAvailable = available
		}
		if err != nil {
			resp.Errors[string(kind)] = err.Error()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// CheckLibrary はリリースとパーソナルライブラリの照合を行う。
// POST /api/integrations/:service/check/:releaseID
func (h *IntegrationHandler) CheckLibrary(w http.ResponseWriter, r *http.Request) {
	library := chi.URLParam(r, "service")
	releaseID := chi.URLParam(r, "releaseID")

	if !model.ValidLibraryKind(library) {
		apiErr := model.NewInvalidLibraryKindError(library)
		middleware.WriteErrorResponse(w, middleware.StatusForError(apiErr), apiErr)
		return
	}

	result, err := h.checker.Check(r.Context(), releaseID, model.LibraryKind(library))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, libraryCheckResponse{
		ReleaseID:        result.ReleaseID,
		Library:          string(result.Library),
		InLibrary:        result.InLibrary,
		MatchType:        string(result.MatchType),
		MatchConfidence:  result.Confidence,
		AvailableTracks:  result.AvailableTracks,
		MissingTracks:    result.MissingTracks,
		LibraryAlbumID:   result.LibraryAlbumID,
		LibraryAlbumName: result.LibraryAlbumName,
	})
}

// Import はリスニング履歴の上位アーティストを一括フォローする。
// POST /api/integrations/lastfm/import
func (h *IntegrationHandler) Import(w http.ResponseWriter, r *http.Request) {
	req := importRequest{Period: "overall", Limit: defaultImportLimit}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeInvalidBodyError(w)
			return
		}
	}
	if req.Period == "" {
		req.Period = "overall"
	}
	if req.Limit <= 0 {
		req.Limit = defaultImportLimit
	}

	if !lastfm.ValidPeriod(req.Period) {
		apiErr := model.NewInvalidPeriodError(req.Period)
		middleware.WriteErrorResponse(w, middleware.StatusForError(apiErr), apiErr)
		return
	}

	report, err := h.importer.ImportTopArtists(r.Context(), req.Period, req.Limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, importResponse{
		TotalArtists:    report.Total,
		NewArtists:      report.Added,
		ExistingArtists: report.AlreadyFollowing,
		ArtistsAdded:    report.ArtistsAdded,
		Failures:        report.Failures,
	})
}

// TestNotifier は通知サービスへのテスト通知を送信する。
// POST /api/integrations/ntfy/test, POST /api/integrations/gotify/test
func (h *IntegrationHandler) TestNotifier(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "service")

	notifier := h.notifiers.Notifier(name)
	if notifier == nil {
		apiErr := model.NewNotifierNotConfiguredError(name)
		middleware.WriteErrorResponse(w, middleware.StatusForError(apiErr), apiErr)
		return
	}

	if err := notifier.SendTest(r.Context()); err != nil {
		apiErr := model.NewUpstreamUnavailableError(name, err.Error())
		middleware.WriteErrorResponse(w, middleware.StatusForError(apiErr), apiErr)
		return
	}

	writeJSON(w, http.StatusOK, notifyTestResponse{
		Success: true,
		Message: name + "へのテスト通知を送信しました",
	})
}
