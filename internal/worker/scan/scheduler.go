package scan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/releasedrop/internal/model"
	"github.com/hitoshi/releasedrop/internal/notify"
	"github.com/hitoshi/releasedrop/internal/repository"
)

// MetricsCollector はスキャン処理のメトリクス収集インターフェース。
type MetricsCollector interface {
	// IncScanRuns はフルラン実行回数をインクリメントする。
	IncScanRuns()
	// IncArtistRefreshErrors はアーティスト単位の同期失敗回数をインクリメントする。
	IncArtistRefreshErrors()
	// AddNewReleases は発見した新着リリース数を加算する。
	AddNewReleases(count int)
	// ObserveScanDuration はフルランの実行時間を記録する。
	ObserveScanDuration(seconds float64)
}

// noopMetrics はメトリクス未設定時のダミー実装。
type noopMetrics struct{}

func (noopMetrics) IncScanRuns()                {}
func (noopMetrics) IncArtistRefreshErrors()     {}
func (noopMetrics) AddNewReleases(int)          {}
func (noopMetrics) ObserveScanDuration(float64) {}

// Scheduler は全フォロー中アーティストのリリースチェックを駆動する。
// 毎日の定時実行とオンデマンド実行の両方に対応し、
// フルランの多重起動と同一アーティストへの同時リフレッシュを排除する。
type Scheduler struct {
	logger       *slog.Logger
	synchronizer *Synchronizer
	artists      repository.ArtistRepository
	dispatcher   *notify.Dispatcher
	metrics      MetricsCollector

	checkTime   string // "HH:MM"
	location    *time.Location
	artistDelay time.Duration

	runMu sync.Mutex // フルランの単一実行保証

	flightMu sync.Mutex
	inFlight map[string]struct{} // リフレッシュ実行中のアーティストID

	lastMu  sync.Mutex
	lastRun *model.RunRecord
}

// NewScheduler はScheduler の新しいインスタンスを生成する。
// metricsがnilの場合は収集なしで動作する。
func NewScheduler(
	logger *slog.Logger,
	synchronizer *Synchronizer,
	artists repository.ArtistRepository,
	dispatcher *notify.Dispatcher,
	metrics MetricsCollector,
	checkTime string,
	location *time.Location,
	artistDelay time.Duration,
) *Scheduler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		logger:       logger,
		synchronizer: synchronizer,
		artists:      artists,
		dispatcher:   dispatcher,
		metrics:      metrics,
		checkTime:    checkTime,
		location:     location,
		artistDelay:  artistDelay,
		inFlight:     make(map[string]struct{}),
	}
}

// Start は毎日の定時実行ループを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("リリースチェックスケジューラを開始しました",
		slog.String("check_time", s.checkTime),
		slog.String("timezone", s.location.String()),
	)

	for {
		next := s.nextRunAt(time.Now().In(s.location))
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("リリースチェックスケジューラを停止しました")
			return
		case <-timer.C:
			if _, err := s.RunAll(ctx); err != nil {
				s.logger.Error("定時リリースチェックの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// nextRunAt は次回実行時刻を計算する。
// 本日の実行時刻を過ぎている場合は翌日となる。
func (s *Scheduler) nextRunAt(now time.Time) time.Time {
	t, err := time.Parse("15:04", s.checkTime)
	if err != nil {
		// 設定ロード時に検証済みのため通常は到達しない
		t, _ = time.Parse("15:04", "09:00")
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, s.location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunAll は全フォロー中アーティストのリリースチェックを1回実行する。
// 別のフルランが実行中の場合はRUN_IN_PROGRESSエラーを返す。
// アーティスト単位の失敗はランレコードに記録され、残りの処理は継続する。
// ラン全体で発見した新着リリースは最後に1回だけまとめて通知される。
func (s *Scheduler) RunAll(ctx context.Context) (*model.RunRecord, error) {
	if !s.runMu.TryLock() {
		return nil, model.NewRunInProgressError()
	}
	defer s.runMu.Unlock()

	start := time.Now()
	s.metrics.IncScanRuns()

	artists, err := s.artists.List(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("リリースチェックのフルランを開始します",
		slog.Int("artist_count", len(artists)),
	)

	record := &model.RunRecord{
		ID:        uuid.New().String(),
		StartedAt: start,
	}
	var batch []notify.BatchItem

	for i, artist := range artists {
		if ctx.Err() != nil {
			break
		}

		outcome := s.refreshForRun(ctx, artist, &batch)
		record.Outcomes = append(record.Outcomes, outcome)
		record.NewReleaseCount += outcome.NewReleases

		// 上流のレート制限を尊重するため、アーティスト間に短い待機を挟む
		if i < len(artists)-1 && s.artistDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.artistDelay):
			}
		}
	}

	record.FinishedAt = time.Now()

	// ランごとに通知は1回だけ。アーティストごとには送らない。
	s.dispatcher.SendBatch(ctx, batch)

	duration := time.Since(start)
	s.metrics.AddNewReleases(record.NewReleaseCount)
	s.metrics.ObserveScanDuration(duration.Seconds())

	s.lastMu.Lock()
	s.lastRun = record
	s.lastMu.Unlock()

	s.logger.Info("リリースチェックのフルランが完了しました",
		slog.Int("artist_count", len(artists)),
		slog.Int("new_releases", record.NewReleaseCount),
		slog.Int("failures", record.FailureCount()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return record, nil
}

// refreshForRun はフルラン内での1アーティストの同期を行い、結果を記録する。
func (s *Scheduler) refreshForRun(ctx context.Context, artist *model.Artist, batch *[]notify.BatchItem) model.ArtistOutcome {
	outcome := model.ArtistOutcome{
		ArtistID:   artist.ID,
		ArtistName: artist.Name,
	}

	if !s.acquireArtist(artist.ID) {
		// 同一アーティストのオンデマンドリフレッシュが実行中
		outcome.Error = "リフレッシュが既に実行中のためスキップしました"
		return outcome
	}
	defer s.releaseArtist(artist.ID)

	result, err := s.synchronizer.Refresh(ctx, artist)
	if err != nil {
		s.metrics.IncArtistRefreshErrors()
		outcome.Error = err.Error()
		s.logger.Error("アーティストの同期に失敗しました",
			slog.String("artist_id", artist.ID),
			slog.String("artist_name", artist.Name),
			slog.String("error", err.Error()),
		)
		return outcome
	}

	outcome.NewReleases = len(result.NewReleases)
	for _, release := range result.NewReleases {
		*batch = append(*batch, notify.BatchItem{
			ArtistName: artist.Name,
			Release:    release,
		})
	}
	return outcome
}

// RefreshArtist は単一アーティストのオンデマンド同期を行う。
// 同一アーティストのリフレッシュが実行中の場合はREFRESH_IN_PROGRESSエラーを返す。
// 別アーティストを処理中のフルランとは並行して実行できる。
func (s *Scheduler) RefreshArtist(ctx context.Context, artistID string) (*RefreshResult, error) {
	artist, err := s.artists.FindByID(ctx, artistID)
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, model.NewArtistNotFoundError(artistID)
	}

	if !s.acquireArtist(artist.ID) {
		return nil, model.NewRefreshInProgressError(artist.ID)
	}
	defer s.releaseArtist(artist.ID)

	return s.synchronizer.Refresh(ctx, artist)
}

// LastRun は直近のフルランの記録を返す。未実行の場合はnil。
func (s *Scheduler) LastRun() *model.RunRecord {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastRun
}

func (s *Scheduler) acquireArtist(artistID string) bool {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	if _, ok := s.inFlight[artistID]; ok {
		return false
	}
	s.inFlight[artistID] = struct{}{}
	return true
}

func (s *Scheduler) releaseArtist(artistID string) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	delete(s.inFlight, artistID)
}
