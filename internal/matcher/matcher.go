package matcher

import (
	"sort"

	"github.com/hitoshi/releasedrop/internal/model"
)

// Thresholds は照合の判定に使う閾値。
// 実データでの検証に基づき調整可能な設定値として扱う。
type Thresholds struct {
	// CandidateFloor はアルバム候補として考慮する最低類似度。
	CandidateFloor float64
	// SimilarThreshold は「類似一致」と判定する最低類似度。
	SimilarThreshold float64
	// TrackThreshold はトラックを「所持」と判定する最低類似度。
	TrackThreshold float64
}

// DefaultThresholds は既定の閾値を返す。
func DefaultThresholds() Thresholds {
	return Thresholds{
		CandidateFloor:   0.6,
		SimilarThreshold: 0.85,
		TrackThreshold:   0.90,
	}
}

// Engine はリリースとライブラリ候補の照合エンジン。
// 状態を持たず、同一入力に対して常に同一の結果を返す。
type Engine struct {
	thresholds Thresholds
}

// NewEngine は指定した閾値で照合エンジンを作成する。
func NewEngine(thresholds Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// scoredCandidate は類似度計算済みの候補。
type scoredCandidate struct {
	album      model.LibraryAlbum
	score      float64
	trackDelta int // カタログとのトラック数の差の絶対値
	order      int // 入力順（安定ソート用）
}

// Match はリリースをライブラリ候補と照合し結果を返す。
// canonicalTracksはカタログ上の正式なトラックリストで、
// 全トラックが所持済みか欠落かのいずれか一方に必ず分類される。
func (e *Engine) Match(release *model.Release, canonicalTracks []model.Track, candidates []model.LibraryAlbum, library model.LibraryKind) model.MatchResult {
	result := model.MatchResult{
		ReleaseID: release.ID,
		Library:   library,
		MatchType: model.MatchNone,
	}

	releaseName := Normalize(release.Name)

	var scored []scoredCandidate
	bestObserved := 0.0
	for i, cand := range candidates {
		score := Similarity(releaseName, Normalize(cand.Name))
		if score > bestObserved {
			bestObserved = score
		}
		if score < e.thresholds.CandidateFloor {
			continue
		}
		delta := cand.TrackCount - release.TotalTracks
		if delta < 0 {
			delta = -delta
		}
		scored = append(scored, scoredCandidate{
			album:      cand,
			score:      score,
			trackDelta: delta,
			order:      i,
		})
	}

	if len(scored) == 0 {
		// 閾値未満の候補しかない場合も観測した最高スコアを返す
		result.Confidence = bestObserved
		result.MissingTracks = trackNames(canonicalTracks)
		result.AvailableTracks = []string{}
		return result
	}

	// 類似度降順、同点時はトラック数が近い候補、さらに同点なら入力順
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].trackDelta != scored[j].trackDelta {
			return scored[i].trackDelta < scored[j].trackDelta
		}
		return scored[i].order < scored[j].order
	})

	best := scored[0]

	switch {
	case best.score == 1.0 && best.album.TrackCount == release.TotalTracks:
		result.MatchType = model.MatchExact
		result.Confidence = 1.0
		result.InLibrary = true
	case best.score >= e.thresholds.SimilarThreshold:
		result.MatchType = model.MatchSimilar
		result.Confidence = best.score
		result.InLibrary = true
	default:
		result.Confidence = best.score
		result.MissingTracks = trackNames(canonicalTracks)
		result.AvailableTracks = []string{}
		return result
	}

	result.LibraryAlbumID = best.album.ID
	result.LibraryAlbumName = best.album.Name
	result.AvailableTracks, result.MissingTracks = e.matchTracks(canonicalTracks, best.album.Tracks)
	return result
}

// matchTracks はカタログの各トラックを候補アルバムのトラックと照合し、
// 所持済みと欠落に分類する。各トラックは必ずどちらか一方にのみ入る。
func (e *Engine) matchTracks(canonical []model.Track, libraryTracks []string) (available, missing []string) {
	available = []string{}
	missing = []string{}

	normalized := make([]string, len(libraryTracks))
	for i, name := range libraryTracks {
		normalized[i] = Normalize(name)
	}

	for _, track := range canonical {
		trackName := Normalize(track.Name)
		bestScore := 0.0
		for _, candName := range normalized {
			if score := Similarity(trackName, candName); score > bestScore {
				bestScore = score
			}
		}
		if bestScore >= e.thresholds.TrackThreshold {
			available = append(available, track.Name)
		} else {
			missing = append(missing, track.Name)
		}
	}
	return available, missing
}

func trackNames(tracks []model.Track) []string {
	names := make([]string, len(tracks))
	for i, t := range tracks {
		names[i] = t.Name
	}
	return names
}
