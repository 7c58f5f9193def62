package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/releasedrop/internal/model"
)

// uniqueViolation はPostgreSQLのユニーク制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresReleaseRepo はReleaseRepositoryのPostgreSQL実装。
type PostgresReleaseRepo struct {
	db *sql.DB
}

var _ ReleaseRepository = (*PostgresReleaseRepo)(nil)

// NewPostgresReleaseRepo は新しいPostgresReleaseRepoを作成する。
func NewPostgresReleaseRepo(db *sql.DB) *PostgresReleaseRepo {
	return &PostgresReleaseRepo{db: db}
}

const releaseColumns = `id, artist_id, spotify_id, name, release_type, release_date,
	spotify_url, image_url, total_tracks, is_new, discovered_at, created_at, updated_at`

// FindByID は指定IDのリリースを取得する。
func (r *PostgresReleaseRepo) FindByID(ctx context.Context, id string) (*model.Release, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases WHERE id = $1`
	release, err := r.scanRelease(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("リリースの取得に失敗しました: %w", err)
	}
	return release, nil
}

// Create はリリースを作成する。
func (r *PostgresReleaseRepo) Create(ctx context.Context, release *model.Release) error {
	if release.ID == "" {
		release.ID = uuid.New().String()
	}
	now := time.Now()
	if release.DiscoveredAt.IsZero() {
		release.DiscoveredAt = now
	}
	if release.CreatedAt.IsZero() {
		release.CreatedAt = now
	}
	release.UpdatedAt = now

	query := `
		INSERT INTO releases (id, artist_id, spotify_id, name, release_type, release_date,
			spotify_url, image_url, total_tracks, is_new, discovered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(ctx, query,
		release.ID, release.ArtistID, release.SpotifyID, release.Name,
		string(release.Type), release.ReleaseDate,
		release.SpotifyURL, nullString(release.ImageURL),
		release.TotalTracks, release.IsNew,
		release.DiscoveredAt, release.CreatedAt, release.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateRelease
		}
		return fmt.Errorf("リリースの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByArtist はアーティストの全リリースをリリース日降順で返す。
func (r *PostgresReleaseRepo) ListByArtist(ctx context.Context, artistID string) ([]*model.Release, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases
		WHERE artist_id = $1 ORDER BY release_date DESC, id`
	rows, err := r.db.QueryContext(ctx, query, artistID)
	if err != nil {
		return nil, fmt.Errorf("リリース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	releases, err := r.scanReleases(rows)
	if err != nil {
		return nil, fmt.Errorf("リリース一覧の読み取りに失敗しました: %w", err)
	}
	return releases, nil
}

// List はフィルタ条件に一致するリリースを返す。
func (r *PostgresReleaseRepo) List(ctx context.Context, filter model.ReleaseFilter) ([]*model.Release, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases WHERE 1=1`
	var args []interface{}

	if filter.OnlyNew {
		query += ` AND is_new = TRUE`
	}
	if filter.ArtistID != "" {
		args = append(args, filter.ArtistID)
		query += fmt.Sprintf(` AND artist_id = $%d`, len(args))
	}
	query += ` ORDER BY release_date DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("リリース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	releases, err := r.scanReleases(rows)
	if err != nil {
		return nil, fmt.Errorf("リリース一覧の読み取りに失敗しました: %w", err)
	}
	return releases, nil
}

// ListSince は指定日以降のリリースを返す。
func (r *PostgresReleaseRepo) ListSince(ctx context.Context, sinceDate string, limit int) ([]*model.Release, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases
		WHERE release_date >= $1 ORDER BY release_date DESC, id LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, sinceDate, limit)
	if err != nil {
		return nil, fmt.Errorf("最新リリースの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	releases, err := r.scanReleases(rows)
	if err != nil {
		return nil, fmt.Errorf("最新リリースの読み取りに失敗しました: %w", err)
	}
	return releases, nil
}

// MarkSeen は指定リリースのis_newをfalseにする。
func (r *PostgresReleaseRepo) MarkSeen(ctx context.Context, id string) (bool, error) {
	query := `UPDATE releases SET is_new = FALSE, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("既読化に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("既読化の結果確認に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// MarkAllSeen は全リリースのis_newをfalseにする。
func (r *PostgresReleaseRepo) MarkAllSeen(ctx context.Context) (int, error) {
	query := `UPDATE releases SET is_new = FALSE, updated_at = NOW() WHERE is_new = TRUE`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("一括既読化に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("一括既読化の結果確認に失敗しました: %w", err)
	}
	return int(affected), nil
}

// Stats は指定日以降のリリースの集計情報を返す。
func (r *PostgresReleaseRepo) Stats(ctx context.Context, sinceDate string) (*model.ReleaseStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_new),
			COUNT(*) FILTER (WHERE release_type = 'album'),
			COUNT(*) FILTER (WHERE release_type = 'single'),
			COUNT(*) FILTER (WHERE release_type = 'ep')
		FROM releases
		WHERE release_date >= $1`
	var stats model.ReleaseStats
	err := r.db.QueryRowContext(ctx, query, sinceDate).Scan(
		&stats.TotalReleases, &stats.NewReleases,
		&stats.Albums, &stats.Singles, &stats.EPs)
	if err != nil {
		return nil, fmt.Errorf("リリース統計の取得に失敗しました: %w", err)
	}
	return &stats, nil
}

func (r *PostgresReleaseRepo) scanRelease(row *sql.Row) (*model.Release, error) {
	var release model.Release
	var releaseType string
	var spotifyURL, imageURL sql.NullString

	err := row.Scan(&release.ID, &release.ArtistID, &release.SpotifyID, &release.Name,
		&releaseType, &release.ReleaseDate, &spotifyURL, &imageURL,
		&release.TotalTracks, &release.IsNew,
		&release.DiscoveredAt, &release.CreatedAt, &release.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	release.Type = model.ReleaseType(releaseType)
	release.SpotifyURL = spotifyURL.String
	release.ImageURL = imageURL.String
	return &release, nil
}

func (r *PostgresReleaseRepo) scanReleases(rows *sql.Rows) ([]*model.Release, error) {
	var releases []*model.Release
	for rows.Next() {
		var release model.Release
		var releaseType string
		var spotifyURL, imageURL sql.NullString

		err := rows.Scan(&release.ID, &release.ArtistID, &release.SpotifyID, &release.Name,
			&releaseType, &release.ReleaseDate, &spotifyURL, &imageURL,
			&release.TotalTracks, &release.IsNew,
			&release.DiscoveredAt, &release.CreatedAt, &release.UpdatedAt)
		if err != nil {
			return nil, err
		}

		release.Type = model.ReleaseType(releaseType)
		release.SpotifyURL = spotifyURL.String
		release.ImageURL = imageURL.String
		releases = append(releases, &release)
	}
	return releases, rows.Err()
}
