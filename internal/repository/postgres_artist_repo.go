package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/releasedrop/internal/model"
)

// PostgresArtistRepo はArtistRepositoryのPostgreSQL実装。
type PostgresArtistRepo struct {
	db *sql.DB
}

var _ ArtistRepository = (*PostgresArtistRepo)(nil)

// NewPostgresArtistRepo は新しいPostgresArtistRepoを作成する。
func NewPostgresArtistRepo(db *sql.DB) *PostgresArtistRepo {
	return &PostgresArtistRepo{db: db}
}

const artistColumns = `id, spotify_id, name, spotify_url, image_url, added_at, last_checked`

// FindByID は指定IDのアーティストを取得する。
func (r *PostgresArtistRepo) FindByID(ctx context.Context, id string) (*model.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE id = $1`
	artist, err := r.scanArtist(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("アーティストの取得に失敗しました: %w", err)
	}
	return artist, nil
}

// FindBySpotifyID はSpotify IDでアーティストを検索する。
func (r *PostgresArtistRepo) FindBySpotifyID(ctx context.Context, spotifyID string) (*model.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE spotify_id = $1`
	artist, err := r.scanArtist(r.db.QueryRowContext(ctx, query, spotifyID))
	if err != nil {
		return nil, fmt.Errorf("アーティストの検索に失敗しました: %w", err)
	}
	return artist, nil
}

// FindByName は表示名でアーティストを検索する。
func (r *PostgresArtistRepo) FindByName(ctx context.Context, name string) (*model.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE LOWER(name) = LOWER($1) LIMIT 1`
	artist, err := r.scanArtist(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		return nil, fmt.Errorf("アーティストの検索に失敗しました: %w", err)
	}
	return artist, nil
}

// Create はアーティストを作成する。
func (r *PostgresArtistRepo) Create(ctx context.Context, artist *model.Artist) error {
	if artist.ID == "" {
		artist.ID = uuid.New().String()
	}
	if artist.AddedAt.IsZero() {
		artist.AddedAt = time.Now()
	}

	query := `
		INSERT INTO artists (id, spotify_id, name, spotify_url, image_url, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	// spotify_urlはNOT NULL列。空文字列はそのまま格納する。
	_, err := r.db.ExecContext(ctx, query,
		artist.ID, artist.SpotifyID, artist.Name,
		artist.SpotifyURL, nullString(artist.ImageURL), artist.AddedAt)
	if err != nil {
		return fmt.Errorf("アーティストの作成に失敗しました: %w", err)
	}
	return nil
}

// List は全フォロー中アーティストを返す。
func (r *PostgresArtistRepo) List(ctx context.Context) ([]*model.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("アーティスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	artists, err := r.scanArtists(rows)
	if err != nil {
		return nil, fmt.Errorf("アーティスト一覧の読み取りに失敗しました: %w", err)
	}
	return artists, nil
}

// UpdateLastChecked は最終チェック日時を更新する。
func (r *PostgresArtistRepo) UpdateLastChecked(ctx context.Context, id string, checkedAt time.Time) error {
	query := `UPDATE artists SET last_checked = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, checkedAt, id)
	if err != nil {
		return fmt.Errorf("最終チェック日時の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete はアーティストを削除する。
func (r *PostgresArtistRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM artists WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("アーティストの削除に失敗しました: %w", err)
	}
	return nil
}

// Count はフォロー中アーティスト数を返す。
func (r *PostgresArtistRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artists`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("アーティスト数の取得に失敗しました: %w", err)
	}
	return count, nil
}

func (r *PostgresArtistRepo) scanArtist(row *sql.Row) (*model.Artist, error) {
	var artist model.Artist
	var spotifyURL, imageURL sql.NullString
	var lastChecked sql.NullTime

	err := row.Scan(&artist.ID, &artist.SpotifyID, &artist.Name,
		&spotifyURL, &imageURL, &artist.AddedAt, &lastChecked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	artist.SpotifyURL = spotifyURL.String
	artist.ImageURL = imageURL.String
	if lastChecked.Valid {
		artist.LastChecked = &lastChecked.Time
	}
	return &artist, nil
}

func (r *PostgresArtistRepo) scanArtists(rows *sql.Rows) ([]*model.Artist, error) {
	var artists []*model.Artist
	for rows.Next() {
		var artist model.Artist
		var spotifyURL, imageURL sql.NullString
		var lastChecked sql.NullTime

		err := rows.Scan(&artist.ID, &artist.SpotifyID, &artist.Name,
			&spotifyURL, &imageURL, &artist.AddedAt, &lastChecked)
		if err != nil {
			return nil, err
		}

		artist.SpotifyURL = spotifyURL.String
		artist.ImageURL = imageURL.String
		if lastChecked.Valid {
			artist.LastChecked = &lastChecked.Time
		}
		artists = append(artists, &artist)
	}
	return artists, rows.Err()
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
