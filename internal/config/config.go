package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Spotify（カタログ）
	SpotifyClientID     string
	SpotifyClientSecret string

	// Last.fm（リスニング履歴）
	LastfmAPIKey   string
	LastfmUsername string

	// Jellyfin（ライブラリ）
	JellyfinURL    string
	JellyfinAPIKey string

	// Plex（ライブラリ）
	PlexURL   string
	PlexToken string

	// 通知
	NtfyURL      string
	NtfyTopic    string
	NtfyUsername string
	NtfyPassword string
	GotifyURL    string
	GotifyToken  string

	// スキャン
	ReleaseCheckTime  string // HH:MM形式
	Timezone          string
	ReleaseMonthsBack int
	ArtistDelay       time.Duration
	CatalogTimeout    time.Duration
	LibraryTimeout    time.Duration

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort        string
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// 任意の連携（Last.fm、Jellyfin、Plex、通知）は未設定でもエラーにならず、
// 各連携が未設定として報告される。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SpotifyClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	if cfg.SpotifyClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}

	cfg.SpotifyClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	if cfg.SpotifyClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional integrations
	cfg.LastfmAPIKey = os.Getenv("LASTFM_API_KEY")
	cfg.LastfmUsername = os.Getenv("LASTFM_USERNAME")
	cfg.JellyfinURL = os.Getenv("JELLYFIN_URL")
	cfg.JellyfinAPIKey = os.Getenv("JELLYFIN_API_KEY")
	cfg.PlexURL = os.Getenv("PLEX_URL")
	cfg.PlexToken = os.Getenv("PLEX_TOKEN")
	cfg.NtfyURL = os.Getenv("NTFY_URL")
	cfg.NtfyTopic = os.Getenv("NTFY_TOPIC")
	cfg.NtfyUsername = os.Getenv("NTFY_USERNAME")
	cfg.NtfyPassword = os.Getenv("NTFY_PASSWORD")
	cfg.GotifyURL = os.Getenv("GOTIFY_URL")
	cfg.GotifyToken = os.Getenv("GOTIFY_TOKEN")

	// Optional fields with defaults
	cfg.ReleaseCheckTime = getEnvString("RELEASE_CHECK_TIME", "09:00")
	cfg.Timezone = getEnvString("TIMEZONE", "UTC")
	cfg.ReleaseMonthsBack = getEnvInt("RELEASE_MONTHS_BACK", 3)
	cfg.ArtistDelay = getEnvDuration("ARTIST_DELAY", 2*time.Second)
	cfg.CatalogTimeout = getEnvDuration("CATALOG_TIMEOUT", 10*time.Second)
	cfg.LibraryTimeout = getEnvDuration("LIBRARY_TIMEOUT", 30*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if err := validateCheckTime(cfg.ReleaseCheckTime); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateCheckTime はHH:MM形式の時刻文字列を検証する。
func validateCheckTime(v string) error {
	if _, err := time.Parse("15:04", v); err != nil {
		return fmt.Errorf("RELEASE_CHECK_TIME must be in HH:MM format, got %q", v)
	}
	return nil
}

// LastfmConfigured はLast.fm連携が設定済みかを返す。
func (c *Config) LastfmConfigured() bool {
	return c.LastfmAPIKey != "" && c.LastfmUsername != ""
}

// JellyfinConfigured はJellyfin連携が設定済みかを返す。
func (c *Config) JellyfinConfigured() bool {
	return c.JellyfinURL != "" && c.JellyfinAPIKey != ""
}

// PlexConfigured はPlex連携が設定済みかを返す。
func (c *Config) PlexConfigured() bool {
	return c.PlexURL != "" && c.PlexToken != ""
}

// NtfyConfigured はntfy連携が設定済みかを返す。
func (c *Config) NtfyConfigured() bool {
	return c.NtfyURL != "" && c.NtfyTopic != ""
}

// GotifyConfigured はGotify連携が設定済みかを返す。
func (c *Config) GotifyConfigured() bool {
	return c.GotifyURL != "" && c.GotifyToken != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
