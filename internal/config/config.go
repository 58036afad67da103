package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	SourcesFile string `mapstructure:"sources_file"`
	MirrorsFile string `mapstructure:"mirrors_file"`
	StatePath   string `mapstructure:"state_path"`

	// Schedule is a cron spec for self-scheduled deployments. Empty means a
	// single dispatch pass per process invocation (external timer, e.g. cron
	// or a systemd timer, drives the cadence).
	Schedule string `mapstructure:"schedule"`

	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID string `mapstructure:"telegram_chat_id"`

	SiteAPIURL   string `mapstructure:"site_api_url"`
	SiteAPIToken string `mapstructure:"site_api_token"`

	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	LogoPath       string `mapstructure:"logo_path"`
	MaxImageWidth  int    `mapstructure:"max_image_width"`
	MaxImageHeight int    `mapstructure:"max_image_height"`
	JPEGQuality    int    `mapstructure:"jpeg_quality"`

	// RequireArticleImage makes a composited image a hard precondition of the
	// article path: a cycle whose image cannot be produced aborts before any
	// sink is called.
	RequireArticleImage bool `mapstructure:"require_article_image"`

	ArchiveEnabled  bool   `mapstructure:"archive_enabled"`
	ArchiveDataDir  string `mapstructure:"archive_data_dir"`
	ArchiveIndexDir string `mapstructure:"archive_index_dir"`
	ArchivePageSize int    `mapstructure:"archive_page_size"`

	TimezoneName string         `mapstructure:"timezone"`
	Timezone     *time.Location `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "nashra-dispatch")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("mirrors_file", "")
	v.SetDefault("state_path", "./data/state.db")
	v.SetDefault("schedule", "")
	// Secrets have no sensible default, but every key needs one registered:
	// AutomaticEnv only resolves keys viper already knows about, so an
	// env-only key without a default never survives Unmarshal.
	v.SetDefault("telegram_token", "")
	v.SetDefault("telegram_chat_id", "")
	v.SetDefault("site_api_url", "")
	v.SetDefault("site_api_token", "")
	v.SetDefault("http_timeout_seconds", 25)
	v.SetDefault("logo_path", "./logo.png")
	v.SetDefault("max_image_width", 1280)
	v.SetDefault("max_image_height", 1280)
	v.SetDefault("jpeg_quality", 85)
	v.SetDefault("require_article_image", false)
	v.SetDefault("archive_enabled", true)
	v.SetDefault("archive_data_dir", "./data/articles")
	v.SetDefault("archive_index_dir", "./global_index")
	v.SetDefault("archive_page_size", 500)
	v.SetDefault("timezone", "Africa/Casablanca")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		return nil, fmt.Errorf("telegram_token and telegram_chat_id are required")
	}
	if cfg.SiteAPIURL == "" {
		return nil, fmt.Errorf("site_api_url is required")
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	if cfg.MaxImageWidth <= 0 || cfg.MaxImageHeight <= 0 {
		return nil, fmt.Errorf("invalid image bounds (must be positive)")
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		return nil, fmt.Errorf("invalid jpeg_quality (must be 1-100)")
	}
	if cfg.ArchivePageSize <= 0 {
		return nil, fmt.Errorf("invalid archive_page_size (must be positive)")
	}

	loc, err := time.LoadLocation(cfg.TimezoneName)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.TimezoneName, err)
	}
	cfg.Timezone = loc

	return &cfg, nil
}
