// Package config provides configuration loading, validation, and management
// for the chattop bot. It reads an optional YAML file, CHATTOP_* environment
// variables and a .env file over built-in defaults, then validates the result.
package config

import (
	"errors"
	"time"

	"github.com/go-telegram/bot/models"
)

// ErrValidation is returned when the loaded configuration fails validation.
var ErrValidation = errors.New("configuration validation error")

// Config defines the application configuration parameters for every component.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Spam        SpamConfig        `mapstructure:"spam"`
	Quiz        QuizConfig        `mapstructure:"quiz"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Welcome     WelcomeConfig     `mapstructure:"welcome"`
	ImageSearch ImageSearchConfig `mapstructure:"image_search"`
	ImageGen    ImageGenConfig    `mapstructure:"image_gen"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Messages    MessagesConfig    `mapstructure:"messages"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token          string        `mapstructure:"token"           validate:"required"`
	OwnerID        int64         `mapstructure:"owner_id"        validate:"required,gt=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=5m"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"    validate:"min=1s,max=5m"`

	// BotInfo is populated from getMe at startup.
	BotInfo *models.User `mapstructure:"-"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"               validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"min=0"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"     validate:"min=100ms,max=5m"`
}

// SpamConfig holds the flood guard thresholds.
type SpamConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	MessageLimit  int           `mapstructure:"message_limit"  validate:"min=2,max=100"`
	Window        time.Duration `mapstructure:"window"         validate:"min=1s,max=1h"`
	BlockDuration time.Duration `mapstructure:"block_duration" validate:"min=1s,max=24h"`
}

// QuizConfig holds quiz broadcast settings.
type QuizConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Cooldown         time.Duration `mapstructure:"cooldown"          validate:"min=1s"`
	LockTimeout      time.Duration `mapstructure:"lock_timeout"      validate:"min=1s,gtfield=BroadcastTimeout"`
	TriviaURL        string        `mapstructure:"trivia_url"        validate:"required,url"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"     validate:"min=1s,max=2m"`
	BroadcastTimeout time.Duration `mapstructure:"broadcast_timeout" validate:"min=1s"`
	Concurrency      int           `mapstructure:"concurrency"       validate:"min=1,max=30"`
	OpenPeriod       int           `mapstructure:"open_period"       validate:"min=0,max=600"`
	CleanupPrevious  bool          `mapstructure:"cleanup_previous"`
}

// LeaderboardConfig holds rendering assets. Empty paths fall back to
// built-in fonts and a solid background.
type LeaderboardConfig struct {
	FontPath       string `mapstructure:"font_path"`
	BoldFontPath   string `mapstructure:"bold_font_path"`
	BackgroundPath string `mapstructure:"background_path"`
}

// WelcomeConfig holds new member greeting settings.
type WelcomeConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	VideoURLs []string `mapstructure:"video_urls" validate:"dive,url"`
}

// ImageSearchConfig holds the image search proxy settings.
// An empty APIKey disables /image.
type ImageSearchConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"min=1s,max=2m"`
}

// ImageGenConfig holds the image generation proxy settings.
type ImageGenConfig struct {
	Provider     string        `mapstructure:"provider"      validate:"oneof=none http gemini"`
	APIKey       string        `mapstructure:"api_key"       validate:"required_unless=Provider none"`
	BaseURL      string        `mapstructure:"base_url"      validate:"required_if=Provider http"`
	Model        string        `mapstructure:"model"         validate:"required_if=Provider gemini"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"min=100ms,max=1m"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"min=1s,max=10m"`
}

// SchedulerConfig holds maintenance task schedules keyed by task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig holds one scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds user-facing text.
type MessagesConfig struct {
	Start                  string `mapstructure:"start"                   validate:"required"`
	Help                   string `mapstructure:"help"                    validate:"required"`
	Welcome                string `mapstructure:"welcome"                 validate:"required"`
	NotAuthorized          string `mapstructure:"not_authorized"          validate:"required"`
	GeneralError           string `mapstructure:"general_error"           validate:"required"`
	LeaderboardUnavailable string `mapstructure:"leaderboard_unavailable" validate:"required"`
	ProfileEmpty           string `mapstructure:"profile_empty"           validate:"required"`
	SpamWarning            string `mapstructure:"spam_warning"            validate:"required"`
	BroadcastUsage         string `mapstructure:"broadcast_usage"         validate:"required"`
	BroadcastDone          string `mapstructure:"broadcast_done"          validate:"required"`
	ExportEmpty            string `mapstructure:"export_empty"            validate:"required"`
	ImageUsage             string `mapstructure:"image_usage"             validate:"required"`
	ImageNotFound          string `mapstructure:"image_not_found"         validate:"required"`
	ImagineUsage           string `mapstructure:"imagine_usage"           validate:"required"`
	ImagineWorking         string `mapstructure:"imagine_working"         validate:"required"`
	ImagineTimeout         string `mapstructure:"imagine_timeout"         validate:"required"`
	FeatureDisabled        string `mapstructure:"feature_disabled"        validate:"required"`
}
