package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultTelegramRequestTimeout = 30 * time.Second
	DefaultTelegramPollTimeout    = 10 * time.Second

	DefaultDBMaxOpenConns    = 20
	DefaultDBMaxIdleConns    = 5
	DefaultDBConnMaxLifetime = time.Hour
	DefaultDBQueryTimeout    = 10 * time.Second

	DefaultSpamMessageLimit  = 5
	DefaultSpamWindow        = 5 * time.Second
	DefaultSpamBlockDuration = 60 * time.Second

	DefaultQuizCooldown         = 10 * time.Minute
	DefaultQuizLockTimeout      = 5 * time.Minute
	DefaultQuizTriviaURL        = "https://opentdb.com/api.php"
	DefaultQuizFetchTimeout     = 10 * time.Second
	DefaultQuizBroadcastTimeout = 3 * time.Minute
	DefaultQuizConcurrency      = 4
	DefaultQuizOpenPeriod       = 600

	DefaultImageSearchBaseURL = "https://api.pexels.com/v1"
	DefaultImageSearchTimeout = 15 * time.Second

	DefaultImageGenProvider     = "none"
	DefaultImageGenModel        = "imagen-3.0-generate-002"
	DefaultImageGenPollInterval = 2 * time.Second
	DefaultImageGenTimeout      = 2 * time.Minute
)

// DefaultWelcomeVideoURLs are rotated per chat when greeting new members.
var DefaultWelcomeVideoURLs = []string{}

// DefaultMessages holds the user-facing texts.
var DefaultMessages = MessagesConfig{
	Start: "👋 Hi! I count messages in this chat and keep a leaderboard.\n" +
		"Use /leaderboard to see who talks the most, or /help for all commands.",
	Help: "Commands:\n" +
		"/leaderboard - message leaderboard for this chat\n" +
		"/profile - your message stats\n" +
		"/image <query> - search for an image\n" +
		"/imagine <prompt> - generate an image\n" +
		"/help - this message",
	Welcome:                "👋 Welcome, %s!",
	NotAuthorized:          "🚫 You are not authorized to use this command.",
	GeneralError:           "❌ Sorry, something went wrong. Please try again later.",
	LeaderboardUnavailable: "⚠️ The leaderboard is unavailable right now. Please try again later.",
	ProfileEmpty:           "You have no counted messages yet.",
	SpamWarning:            "🐢 %s, slow down! Your messages are not counted for a while.",
	BroadcastUsage:         "Usage: /broadcast <text>, or reply to a message with /broadcast.",
	BroadcastDone:          "📣 Broadcast delivered to %d of %d chats.",
	ExportEmpty:            "Nothing to export yet.",
	ImageUsage:             "Usage: /image <query>",
	ImageNotFound:          "🔍 No image found for that query.",
	ImagineUsage:           "Usage: /imagine <prompt>",
	ImagineWorking:         "🎨 Generating your image...",
	ImagineTimeout:         "⏱️ Image generation took too long. Please try again later.",
	FeatureDisabled:        "This feature is not configured.",
}

// DefaultSchedulerTasks holds the maintenance schedules (cron with seconds).
var DefaultSchedulerTasks = map[string]TaskConfig{
	"sql_maintenance": {Enabled: true, Schedule: "0 30 4 * * *"},
	"spam_prune":      {Enabled: true, Schedule: "0 0 * * * *"},
	"quiz_poll_prune": {Enabled: true, Schedule: "0 15 4 * * *"},
}

// defaults maps every configuration key to its default value. Every key is
// listed so that environment variables can override it.
var defaults = map[string]any{
	"logger.level": DefaultLogLevel,
	"logger.json":  true,

	"telegram.token":           "",
	"telegram.owner_id":        0,
	"telegram.request_timeout": DefaultTelegramRequestTimeout,
	"telegram.poll_timeout":    DefaultTelegramPollTimeout,

	"database.url":               "",
	"database.max_open_conns":    DefaultDBMaxOpenConns,
	"database.max_idle_conns":    DefaultDBMaxIdleConns,
	"database.conn_max_lifetime": DefaultDBConnMaxLifetime,
	"database.query_timeout":     DefaultDBQueryTimeout,

	"spam.enabled":        true,
	"spam.message_limit":  DefaultSpamMessageLimit,
	"spam.window":         DefaultSpamWindow,
	"spam.block_duration": DefaultSpamBlockDuration,

	"quiz.enabled":           true,
	"quiz.cooldown":          DefaultQuizCooldown,
	"quiz.lock_timeout":      DefaultQuizLockTimeout,
	"quiz.trivia_url":        DefaultQuizTriviaURL,
	"quiz.fetch_timeout":     DefaultQuizFetchTimeout,
	"quiz.broadcast_timeout": DefaultQuizBroadcastTimeout,
	"quiz.concurrency":       DefaultQuizConcurrency,
	"quiz.open_period":       DefaultQuizOpenPeriod,
	"quiz.cleanup_previous":  true,

	"leaderboard.font_path":       "",
	"leaderboard.bold_font_path":  "",
	"leaderboard.background_path": "",

	"welcome.enabled":    true,
	"welcome.video_urls": DefaultWelcomeVideoURLs,

	"image_search.base_url": DefaultImageSearchBaseURL,
	"image_search.api_key":  "",
	"image_search.timeout":  DefaultImageSearchTimeout,

	"image_gen.provider":      DefaultImageGenProvider,
	"image_gen.api_key":       "",
	"image_gen.base_url":      "",
	"image_gen.model":         DefaultImageGenModel,
	"image_gen.poll_interval": DefaultImageGenPollInterval,
	"image_gen.timeout":       DefaultImageGenTimeout,

	"messages.start":                   DefaultMessages.Start,
	"messages.help":                    DefaultMessages.Help,
	"messages.welcome":                 DefaultMessages.Welcome,
	"messages.not_authorized":          DefaultMessages.NotAuthorized,
	"messages.general_error":           DefaultMessages.GeneralError,
	"messages.leaderboard_unavailable": DefaultMessages.LeaderboardUnavailable,
	"messages.profile_empty":           DefaultMessages.ProfileEmpty,
	"messages.spam_warning":            DefaultMessages.SpamWarning,
	"messages.broadcast_usage":         DefaultMessages.BroadcastUsage,
	"messages.broadcast_done":          DefaultMessages.BroadcastDone,
	"messages.export_empty":            DefaultMessages.ExportEmpty,
	"messages.image_usage":             DefaultMessages.ImageUsage,
	"messages.image_not_found":         DefaultMessages.ImageNotFound,
	"messages.imagine_usage":           DefaultMessages.ImagineUsage,
	"messages.imagine_working":         DefaultMessages.ImagineWorking,
	"messages.imagine_timeout":         DefaultMessages.ImagineTimeout,
	"messages.feature_disabled":        DefaultMessages.FeatureDisabled,
}
