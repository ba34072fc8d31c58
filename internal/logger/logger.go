// Package logger provides structured logging for chattop.
// It uses Go's slog package with configurable levels and formats.
package logger

import (
	"context"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewLogger creates a new slog Logger with the specified level and format
// and installs it as the default logger.
// If jsonOutput is true, logs will be formatted as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(levelStr),
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a configured level name to a slog.Level, defaulting to info.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// UpdateSummary is the loggable identity of an update.
type UpdateSummary struct {
	Type   string
	ChatID int64
	UserID int64
	Text   string
}

// Summarize extracts type, chat, user and a text preview from an update.
// It never dereferences optional parts of the update without checking them.
func Summarize(update *models.Update) UpdateSummary {
	var s UpdateSummary
	if update == nil {
		s.Type = "nil"
		return s
	}

	switch {
	case update.Message != nil:
		s.Type = "message"
		s.ChatID = update.Message.Chat.ID
		if update.Message.From != nil {
			s.UserID = update.Message.From.ID
		}
		s.Text = update.Message.Text
		if s.Text == "" {
			s.Text = update.Message.Caption
		}
	case update.CallbackQuery != nil:
		s.Type = "callback_query"
		s.UserID = update.CallbackQuery.From.ID
		s.Text = update.CallbackQuery.Data
		if msg := update.CallbackQuery.Message.Message; msg != nil {
			s.ChatID = msg.Chat.ID
		} else if inaccessible := update.CallbackQuery.Message.InaccessibleMessage; inaccessible != nil {
			s.ChatID = inaccessible.Chat.ID
		}
	case update.MyChatMember != nil:
		s.Type = "my_chat_member"
		s.ChatID = update.MyChatMember.Chat.ID
		s.UserID = update.MyChatMember.From.ID
	case update.EditedMessage != nil:
		s.Type = "edited_message"
		s.ChatID = update.EditedMessage.Chat.ID
		if update.EditedMessage.From != nil {
			s.UserID = update.EditedMessage.From.ID
		}
	default:
		s.Type = "other"
	}
	return s
}

// Middleware creates a logging middleware for the Telegram bot.
// It logs every incoming update and how long its handler took.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			startTime := time.Now()
			summary := Summarize(update)

			var updateID int64
			if update != nil {
				updateID = update.ID
			}
			logEntry := log.With(
				"update_id", updateID,
				"update_type", summary.Type,
				"chat_id", summary.ChatID,
				"user_id", summary.UserID,
			)
			logEntry.DebugContext(ctx, "Processing update", "text_preview", truncateString(summary.Text, 50))

			next(ctx, b, update)

			logEntry.DebugContext(ctx, "Finished processing update", "duration", time.Since(startTime))
		}
	}
}

// truncateString shortens s to at most maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}
