package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// chatActionInterval re-sends a chat action before Telegram's 5s expiry.
const chatActionInterval = 4 * time.Second

// commandArgs returns the text following the leading "/command" token.
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}

// sendText sends a plain text message, logging failures.
func sendText(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}

// withBotName substitutes "@botname" in a configured message.
func withBotName(msg string, botInfo *models.User) string {
	if botInfo == nil || botInfo.Username == "" {
		return msg
	}
	return strings.ReplaceAll(msg, "@botname", "@"+botInfo.Username)
}

// keepChatAction shows action in chatID until ctx is done.
func keepChatAction(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, action models.ChatAction) {
	send := func() error {
		_, err := b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: action})
		return err
	}
	if err := send(); err != nil {
		log.DebugContext(ctx, "Failed to send initial chat action", "error", err, "chat_id", chatID)
		return
	}

	ticker := time.NewTicker(chatActionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := send(); err != nil && ctx.Err() == nil {
				log.DebugContext(ctx, "Chat action failed", "error", err, "chat_id", chatID)
			}
		}
	}
}

// storeContext bounds a store call by the configured query timeout.
func (d HandlerDeps) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.Config.Database.QueryTimeout)
}
