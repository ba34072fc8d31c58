package handlers

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chattop/internal/ingest"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler registers the chat for broadcasts and greets the user.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID

	log.InfoContext(ctx, "Handling /start command", "chat_id", chatID, "user_id", update.Message.From.ID)

	storeCtx, cancel := h.deps.storeContext(ctx)
	err := h.deps.Store.RegisterChat(storeCtx, ingest.ChatInfo(update.Message.Chat), time.Now())
	cancel()
	if err != nil {
		log.ErrorContext(ctx, "Failed to register chat", "error", err, "chat_id", chatID)
	}

	sendText(ctx, b, log, chatID, withBotName(h.deps.Config.Messages.Start, h.deps.Config.Telegram.BotInfo))
}
