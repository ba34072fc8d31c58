package handlers

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chattop/internal/export"
)

// NewExportHandler returns a handler for the owner-only /export command.
func NewExportHandler(deps HandlerDeps) bot.HandlerFunc {
	return exportHandler{deps}.Handle
}

type exportHandler struct {
	deps HandlerDeps
}

func (h exportHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "export")

	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	log.InfoContext(ctx, "Handling /export command", "chat_id", chatID)

	data, err := h.deps.Exporter.Export(ctx, chatID)
	switch {
	case errors.Is(err, export.ErrEmpty):
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.ExportEmpty)
		return
	case err != nil:
		log.ErrorContext(ctx, "Failed to build export", "error", err, "chat_id", chatID)
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.LeaderboardUnavailable)
		return
	}

	_, err = b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: export.FileName(chatID, time.Now()), Data: bytes.NewReader(data)},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send export", "error", err, "chat_id", chatID)
	}
}
