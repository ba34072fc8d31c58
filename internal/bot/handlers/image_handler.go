package handlers

import (
	"bytes"
	"context"
	"errors"
	"mime"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chattop/internal/imagegen"
	"github.com/edgard/chattop/internal/imagesearch"
)

// NewImageHandler returns a handler for the /image command, which searches
// for a photo matching the query.
func NewImageHandler(deps HandlerDeps) bot.HandlerFunc {
	return imageHandler{deps}.Handle
}

// NewImagineHandler returns a handler for the /imagine command, which
// generates an image from the prompt.
func NewImagineHandler(deps HandlerDeps) bot.HandlerFunc {
	return imageHandler{deps}.HandleImagine
}

type imageHandler struct {
	deps HandlerDeps
}

func (h imageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "image")

	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	if h.deps.ImageSearch == nil {
		sendText(ctx, b, log, chatID, msgs.FeatureDisabled)
		return
	}
	query := commandArgs(update.Message.Text)
	if query == "" {
		sendText(ctx, b, log, chatID, msgs.ImageUsage)
		return
	}

	log.InfoContext(ctx, "Handling /image command", "chat_id", chatID, "query", query)

	res, err := h.deps.ImageSearch.Search(ctx, query)
	switch {
	case errors.Is(err, imagesearch.ErrNotFound):
		sendText(ctx, b, log, chatID, msgs.ImageNotFound)
		return
	case err != nil:
		log.ErrorContext(ctx, "Image search failed", "error", err, "query", query)
		sendText(ctx, b, log, chatID, msgs.GeneralError)
		return
	}

	caption := ""
	if res.Photographer != "" {
		caption = "📷 " + res.Photographer
	}
	_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileString{Data: res.URL},
		Caption: caption,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send found image", "error", err, "chat_id", chatID, "url", res.URL)
		sendText(ctx, b, log, chatID, msgs.GeneralError)
	}
}

func (h imageHandler) HandleImagine(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "imagine")

	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	if h.deps.ImageGen == nil {
		sendText(ctx, b, log, chatID, msgs.FeatureDisabled)
		return
	}
	prompt := commandArgs(update.Message.Text)
	if prompt == "" {
		sendText(ctx, b, log, chatID, msgs.ImagineUsage)
		return
	}

	log.InfoContext(ctx, "Handling /imagine command", "chat_id", chatID, "user_id", update.Message.From.ID)

	working, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          chatID,
		Text:            msgs.ImagineWorking,
		ReplyParameters: &models.ReplyParameters{MessageID: update.Message.ID},
	})
	if err != nil {
		log.WarnContext(ctx, "Failed to send progress message", "error", err, "chat_id", chatID)
	} else {
		defer func() {
			if _, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: working.ID}); err != nil {
				log.DebugContext(ctx, "Failed to delete progress message", "error", err)
			}
		}()
	}

	actionCtx, stopAction := context.WithCancel(ctx)
	go keepChatAction(actionCtx, b, log, chatID, models.ChatActionUploadPhoto)
	img, err := h.deps.ImageGen.Generate(ctx, prompt)
	stopAction()

	switch {
	case errors.Is(err, imagegen.ErrTimeout):
		log.WarnContext(ctx, "Image generation timed out", "chat_id", chatID)
		sendText(ctx, b, log, chatID, msgs.ImagineTimeout)
		return
	case err != nil:
		log.ErrorContext(ctx, "Image generation failed", "error", err, "chat_id", chatID)
		sendText(ctx, b, log, chatID, msgs.GeneralError)
		return
	}

	_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:          chatID,
		Photo:           &models.InputFileUpload{Filename: "image" + extensionFor(img.MIMEType), Data: bytes.NewReader(img.Data)},
		ReplyParameters: &models.ReplyParameters{MessageID: update.Message.ID},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send generated image", "error", err, "chat_id", chatID)
		sendText(ctx, b, log, chatID, msgs.GeneralError)
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".png"
}
