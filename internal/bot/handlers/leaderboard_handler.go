package handlers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chattop/internal/leaderboard"
)

const leaderboardFileName = "leaderboard.png"

// NewLeaderboardHandler returns a handler for the /leaderboard command.
// An optional argument selects the initial scope, daily by default.
func NewLeaderboardHandler(deps HandlerDeps) bot.HandlerFunc {
	return leaderboardHandler{deps}.Handle
}

// NewLeaderboardCallbackHandler returns the handler for scope-switch buttons.
func NewLeaderboardCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return leaderboardHandler{deps}.HandleCallback
}

type leaderboardHandler struct {
	deps HandlerDeps
}

// leaderboardView is one computed and rendered leaderboard. Image is nil when
// rendering failed and the caption alone is shown.
type leaderboardView struct {
	Caption  string
	Image    []byte
	Keyboard *models.InlineKeyboardMarkup
}

func (h leaderboardHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "leaderboard")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Leaderboard handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID

	scope := leaderboard.Daily
	if arg := commandArgs(update.Message.Text); arg != "" {
		if parsed, err := leaderboard.ParseScope(arg); err == nil {
			scope = parsed
		}
	}

	log.InfoContext(ctx, "Handling /leaderboard command", "chat_id", chatID, "user_id", update.Message.From.ID, "scope", scope)

	view, err := h.build(ctx, log, chatID, scope, update.Message.From.ID)
	if err != nil {
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.LeaderboardUnavailable)
		return
	}

	if view.Image == nil {
		_, err = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        view.Caption,
			ParseMode:   models.ParseModeMarkdown,
			ReplyMarkup: view.Keyboard,
		})
	} else {
		_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:      chatID,
			Photo:       &models.InputFileUpload{Filename: leaderboardFileName, Data: bytes.NewReader(view.Image)},
			Caption:     view.Caption,
			ParseMode:   models.ParseModeMarkdown,
			ReplyMarkup: view.Keyboard,
		})
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to send leaderboard", "error", err, "chat_id", chatID)
	}
}

func (h leaderboardHandler) HandleCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "leaderboard_callback")

	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	answer := func(text string) {
		if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID, Text: text}); err != nil {
			log.DebugContext(ctx, "Failed to answer callback query", "error", err)
		}
	}

	scope, chatID, err := leaderboard.DecodeCallback(cq.Data)
	if err != nil {
		log.WarnContext(ctx, "Invalid leaderboard callback", "data", cq.Data, "error", err)
		answer("Invalid button.")
		return
	}

	msg := cq.Message.Message
	if msg == nil {
		log.DebugContext(ctx, "Leaderboard message no longer accessible", "chat_id", chatID)
		answer("")
		return
	}
	// Buttons always carry the chat they were posted in.
	if chatID != msg.Chat.ID {
		log.WarnContext(ctx, "Leaderboard callback for another chat", "data", cq.Data, "chat_id", msg.Chat.ID)
		answer("Invalid button.")
		return
	}

	view, err := h.build(ctx, log, chatID, scope, cq.From.ID)
	if err != nil {
		answer(h.deps.Config.Messages.LeaderboardUnavailable)
		return
	}
	answer("")

	switch {
	case len(msg.Photo) > 0 && view.Image != nil:
		_, err = b.EditMessageMedia(ctx, &bot.EditMessageMediaParams{
			ChatID:    msg.Chat.ID,
			MessageID: msg.ID,
			Media: &models.InputMediaPhoto{
				Media:           "attach://" + leaderboardFileName,
				Caption:         view.Caption,
				ParseMode:       models.ParseModeMarkdown,
				MediaAttachment: bytes.NewReader(view.Image),
			},
			ReplyMarkup: view.Keyboard,
		})
	case len(msg.Photo) > 0:
		_, err = b.EditMessageCaption(ctx, &bot.EditMessageCaptionParams{
			ChatID:      msg.Chat.ID,
			MessageID:   msg.ID,
			Caption:     view.Caption,
			ParseMode:   models.ParseModeMarkdown,
			ReplyMarkup: view.Keyboard,
		})
	default:
		_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      msg.Chat.ID,
			MessageID:   msg.ID,
			Text:        view.Caption,
			ParseMode:   models.ParseModeMarkdown,
			ReplyMarkup: view.Keyboard,
		})
	}
	if err != nil && !isNotModified(err) {
		log.ErrorContext(ctx, "Failed to update leaderboard message", "error", err, "chat_id", msg.Chat.ID, "scope", scope)
	}
}

// build computes and renders one leaderboard. Only a failed computation is
// an error; a failed render degrades to the caption.
func (h leaderboardHandler) build(ctx context.Context, log *slog.Logger, chatID int64, scope leaderboard.Scope, requesterID int64) (*leaderboardView, error) {
	res, err := h.deps.Aggregator.Compute(ctx, chatID, scope, requesterID)
	if err != nil {
		if !errors.Is(err, leaderboard.ErrUnavailable) {
			log.ErrorContext(ctx, "Unexpected leaderboard error", "error", err)
		}
		return nil, err
	}

	view := &leaderboardView{
		Caption:  leaderboard.Caption(res),
		Keyboard: leaderboardKeyboard(chatID, scope),
	}
	img, err := h.deps.Renderer.Render(res)
	if err != nil {
		log.WarnContext(ctx, "Failed to render leaderboard image, sending caption only", "error", err, "chat_id", chatID)
		return view, nil
	}
	view.Image = img
	return view, nil
}

// leaderboardKeyboard lays out one button per scope, local scopes on the
// first row and global ones on the second. The current scope is marked.
func leaderboardKeyboard(chatID int64, current leaderboard.Scope) *models.InlineKeyboardMarkup {
	var local, global []models.InlineKeyboardButton
	for _, s := range leaderboard.Scopes {
		label := s.Label()
		if s == current {
			label = "• " + label
		}
		button := models.InlineKeyboardButton{Text: label, CallbackData: leaderboard.EncodeCallback(s, chatID)}
		if s.IsGlobal() {
			global = append(global, button)
		} else {
			local = append(local, button)
		}
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{local, global}}
}

// isNotModified reports Telegram's rejection of an edit that changes nothing,
// which happens when the current scope's button is pressed again.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
