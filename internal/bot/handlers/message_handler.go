package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chattop/internal/ingest"
	"github.com/edgard/chattop/internal/spam"
)

// NewDefaultHandler returns the handler for every update no command matched:
// plain messages are counted, new members are welcomed and membership
// changes of the bot register the chat.
func NewDefaultHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	switch {
	case update.MyChatMember != nil:
		h.handleMembership(ctx, log, update.MyChatMember)
	case update.Message != nil && len(update.Message.NewChatMembers) > 0:
		h.handleNewMembers(ctx, b, log, update.Message)
	case update.Message != nil:
		h.handleMessage(ctx, b, log, update.Message)
	}
}

// handleMessage runs the counting pipeline: spam guard, ingestion, quiz gate.
func (h messageHandler) handleMessage(ctx context.Context, b *bot.Bot, log *slog.Logger, msg *models.Message) {
	if !countable(msg) {
		return
	}
	now := time.Now()

	if h.deps.Guard != nil {
		verdict, err := h.deps.Guard.Check(ctx, msg.From.ID, now)
		if err != nil {
			log.DebugContext(ctx, "Spam guard failed open", "error", err)
		}
		switch verdict {
		case spam.Block:
			warning := fmt.Sprintf(h.deps.Config.Messages.SpamWarning, ingest.DisplayName(msg.From))
			sendText(ctx, b, log, msg.Chat.ID, warning)
			return
		case spam.Suppress:
			return
		}
	}

	stored := h.deps.Recorder.Record(ctx, ingest.Event{
		Chat:        ingest.ChatInfo(msg.Chat),
		MessageID:   int64(msg.ID),
		UserID:      msg.From.ID,
		DisplayName: ingest.DisplayName(msg.From),
		At:          now,
	})
	if !stored {
		return
	}

	if h.deps.Quiz != nil {
		h.deps.Quiz.MaybeTrigger(ctx)
	}
}

// countable reports whether msg is a human text message in a chat the bot counts.
func countable(msg *models.Message) bool {
	if msg.From == nil || msg.From.IsBot {
		return false
	}
	switch msg.Chat.Type {
	case models.ChatTypePrivate, models.ChatTypeGroup, models.ChatTypeSupergroup:
	default:
		return false
	}
	// Media with a caption is not a text message.
	text := strings.TrimSpace(msg.Text)
	return text != "" && !strings.HasPrefix(text, "/")
}

func (h messageHandler) handleNewMembers(ctx context.Context, b *bot.Bot, log *slog.Logger, msg *models.Message) {
	chatID := msg.Chat.ID

	storeCtx, cancel := h.deps.storeContext(ctx)
	err := h.deps.Store.RegisterChat(storeCtx, ingest.ChatInfo(msg.Chat), time.Now())
	cancel()
	if err != nil {
		log.ErrorContext(ctx, "Failed to register chat", "error", err, "chat_id", chatID)
	}

	if !h.deps.Config.Welcome.Enabled {
		return
	}
	for _, member := range msg.NewChatMembers {
		if member.IsBot {
			continue
		}
		text := fmt.Sprintf(h.deps.Config.Messages.Welcome, ingest.DisplayName(&member))
		h.sendWelcome(ctx, b, log, chatID, text)
	}
}

// sendWelcome sends the next video of the chat's rotation with text as its
// caption, falling back to the text alone.
func (h messageHandler) sendWelcome(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string) {
	urls := h.deps.Config.Welcome.VideoURLs
	if len(urls) > 0 {
		storeCtx, cancel := h.deps.storeContext(ctx)
		index, err := h.deps.Store.NextWelcomeIndex(storeCtx, chatID)
		cancel()
		if err != nil {
			log.WarnContext(ctx, "Failed to advance welcome rotation", "error", err, "chat_id", chatID)
		}

		videoURL := welcomeVideo(urls, index)
		_, err = b.SendVideo(ctx, &bot.SendVideoParams{
			ChatID:  chatID,
			Video:   &models.InputFileString{Data: videoURL},
			Caption: text,
		})
		if err == nil {
			return
		}
		log.WarnContext(ctx, "Failed to send welcome video, sending text only", "error", err, "chat_id", chatID, "url", videoURL)
	}
	sendText(ctx, b, log, chatID, text)
}

// welcomeVideo picks the rotation entry for index.
func welcomeVideo(urls []string, index int) string {
	if index < 0 {
		index = -index
	}
	return urls[index%len(urls)]
}

// handleMembership registers the chat when the bot is added. Removal is only
// logged; a chat leaves the broadcast set when a quiz poll cannot be delivered.
func (h messageHandler) handleMembership(ctx context.Context, log *slog.Logger, update *models.ChatMemberUpdated) {
	chatID := update.Chat.ID
	status := update.NewChatMember.Type

	switch status {
	case models.ChatMemberTypeMember, models.ChatMemberTypeAdministrator:
		storeCtx, cancel := h.deps.storeContext(ctx)
		err := h.deps.Store.RegisterChat(storeCtx, ingest.ChatInfo(update.Chat), time.Now())
		cancel()
		if err != nil {
			log.ErrorContext(ctx, "Failed to register chat", "error", err, "chat_id", chatID)
			return
		}
		log.InfoContext(ctx, "Bot added to chat", "chat_id", chatID, "title", update.Chat.Title, "added_by", update.From.ID)
	default:
		log.InfoContext(ctx, "Bot membership changed", "chat_id", chatID, "status", status)
	}
}
