package handlers

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"
)

// NewBroadcastHandler returns a handler for the owner-only /broadcast command.
// It sends the command's text, or copies the replied-to message, to every active chat.
func NewBroadcastHandler(deps HandlerDeps) bot.HandlerFunc {
	return broadcastHandler{deps}.Handle
}

type broadcastHandler struct {
	deps HandlerDeps
}

func (h broadcastHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "broadcast")

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	text := commandArgs(msg.Text)
	reply := msg.ReplyToMessage
	if text == "" && reply == nil {
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.BroadcastUsage)
		return
	}

	storeCtx, cancel := h.deps.storeContext(ctx)
	chats, err := h.deps.Store.ListActiveChats(storeCtx)
	cancel()
	if err != nil {
		log.ErrorContext(ctx, "Failed to list active chats", "error", err)
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	log.InfoContext(ctx, "Broadcasting owner message", "chats", len(chats), "copy", text == "")

	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.deps.Config.Quiz.Concurrency)
	for _, chat := range chats {
		g.Go(func() error {
			var err error
			if text != "" {
				_, err = b.SendMessage(gctx, &bot.SendMessageParams{ChatID: chat.ChatID, Text: text})
			} else {
				_, err = b.CopyMessage(gctx, &bot.CopyMessageParams{
					ChatID:     chat.ChatID,
					FromChatID: chatID,
					MessageID:  reply.ID,
				})
			}
			if err != nil {
				log.WarnContext(gctx, "Broadcast delivery failed", "error", err, "chat_id", chat.ChatID)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	sendText(ctx, b, log, chatID, fmt.Sprintf(h.deps.Config.Messages.BroadcastDone, sent.Load(), len(chats)))
}
