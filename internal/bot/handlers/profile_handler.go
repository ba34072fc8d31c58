package handlers

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chattop/internal/database"
	"github.com/edgard/chattop/internal/ingest"
	"github.com/edgard/chattop/internal/leaderboard"
)

const profileTitleLen = 25

// NewProfileHandler returns a handler for the /profile command.
func NewProfileHandler(deps HandlerDeps) bot.HandlerFunc {
	return profileHandler{deps}.Handle
}

// profileHandler shows the sender's total, global rank and per-chat counts.
type profileHandler struct {
	deps HandlerDeps
}

func (h profileHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "profile")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Profile handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	log.InfoContext(ctx, "Handling /profile command", "chat_id", chatID, "user_id", userID)

	res, err := h.deps.Aggregator.Compute(ctx, chatID, leaderboard.Global, userID)
	if err != nil {
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.LeaderboardUnavailable)
		return
	}
	if res.Requester == nil {
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.ProfileEmpty)
		return
	}

	storeCtx, cancel := h.deps.storeContext(ctx)
	counts, err := h.deps.Store.UserChatCounts(storeCtx, userID)
	cancel()
	if err != nil {
		log.WarnContext(ctx, "Failed to load per-chat counts", "error", err, "user_id", userID)
	}

	sendText(ctx, b, log, chatID, formatProfile(ingest.DisplayName(update.Message.From), res.Requester, counts))
}

func formatProfile(name string, stat *leaderboard.RequesterStat, counts []database.ChatCount) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 %s\n\n", name)
	fmt.Fprintf(&sb, "Total messages: %d\n", stat.Count)
	fmt.Fprintf(&sb, "Global rank: #%d\n", stat.Rank)

	if len(counts) > 0 {
		sb.WriteString("\nMessages per chat:\n")
		for _, c := range counts {
			title := c.Title
			if title == "" {
				title = fmt.Sprintf("Chat %d", c.ChatID)
			}
			if utf8.RuneCountInString(title) > profileTitleLen {
				title = string([]rune(title)[:profileTitleLen-1]) + "…"
			}
			fmt.Fprintf(&sb, "• %s: %d\n", title, c.MessageCount)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
