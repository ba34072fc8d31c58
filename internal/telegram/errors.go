package telegram

import (
	"errors"
	"strings"

	"github.com/go-telegram/bot"
)

// Bad Request descriptions that mean the chat will never accept messages again.
var permanentBadRequests = []string{
	"chat not found",
	"user is deactivated",
	"bot was kicked",
	"group chat was deactivated",
	"peer_id_invalid",
}

// IsPermanent reports whether a Bot API error means delivery to the chat
// cannot succeed on retry. Everything else is treated as transient.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, bot.ErrorForbidden) {
		return true
	}

	// A group upgraded to a supergroup lives on under a new id.
	var migrate *bot.MigrateError
	if errors.As(err, &migrate) {
		return true
	}

	if errors.Is(err, bot.ErrorBadRequest) {
		msg := strings.ToLower(err.Error())
		for _, s := range permanentBadRequests {
			if strings.Contains(msg, s) {
				return true
			}
		}
	}
	return false
}
