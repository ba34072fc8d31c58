package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/chattop/internal/leaderboard"
)

// RegisteredHandler represents a handler together with the pattern it is
// registered under and the middleware wrapped around it.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

func command(pattern string, handler tgbot.HandlerFunc, mw ...tgbot.Middleware) RegisteredHandler {
	return RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     pattern,
		Handler:     handler,
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  mw,
	}
}

// RegisterAllCommands initializes and returns a map of all command and callback handlers.
// Plain messages, member joins and membership changes go to NewDefaultHandler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = command("start", NewStartHandler(deps))
	handlers["/help"] = command("help", NewHelpHandler(deps))
	handlers["/leaderboard"] = command("leaderboard", NewLeaderboardHandler(deps))
	handlers["/profile"] = command("profile", NewProfileHandler(deps))
	handlers["/image"] = command("image", NewImageHandler(deps))
	handlers["/imagine"] = command("imagine", NewImagineHandler(deps))

	ownerOnly := OwnerOnly(deps)
	handlers["/broadcast"] = command("broadcast", NewBroadcastHandler(deps), ownerOnly)
	handlers["/export"] = command("export", NewExportHandler(deps), ownerOnly)

	handlers["leaderboard_callback"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     leaderboard.CallbackPrefix,
		Handler:     NewLeaderboardCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}

	return handlers
}
