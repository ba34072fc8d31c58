package handlers

import (
	"log/slog"

	"github.com/edgard/chattop/internal/config"
	"github.com/edgard/chattop/internal/database"
	"github.com/edgard/chattop/internal/export"
	"github.com/edgard/chattop/internal/imagegen"
	"github.com/edgard/chattop/internal/imagesearch"
	"github.com/edgard/chattop/internal/ingest"
	"github.com/edgard/chattop/internal/leaderboard"
	"github.com/edgard/chattop/internal/quiz"
	"github.com/edgard/chattop/internal/spam"
)

// HandlerDeps provides dependencies for Telegram command handlers.
// Guard, Quiz, ImageSearch and ImageGen are nil when their feature is disabled.
type HandlerDeps struct {
	Logger      *slog.Logger
	Config      *config.Config
	Store       database.Store
	Recorder    *ingest.Recorder
	Guard       *spam.Guard
	Aggregator  *leaderboard.Aggregator
	Renderer    *leaderboard.Renderer
	Quiz        *quiz.Scheduler
	Exporter    *export.Exporter
	ImageSearch imagesearch.Searcher
	ImageGen    imagegen.Generator
}
