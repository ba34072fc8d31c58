package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/cobra"

	"github.com/edgard/chattop/internal/bot"
	"github.com/edgard/chattop/internal/bot/handlers"
	"github.com/edgard/chattop/internal/bot/tasks"
	"github.com/edgard/chattop/internal/config"
	"github.com/edgard/chattop/internal/database"
	"github.com/edgard/chattop/internal/export"
	"github.com/edgard/chattop/internal/imagegen"
	"github.com/edgard/chattop/internal/imagesearch"
	"github.com/edgard/chattop/internal/ingest"
	"github.com/edgard/chattop/internal/leaderboard"
	"github.com/edgard/chattop/internal/logger"
	"github.com/edgard/chattop/internal/quiz"
	"github.com/edgard/chattop/internal/resilience"
	"github.com/edgard/chattop/internal/spam"
	"github.com/edgard/chattop/internal/telegram"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return run(cmd.Context(), configPath)
		},
	}
}

// run initializes every component, runs the bot and blocks until ctx is
// cancelled or a component fails.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", configPath, "error", err)
		return err
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		return err
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	hDeps, err := buildHandlerDeps(ctx, cfg, store, log)
	if err != nil {
		return err
	}

	// The default handler is bound once the quiz scheduler exists, which
	// needs the bot itself to send polls. Updates only flow after Start.
	var defaultHandler tgbot.HandlerFunc
	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), handlers.Recover(hDeps)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			defaultHandler(ctx, b, update)
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, cfg.Telegram.RequestTimeout, cfg.Telegram.PollTimeout, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return err
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	if cfg.Quiz.Enabled {
		hDeps.Quiz = quiz.NewScheduler(
			store,
			quiz.NewTriviaClient(cfg.Quiz.TriviaURL, cfg.Quiz.FetchTimeout).
				WithBreaker(resilience.NewBreaker(resilience.BreakerConfig{Name: "trivia"}, log)),
			telegram.NewPollSender(tg, cfg.Quiz.OpenPeriod, log),
			quiz.Config{
				Cooldown:         cfg.Quiz.Cooldown,
				LockTimeout:      cfg.Quiz.LockTimeout,
				BroadcastTimeout: cfg.Quiz.BroadcastTimeout,
				StoreTimeout:     cfg.Database.QueryTimeout,
				Concurrency:      cfg.Quiz.Concurrency,
				CleanupPrevious:  cfg.Quiz.CleanupPrevious,
			},
			log,
		)
	}

	defaultHandler = handlers.NewDefaultHandler(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cfg.Telegram.BotInfo.Username, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return err
	}

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{Logger: log, Store: store, Config: cfg})
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, taskMap)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return err
	}
	app := bot.NewBot(log, tg, sched, hDeps.Quiz)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		return runErr
	}

	log.Info("Bot stopped gracefully.")
	return nil
}

// buildHandlerDeps constructs the feature components. Optional features stay
// nil when they are disabled or not configured.
func buildHandlerDeps(ctx context.Context, cfg *config.Config, store database.Store, log *slog.Logger) (handlers.HandlerDeps, error) {
	timeout := cfg.Database.QueryTimeout

	aggregator := leaderboard.NewAggregator(store, timeout, log)
	deps := handlers.HandlerDeps{
		Logger:     log,
		Config:     cfg,
		Store:      store,
		Recorder:   ingest.NewRecorder(store, log, timeout),
		Aggregator: aggregator,
		Renderer: leaderboard.NewRenderer(leaderboard.RendererConfig{
			FontPath:       cfg.Leaderboard.FontPath,
			BoldFontPath:   cfg.Leaderboard.BoldFontPath,
			BackgroundPath: cfg.Leaderboard.BackgroundPath,
		}, log),
		Exporter: export.NewExporter(aggregator, log),
	}

	if cfg.Spam.Enabled {
		deps.Guard = spam.NewGuard(store, spam.Config{
			MessageLimit:  cfg.Spam.MessageLimit,
			Window:        cfg.Spam.Window,
			BlockDuration: cfg.Spam.BlockDuration,
		}, timeout, log)
	}

	if cfg.ImageSearch.APIKey != "" {
		deps.ImageSearch = imagesearch.NewClient(cfg.ImageSearch.BaseURL, cfg.ImageSearch.APIKey, cfg.ImageSearch.Timeout, log)
	}

	genCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	gen, err := imagegen.New(genCtx, cfg.ImageGen, log)
	if err != nil {
		log.Error("Failed to initialize image generator", "provider", cfg.ImageGen.Provider, "error", err)
		return deps, err
	}
	deps.ImageGen = gen
	return deps, nil
}
