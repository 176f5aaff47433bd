package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"focus-tasks/internal/bot"
	"focus-tasks/internal/config"
	"focus-tasks/internal/logging"
	"focus-tasks/internal/notify"
	"focus-tasks/internal/repository"
	"focus-tasks/internal/service"
)

// app is the wired engine shared by every subcommand.
type app struct {
	cfg   config.Config
	log   zerolog.Logger
	db    *gorm.DB
	tasks *service.TaskService
}

type appOptions struct {
	verbose bool
	// notifyCompletions pushes a notice to the owner chat when a command
	// completes a task. The bot replies in chat itself and leaves it off.
	notifyCompletions bool
}

// openApp loads configuration, opens storage and builds the task store.
// verbose keeps the environment's log level; otherwise only warnings reach w.
func openApp(ctx context.Context, logOut io.Writer, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.Env, logOut)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if !opts.verbose {
		log = log.Level(zerolog.WarnLevel)
	}

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	serviceOpts := []service.Option{service.WithMaxTitleLength(cfg.MaxTitleLength)}
	if opts.notifyCompletions {
		serviceOpts = append(serviceOpts, service.WithCompletionNotifier(completionNotifier(cfg, log)))
	}

	gw := repository.NewGateway(repository.NewEntryRepository(db), log)
	tracker := service.NewTracker(cfg.Rewards, cfg.Location)
	tasks := service.NewTaskService(ctx, gw, tracker, log, serviceOpts...)

	return &app{cfg: cfg, log: log, db: db, tasks: tasks}, nil
}

// completionNotifier reaches the owner chat when both a token and an owner
// are configured. Connection problems only cost the notice.
func completionNotifier(cfg config.Config, log zerolog.Logger) notify.Notifier {
	if !cfg.BotEnabled() || cfg.OwnerChatID == 0 {
		return notify.Nop{}
	}
	api, err := bot.Connect(cfg.TelegramToken, log)
	if err != nil {
		log.Warn().Err(err).Msg("completion notices disabled")
		return notify.Nop{}
	}
	return notify.NewTelegram(api, cfg.OwnerChatID, log)
}

func (a *app) Close() {
	sqlDB, err := a.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close db")
	}
}
