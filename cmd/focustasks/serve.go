package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"focus-tasks/internal/bot"
	"focus-tasks/internal/notify"
	"focus-tasks/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot, reminder sweep and periodic reports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	a, err := openApp(ctx, cmd.ErrOrStderr(), appOptions{verbose: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.BotEnabled() {
		return fmt.Errorf("TELEGRAM_TOKEN is required for serve")
	}

	api, err := bot.Connect(a.cfg.TelegramToken, a.log)
	if err != nil {
		return err
	}

	notifier := notify.NewTelegram(senderOrNil(api, a.cfg.OwnerChatID), a.cfg.OwnerChatID, a.log)
	reminders := service.NewReminderService(a.tasks, notifier, a.cfg.Location, a.log)
	telegramBot := bot.New(api, a.tasks, reminders, bot.Options{
		OwnerChatID: a.cfg.OwnerChatID,
		UndoWindow:  a.cfg.UndoWindow,
		Location:    a.cfg.Location,
	}, a.log)

	scheduler := service.NewSchedulerService(a.cfg.Location, a.log)
	if _, err := scheduler.ScheduleInterval(a.cfg.ReminderInterval, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		reminders.Sweep(jobCtx, time.Now())
	}); err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}

	report := func() {
		jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReport(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error().Err(err).Msg("report")
		}
	}
	switch {
	case a.cfg.ReportAt != "":
		if _, err := scheduler.ScheduleDaily(a.cfg.ReportAt, report); err != nil {
			return fmt.Errorf("schedule reports: %w", err)
		}
	case a.cfg.ReportInterval() > 0:
		if _, err := scheduler.ScheduleInterval(a.cfg.ReportInterval(), report); err != nil {
			return fmt.Errorf("schedule reports: %w", err)
		}
	}

	scheduler.Start()
	defer scheduler.Stop()

	a.log.Info().Int("jobs", scheduler.Entries()).Msg("focus tasks started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped with error: %w", err)
	}
	a.log.Info().Msg("shutdown complete")
	return nil
}

// senderOrNil keeps a typed nil out of the notifier's interface check.
func senderOrNil(api *tgbotapi.BotAPI, chatID int64) notify.Sender {
	if api == nil || chatID == 0 {
		return nil
	}
	return api
}
