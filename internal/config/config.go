package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"focus-tasks/internal/model"
)

// Config keeps runtime settings for the task engine and its front ends.
type Config struct {
	Env                 string
	DatabaseURL         string
	TelegramToken       string
	OwnerChatID         int64
	TimeZone            string
	RewardsFile         string
	MaxTitleLength      int
	ReportIntervalHours int
	ReportAt            string
	ReminderInterval    time.Duration
	UndoWindow          time.Duration

	Rewards  model.Rewards
	Location *time.Location
}

type envConfig struct {
	Env                 string        `env:"FOCUS_ENV" env-default:"prod"`
	DatabaseURL         string        `env:"DATABASE_URL" env-default:"focus_tasks.db"`
	TelegramToken       string        `env:"TELEGRAM_TOKEN"`
	OwnerChatID         int64         `env:"OWNER_CHAT_ID"`
	TimeZone            string        `env:"TIMEZONE"`
	RewardsFile         string        `env:"REWARDS_FILE"`
	MaxTitleLength      int           `env:"MAX_TITLE_LENGTH" env-default:"500"`
	ReportIntervalHours int           `env:"REPORT_INTERVAL_HOURS" env-default:"5"`
	ReportAt            string        `env:"REPORT_AT"`
	ReminderInterval    time.Duration `env:"REMINDER_INTERVAL" env-default:"1m"`
	UndoWindow          time.Duration `env:"UNDO_WINDOW" env-default:"4s"`
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	var raw envConfig
	if err := cleanenv.ReadEnv(&raw); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	return finish(Config{
		Env:                 raw.Env,
		DatabaseURL:         raw.DatabaseURL,
		TelegramToken:       raw.TelegramToken,
		OwnerChatID:         raw.OwnerChatID,
		TimeZone:            raw.TimeZone,
		RewardsFile:         raw.RewardsFile,
		MaxTitleLength:      raw.MaxTitleLength,
		ReportIntervalHours: raw.ReportIntervalHours,
		ReportAt:            raw.ReportAt,
		ReminderInterval:    raw.ReminderInterval,
		UndoWindow:          raw.UndoWindow,
	})
}

func finish(cfg Config) (Config, error) {
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.ReportAt = strings.TrimSpace(cfg.ReportAt)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "focus_tasks.db"
	}
	if cfg.MaxTitleLength <= 0 {
		cfg.MaxTitleLength = 500
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = time.Minute
	}
	if cfg.UndoWindow <= 0 {
		cfg.UndoWindow = 4 * time.Second
	}

	cfg.Location = time.Local
	if tz := strings.TrimSpace(cfg.TimeZone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("load timezone %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	cfg.Rewards = model.DefaultRewards()
	if path := strings.TrimSpace(cfg.RewardsFile); path != "" {
		rewards, err := LoadRewards(path)
		if err != nil {
			return cfg, err
		}
		cfg.Rewards = rewards
	}

	return cfg, nil
}

// ReportInterval converts the hour-based setting into a duration; zero disables reports.
func (c Config) ReportInterval() time.Duration {
	if c.ReportIntervalHours <= 0 {
		return 0
	}
	return time.Duration(c.ReportIntervalHours) * time.Hour
}

// BotEnabled reports whether the Telegram front end can start.
func (c Config) BotEnabled() bool {
	return c.TelegramToken != ""
}
