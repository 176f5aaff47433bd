package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focus-tasks/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("REWARDS_FILE", "")
	t.Setenv("TIMEZONE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "focus_tasks.db", cfg.DatabaseURL)
	assert.Equal(t, 500, cfg.MaxTitleLength)
	assert.Equal(t, time.Minute, cfg.ReminderInterval)
	assert.Equal(t, 4*time.Second, cfg.UndoWindow)
	assert.Equal(t, 5*time.Hour, cfg.ReportInterval())
	assert.Equal(t, model.DefaultRewards(), cfg.Rewards)
	assert.Equal(t, time.Local, cfg.Location)
	assert.False(t, cfg.BotEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", " token ")
	t.Setenv("OWNER_CHAT_ID", "42")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("UNDO_WINDOW", "10s")
	t.Setenv("REPORT_INTERVAL_HOURS", "0")
	t.Setenv("REPORT_AT", " 08:30 ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.TelegramToken)
	assert.Equal(t, int64(42), cfg.OwnerChatID)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
	assert.Equal(t, 10*time.Second, cfg.UndoWindow)
	assert.Zero(t, cfg.ReportInterval())
	assert.Equal(t, "08:30", cfg.ReportAt)
	assert.True(t, cfg.BotEnabled())
}

func TestLoad_BadTimezone(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRewards_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	require.NoError(t, os.WriteFile(path, []byte("completion:\n  low: 10\n"), 0o644))

	rewards, err := LoadRewards(path)
	require.NoError(t, err)

	assert.Equal(t, 10, rewards.Completion.Low)
	assert.Equal(t, 30, rewards.Completion.High)
	assert.Equal(t, 10, rewards.Creation.High)
}

func TestLoadRewards_RejectsNegative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	require.NoError(t, os.WriteFile(path, []byte("creation:\n  high: -1\n"), 0o644))

	_, err := LoadRewards(path)
	assert.Error(t, err)
}

func TestLoad_RewardsFileFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	require.NoError(t, os.WriteFile(path, []byte("completion:\n  medium: 20\n"), 0o644))
	t.Setenv("REWARDS_FILE", path)
	t.Setenv("TIMEZONE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Rewards.Completion.Medium)
}
